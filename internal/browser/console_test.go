package browser

import (
	"errors"
	"testing"
)

func TestParseConsoleLevels_All(t *testing.T) {
	filter, err := parseConsoleLevels("all")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !filter.all {
		t.Fatalf("expected all=true")
	}
}

func TestParseConsoleLevels_Empty(t *testing.T) {
	filter, err := parseConsoleLevels("  ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !filter.allowed["warning"] || !filter.allowed["error"] {
		t.Fatalf("expected default levels (warning,error), got %+v", filter.allowed)
	}
	if filter.allowed["info"] {
		t.Fatalf("info should not be in default levels")
	}
}

func TestParseConsoleLevels_Aliases(t *testing.T) {
	tests := map[string]string{
		"warn":     "warning",
		"warnings": "warning",
		"errors":   "error",
		"log":      "info",
		"trace":    "debug",
	}
	for input, want := range tests {
		filter, err := parseConsoleLevels(input)
		if err != nil {
			t.Fatalf("unexpected error for %q: %v", input, err)
		}
		if !filter.allowed[want] || len(filter.allowed) != 1 {
			t.Fatalf("expected %q to map to %q, got %+v", input, want, filter.allowed)
		}
	}
}

func TestParseConsoleLevels_InvalidInput(t *testing.T) {
	for _, input := range []string{"invalid", "foo,bar", "info,invalid", ",,"} {
		if _, err := parseConsoleLevels(input); err == nil {
			t.Fatalf("expected error for input %q", input)
		}
	}
}

func TestSelectConsoleLogs_SinceAndLimit(t *testing.T) {
	allEntries := []ConsoleEntry{
		{ID: 1, Type: "debug"},
		{ID: 2, Type: "info"},
		{ID: 3, Type: "warning"},
		{ID: 4, Type: "error"},
		{ID: 5, Type: "pageerror"},
		{ID: 6, Type: "log"},
	}
	filter, err := parseConsoleLevels("info,error")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	withSince := selectConsoleLogs(allEntries, filter, 3, 2)
	if len(withSince) != 2 {
		t.Fatalf("expected 2 entries with since, got %d", len(withSince))
	}
	if withSince[0].ID != 5 || withSince[1].ID != 6 {
		t.Fatalf("unexpected entries with since: %+v", withSince)
	}

	noLimit := selectConsoleLogs(allEntries, filter, 0, 0)
	if len(noLimit) != 4 {
		t.Fatalf("expected 4 entries without limit, got %+v", noLimit)
	}
}

func TestConsoleStoreCapsEntries(t *testing.T) {
	filter, _ := parseConsoleLevels("all")
	store := newConsoleStore(3, filter)
	for i := 0; i < 5; i++ {
		store.appendEntry(ConsoleEntry{Type: "error", Text: "boom"})
	}
	store.appendPageError(errors.New("uncaught"))
	store.appendPageError(nil)

	if got := store.lastID(); got != 6 {
		t.Fatalf("expected last id 6, got %d", got)
	}
	entries := store.list(0, 0)
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries kept, got %d", len(entries))
	}
	if entries[2].Type != "pageerror" || entries[2].ID != 6 {
		t.Fatalf("unexpected newest entry: %+v", entries[2])
	}
	if entries[0].ID != 4 {
		t.Fatalf("expected oldest kept entry to be 4, got %d", entries[0].ID)
	}

	if store.lastID() != 6 {
		t.Fatalf("expected last id 6, got %d", store.lastID())
	}
}

func TestConsoleEntryString(t *testing.T) {
	e := ConsoleEntry{Type: "error", Text: "x is undefined", URL: "http://localhost/app.js", Line: 3, Column: 7}
	if got := e.String(); got != "[error] x is undefined (http://localhost/app.js:3:7)" {
		t.Fatalf("unexpected string: %q", got)
	}
	if got := (ConsoleEntry{Type: "pageerror", Text: "boom"}).String(); got != "[pageerror] boom" {
		t.Fatalf("unexpected string: %q", got)
	}
}
