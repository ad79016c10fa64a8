package browser

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
)

const defaultConsoleLogMax = 200
const defaultConsoleLevels = "warning,error"

type ConsoleEntry struct {
	ID     int64  `json:"id"`
	TimeMS int64  `json:"time_ms"`
	Type   string `json:"type"`
	Text   string `json:"text"`
	URL    string `json:"url,omitempty"`
	Line   int    `json:"line,omitempty"`
	Column int    `json:"column,omitempty"`
}

func (e ConsoleEntry) String() string {
	if e.URL == "" {
		return fmt.Sprintf("[%s] %s", e.Type, e.Text)
	}
	return fmt.Sprintf("[%s] %s (%s:%d:%d)", e.Type, e.Text, e.URL, e.Line, e.Column)
}

// consoleStore keeps the most recent console messages of one page.
type consoleStore struct {
	mu     sync.Mutex
	logs   []ConsoleEntry
	max    int
	nextID int64
	filter consoleLevelFilter
}

type consoleLevelFilter struct {
	allowed map[string]bool
	all     bool
}

func newConsoleStore(max int, filter consoleLevelFilter) *consoleStore {
	if max <= 0 {
		max = defaultConsoleLogMax
	}
	return &consoleStore{max: max, filter: filter}
}

func (c *consoleStore) append(msg playwright.ConsoleMessage) {
	entry := ConsoleEntry{
		Type: msg.Type(),
		Text: msg.Text(),
	}
	if loc := msg.Location(); loc != nil {
		entry.URL = loc.URL
		entry.Line = loc.LineNumber + 1
		entry.Column = loc.ColumnNumber + 1
	}
	c.appendEntry(entry)
}

func (c *consoleStore) appendPageError(err error) {
	if err == nil {
		return
	}
	c.appendEntry(ConsoleEntry{
		Type: "pageerror",
		Text: err.Error(),
	})
}

func (c *consoleStore) appendEntry(entry ConsoleEntry) {
	if entry.TimeMS == 0 {
		entry.TimeMS = time.Now().UnixMilli()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	entry.ID = c.nextID
	if len(c.logs) >= c.max {
		c.logs = c.logs[len(c.logs)-c.max+1:]
	}
	c.logs = append(c.logs, entry)
}

func (c *consoleStore) lastID() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nextID
}

// list returns up to limit entries newer than since that pass the level
// filter, keeping the most recent ones.
func (c *consoleStore) list(since int64, limit int) []ConsoleEntry {
	c.mu.Lock()
	entries := append([]ConsoleEntry(nil), c.logs...)
	c.mu.Unlock()
	return selectConsoleLogs(entries, c.filter, since, limit)
}

func selectConsoleLogs(entries []ConsoleEntry, filter consoleLevelFilter, since int64, limit int) []ConsoleEntry {
	out := []ConsoleEntry{}
	for _, e := range entries {
		if e.ID <= since {
			continue
		}
		if !filter.allows(e.Type) {
			continue
		}
		out = append(out, e)
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

func (f consoleLevelFilter) allows(kind string) bool {
	if f.all {
		return true
	}
	if kind == "pageerror" {
		return f.allowed["error"]
	}
	return f.allowed[normalizeConsoleLevel(kind)]
}

func normalizeConsoleLevel(level string) string {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "warn", "warnings", "warning":
		return "warning"
	case "errors", "error":
		return "error"
	case "log", "info":
		return "info"
	case "debug", "trace":
		return "debug"
	}
	return ""
}

func parseConsoleLevels(raw string) (consoleLevelFilter, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		raw = defaultConsoleLevels
	}
	if strings.EqualFold(raw, "all") {
		return consoleLevelFilter{all: true}, nil
	}
	allowed := map[string]bool{}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		level := normalizeConsoleLevel(part)
		if level == "" {
			return consoleLevelFilter{}, fmt.Errorf("invalid console level %q (expected debug, info, warning, error or all)", part)
		}
		allowed[level] = true
	}
	if len(allowed) == 0 {
		return consoleLevelFilter{}, errors.New("no console levels given")
	}
	return consoleLevelFilter{allowed: allowed}, nil
}
