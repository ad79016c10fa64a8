// Package matrix defines the viewport fixtures a run is checked against.
package matrix

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ViewportConfig is one row of the matrix: a viewport size and the overlap
// result expected at that size.
type ViewportConfig struct {
	Width  int    `yaml:"width" json:"width"`
	Height int    `yaml:"height" json:"height"`
	Want   bool   `yaml:"want" json:"want"`
	Label  string `yaml:"label,omitempty" json:"label,omitempty"`
}

func (c ViewportConfig) Size() string {
	return fmt.Sprintf("%dx%d", c.Width, c.Height)
}

// Name is used for case names, e.g. "360x740 (More common phones)".
func (c ViewportConfig) Name() string {
	if strings.TrimSpace(c.Label) == "" {
		return c.Size()
	}
	return fmt.Sprintf("%s (%s)", c.Size(), c.Label)
}

func (c ViewportConfig) validate() error {
	if c.Width < 1 || c.Height < 1 {
		return fmt.Errorf("viewport %s: width and height must be positive", c.Size())
	}
	return nil
}

// Matrix is an ordered, immutable list of viewport configs.
type Matrix struct {
	configs []ViewportConfig
}

func New(configs ...ViewportConfig) (Matrix, error) {
	if len(configs) == 0 {
		return Matrix{}, errors.New("matrix must contain at least one viewport")
	}
	out := make([]ViewportConfig, len(configs))
	seen := make(map[string]bool, len(configs))
	for i, c := range configs {
		if err := c.validate(); err != nil {
			return Matrix{}, err
		}
		if seen[c.Size()] {
			return Matrix{}, fmt.Errorf("duplicate viewport %s", c.Size())
		}
		seen[c.Size()] = true
		out[i] = c
	}
	return Matrix{configs: out}, nil
}

func MustNew(configs ...ViewportConfig) Matrix {
	m, err := New(configs...)
	if err != nil {
		panic(err)
	}
	return m
}

// Reference returns the default table: a desktop and three phone sizes, none
// of which may show the panels overlapping.
func Reference() Matrix {
	return MustNew(
		ViewportConfig{Width: 1920, Height: 1080, Want: false, Label: "Desktop"},
		ViewportConfig{Width: 360, Height: 740, Want: false, Label: "More common phones"},
		ViewportConfig{Width: 360, Height: 640, Want: false, Label: "Older phones"},
		ViewportConfig{Width: 412, Height: 914, Want: false, Label: "Bigger phones"},
	)
}

// Configs returns a copy of the rows in order.
func (m Matrix) Configs() []ViewportConfig {
	out := make([]ViewportConfig, len(m.configs))
	copy(out, m.configs)
	return out
}

func (m Matrix) Len() int { return len(m.configs) }

type fileFormat struct {
	Viewports []ViewportConfig `yaml:"viewports"`
}

// Load reads a matrix from a YAML file of the form
//
//	viewports:
//	  - {width: 1920, height: 1080, want: false, label: Desktop}
func Load(path string) (Matrix, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Matrix{}, err
	}
	return Parse(data)
}

func Parse(data []byte) (Matrix, error) {
	var f fileFormat
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return Matrix{}, fmt.Errorf("parse matrix: %w", err)
	}
	return New(f.Viewports...)
}

func (m Matrix) MarshalYAML() (interface{}, error) {
	return fileFormat{Viewports: m.Configs()}, nil
}

var viewportRe = regexp.MustCompile(`^\s*(\d+)\s*[xX*,]\s*(\d+)\s*$`)

// ParseViewport parses "WIDTHxHEIGHT" (a trailing "px" is ignored).
func ParseViewport(raw string) (ViewportConfig, error) {
	normalized := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(raw), "px", ""))
	match := viewportRe.FindStringSubmatch(normalized)
	if len(match) != 3 {
		return ViewportConfig{}, fmt.Errorf("viewport must be WIDTHxHEIGHT (e.g. 1920x1080), got %q", raw)
	}
	w, _ := strconv.Atoi(match[1])
	h, _ := strconv.Atoi(match[2])
	c := ViewportConfig{Width: w, Height: h}
	if err := c.validate(); err != nil {
		return ViewportConfig{}, err
	}
	return c, nil
}
