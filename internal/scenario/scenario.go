package scenario

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var builtin []byte

var ErrUnknownScenario = errors.New("unknown scenario")

// WarningPoint is a red flag the user should have noticed.
type WarningPoint struct {
	Title       string `yaml:"title" json:"title"`
	Description string `yaml:"description" json:"description"`
	Severity    string `yaml:"severity" json:"severity"`
}

// Scenario is one scam script the backend can play.
type Scenario struct {
	ID            string         `yaml:"id" json:"id"`
	Name          string         `yaml:"name" json:"name"`
	DangerLevel   int            `yaml:"danger_level" json:"danger_level"`
	Description   string         `yaml:"description" json:"description"`
	CallerName    string         `yaml:"caller_name" json:"caller_name"`
	CallerNumber  string         `yaml:"caller_number" json:"caller_number"`
	WarningPoints []WarningPoint `yaml:"warning_points" json:"warning_points"`
}

// Danger labels the danger level.
func (s Scenario) Danger() string {
	switch {
	case s.DangerLevel >= 3:
		return "high"
	case s.DangerLevel == 2:
		return "medium"
	default:
		return "low"
	}
}

// Catalog is a read-only, ordered scenario list.
type Catalog struct {
	list []Scenario
	byID map[string]int
}

// Default returns the built-in catalog.
func Default() *Catalog {
	c, err := Parse(builtin)
	if err != nil {
		panic(fmt.Sprintf("builtin scenario catalog: %v", err))
	}
	return c
}

// Load reads a catalog file, falling back to the built-in one when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML catalog and checks it.
func Parse(data []byte) (*Catalog, error) {
	var doc struct {
		Scenarios []Scenario `yaml:"scenarios"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse scenario catalog: %w", err)
	}
	c := &Catalog{byID: make(map[string]int, len(doc.Scenarios))}
	for _, s := range doc.Scenarios {
		if s.ID == "" {
			return nil, fmt.Errorf("scenario %q has no id", s.Name)
		}
		if _, dup := c.byID[s.ID]; dup {
			return nil, fmt.Errorf("duplicate scenario id %q", s.ID)
		}
		if s.DangerLevel < 1 || s.DangerLevel > 3 {
			return nil, fmt.Errorf("scenario %q: danger level %d out of range 1-3", s.ID, s.DangerLevel)
		}
		c.byID[s.ID] = len(c.list)
		c.list = append(c.list, s)
	}
	return c, nil
}

// Lookup returns the scenario with the given backend id.
func (c *Catalog) Lookup(id string) (Scenario, error) {
	i, ok := c.byID[id]
	if !ok {
		return Scenario{}, fmt.Errorf("%w: %q", ErrUnknownScenario, id)
	}
	return c.list[i], nil
}

// All returns the scenarios in catalog order.
func (c *Catalog) All() []Scenario {
	out := make([]Scenario, len(c.list))
	copy(out, c.list)
	return out
}
