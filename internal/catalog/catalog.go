// Package catalog describes the suites the host knows how to launch and
// selects which of them a run executes.
package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/torosent/pagebench/internal/failure"
	"github.com/torosent/pagebench/internal/protocol"
)

// Type tells how a suite's page is reached.
type Type string

const (
	// TypeRemote pages are dialled over a websocket URL.
	TypeRemote Type = "remote"
	// TypeInProcess pages are built-in workloads wired through an in-memory pipe.
	TypeInProcess Type = "inprocess"
)

// TagAll selects every enabled suite.
const TagAll = "all"

// Suite is a host-side suite descriptor.
type Suite struct {
	Name       string   `yaml:"name" json:"name"`
	Type       Type     `yaml:"type" json:"type"`
	URL        string   `yaml:"url,omitempty" json:"url,omitempty"`
	Workload   string   `yaml:"workload,omitempty" json:"workload,omitempty"`
	RemoteName string   `yaml:"remote_name,omitempty" json:"remote_name,omitempty"`
	Tags       []string `yaml:"tags" json:"tags"`
	Disabled   bool     `yaml:"disabled,omitempty" json:"disabled,omitempty"`
}

// Target is the suite name the page registered.
func (s Suite) Target() string {
	if s.RemoteName == "" {
		return protocol.DefaultSuiteName
	}
	return s.RemoteName
}

// PageKey identifies the page hosting the suite; suites with equal keys share
// one page session.
func (s Suite) PageKey() string {
	if s.Type == TypeInProcess {
		return "inprocess:" + s.Workload
	}
	return s.URL
}

// HasTag reports whether the suite carries tag (case-insensitive).
func (s Suite) HasTag(tag string) bool {
	for _, t := range s.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

// Catalog is an ordered list of suite descriptors.
type Catalog struct {
	Suites []Suite `yaml:"suites"`
}

//go:embed default.yaml
var defaultCatalog []byte

// Default returns the catalog of built-in demo workloads.
func Default() (*Catalog, error) {
	return Parse(defaultCatalog)
}

// Load reads a catalog file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	cat, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return cat, nil
}

// Parse decodes and validates catalog YAML.
func Parse(data []byte) (*Catalog, error) {
	var cat Catalog
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return nil, failure.NewConfigurationError(fmt.Sprintf("parse catalog: %v", err))
	}
	for i := range cat.Suites {
		s := &cat.Suites[i]
		if s.Type == "" {
			if s.Workload != "" {
				s.Type = TypeInProcess
			} else {
				s.Type = TypeRemote
			}
		}
	}
	if err := cat.Validate(); err != nil {
		return nil, err
	}
	return &cat, nil
}

// Validate reports every problem at once as a ConfigurationError.
func (c *Catalog) Validate() error {
	var issues []string
	seen := make(map[string]bool, len(c.Suites))
	for i, s := range c.Suites {
		if strings.TrimSpace(s.Name) == "" {
			issues = append(issues, fmt.Sprintf("suites[%d]: name is required", i))
			continue
		}
		if seen[s.Name] {
			issues = append(issues, fmt.Sprintf("duplicate suite name %q", s.Name))
		}
		seen[s.Name] = true
		if strings.EqualFold(s.Name, "Geomean") || strings.EqualFold(s.Name, "Score") {
			issues = append(issues, fmt.Sprintf("suite name %q is reserved", s.Name))
		}
		switch s.Type {
		case TypeRemote:
			if s.URL == "" {
				issues = append(issues, fmt.Sprintf("suite %q: remote suites need a url", s.Name))
			}
		case TypeInProcess:
			if s.Workload == "" {
				issues = append(issues, fmt.Sprintf("suite %q: inprocess suites need a workload", s.Name))
			}
		default:
			issues = append(issues, fmt.Sprintf("suite %q: unknown type %q", s.Name, s.Type))
		}
	}
	if len(issues) > 0 {
		return failure.NewConfigurationError(issues...)
	}
	return nil
}

// Lookup returns the suite named name.
func (c *Catalog) Lookup(name string) (Suite, bool) {
	for _, s := range c.Suites {
		if s.Name == name {
			return s, true
		}
	}
	return Suite{}, false
}

// Names lists suite names in catalog order.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.Suites))
	for _, s := range c.Suites {
		names = append(names, s.Name)
	}
	return names
}
