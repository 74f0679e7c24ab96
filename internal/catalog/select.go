package catalog

import (
	"fmt"
	"strings"

	"github.com/torosent/pagebench/internal/failure"
)

// Selection is the part of a run configuration that picks suites.
type Selection struct {
	Tags          []string
	Names         []string
	DeveloperMode bool
}

// Selected splits a catalog into suites that run and suites left out.
type Selected struct {
	Enabled  []Suite
	Excluded []string
}

// Select applies sel to the catalog. Explicit names win over tags: exactly
// those suites run and an unknown name is a configuration error. A disabled
// suite may be named only in developer mode. Otherwise a suite runs when it
// is not disabled and one of its tags is requested, or the tag "all" is.
func (c *Catalog) Select(sel Selection) (Selected, error) {
	if len(sel.Names) > 0 {
		return c.selectNames(sel.Names, sel.DeveloperMode)
	}

	all := false
	for _, tag := range sel.Tags {
		if strings.EqualFold(strings.TrimSpace(tag), TagAll) {
			all = true
		}
	}

	var out Selected
	for _, s := range c.Suites {
		if !s.Disabled && (all || matchesAny(s, sel.Tags)) {
			out.Enabled = append(out.Enabled, s)
			continue
		}
		out.Excluded = append(out.Excluded, s.Name)
	}
	return out, nil
}

func (c *Catalog) selectNames(names []string, developerMode bool) (Selected, error) {
	want := make(map[string]bool, len(names))
	var issues []string
	for _, name := range names {
		name = strings.TrimSpace(name)
		s, ok := c.Lookup(name)
		switch {
		case !ok:
			issues = append(issues, fmt.Sprintf("unknown suite %q", name))
		case s.Disabled && !developerMode:
			issues = append(issues, fmt.Sprintf("suite %q is disabled (name it in developer mode to run it)", name))
		default:
			want[name] = true
		}
	}
	if len(issues) > 0 {
		return Selected{}, failure.NewConfigurationError(issues...)
	}

	var out Selected
	for _, s := range c.Suites {
		if want[s.Name] {
			out.Enabled = append(out.Enabled, s)
		} else {
			out.Excluded = append(out.Excluded, s.Name)
		}
	}
	return out, nil
}

func matchesAny(s Suite, tags []string) bool {
	for _, tag := range tags {
		if s.HasTag(strings.TrimSpace(tag)) {
			return true
		}
	}
	return false
}
