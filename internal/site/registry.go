package site

import (
	"fmt"
	"sort"
	"time"
)

// Surfaces is the fixed set of named surfaces served by the process.
type Surfaces struct {
	byName map[string]*Surface
}

// NewSurfaces builds one surface per config. Names must be unique and non-empty.
func NewSurfaces(cfgs []Config, deps Deps) (*Surfaces, error) {
	out := &Surfaces{byName: make(map[string]*Surface, len(cfgs))}
	for _, cfg := range cfgs {
		if cfg.Name == "" {
			out.Close()
			return nil, fmt.Errorf("surface without a name")
		}
		if _, dup := out.byName[cfg.Name]; dup {
			out.Close()
			return nil, fmt.Errorf("surface %q configured twice", cfg.Name)
		}
		out.byName[cfg.Name] = NewSurface(cfg, deps)
	}
	return out, nil
}

func (s *Surfaces) Get(name string) (*Surface, bool) {
	sf, ok := s.byName[name]
	return sf, ok
}

// Names returns surface names sorted.
func (s *Surfaces) Names() []string {
	names := make([]string, 0, len(s.byName))
	for n := range s.byName {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// NavigateAll points every surface at urlPath.
func (s *Surfaces) NavigateAll(urlPath string) {
	for _, sf := range s.byName {
		sf.Navigate(urlPath)
	}
}

func (s *Surfaces) Close() {
	for _, sf := range s.byName {
		sf.Close()
	}
}

// DefaultConfigs returns the footer and contact surfaces of the site.
// The footer shows one office at a time on a timer; the contact list shows up to
// contactLimit offices on a single page.
func DefaultConfigs(footerPageSize, contactLimit int, interval time.Duration) []Config {
	return []Config{
		{Name: "footer", PageSize: footerPageSize, Interval: interval},
		{Name: "contact", PageSize: contactLimit, Limit: contactLimit, Interval: interval},
	}
}
