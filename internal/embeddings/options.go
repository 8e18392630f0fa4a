package embeddings

import (
	"fmt"
	"sort"
)

// NewOption builds an Option from a name and a Go scalar value.
func NewOption(name string, value interface{}) (Option, error) {
	if name == "" {
		return Option{}, fmt.Errorf("option name is empty")
	}
	v, err := ValueOf(value)
	if err != nil {
		return Option{}, fmt.Errorf("option %q: %w", name, err)
	}
	return Option{Name: name, Value: v}, nil
}

// NewOptions validates an ordered sequence of options and returns a copy.
// Names must be non-empty and unique; order is preserved as given.
func NewOptions(pairs ...Option) ([]Option, error) {
	out := make([]Option, 0, len(pairs))
	seen := make(map[string]bool, len(pairs))
	for _, p := range pairs {
		if p.Name == "" {
			return nil, fmt.Errorf("option name is empty")
		}
		if !p.Value.IsValid() {
			return nil, fmt.Errorf("option %q has no value", p.Name)
		}
		if seen[p.Name] {
			return nil, fmt.Errorf("duplicate option name %q", p.Name)
		}
		seen[p.Name] = true
		out = append(out, p)
	}
	return out, nil
}

// SortedOptions converts an unordered map of names to values into options sorted
// by name.
func SortedOptions(m map[string]interface{}) ([]Option, error) {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)

	pairs := make([]Option, 0, len(names))
	for _, name := range names {
		opt, err := NewOption(name, m[name])
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, opt)
	}
	return NewOptions(pairs...)
}
