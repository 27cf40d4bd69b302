package executor

import (
	"fmt"
	"strings"

	"github.com/devicelab-dev/apidemos-e2e/pkg/core"
)

// Select returns the named tests together with everything they require,
// in their original order. An empty names list selects every test.
func Select(tests []Test, names []string) ([]Test, error) {
	if len(names) == 0 {
		return tests, nil
	}

	byName := make(map[string]Test, len(tests))
	for _, t := range tests {
		byName[t.Name] = t
	}

	want := make(map[string]bool)
	var visit func(name string) error
	visit = func(name string) error {
		if want[name] {
			return nil
		}
		t, ok := byName[name]
		if !ok {
			return core.ErrInvalidConfig.WithMessage(fmt.Sprintf("unknown test %q (available: %s)", name, strings.Join(Names(tests), ", ")))
		}
		want[name] = true
		for _, req := range t.Requires {
			if err := visit(req); err != nil {
				return err
			}
		}
		return nil
	}
	for _, name := range names {
		if err := visit(strings.TrimSpace(name)); err != nil {
			return nil, err
		}
	}

	selected := make([]Test, 0, len(want))
	for _, t := range tests {
		if want[t.Name] {
			selected = append(selected, t)
		}
	}
	return selected, nil
}

// Names returns the test names in order.
func Names(tests []Test) []string {
	names := make([]string, len(tests))
	for i, t := range tests {
		names[i] = t.Name
	}
	return names
}
