package validation

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnknownAlias   = errors.New("unknown validation alias")
	ErrDuplicateAlias = errors.New("validation selected twice")
)

// ConfigError is a fatal problem with the selected validations.
type ConfigError struct {
	Alias string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %q (known: %s)", e.Err, e.Alias, strings.Join(Aliases(), ", "))
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

type factory func(Deps) Test

// Registration order is also the default run order.
var registry = []struct {
	alias string
	build factory
}{
	{"LengthCluster", func(d Deps) Test { return NewLengthCluster(d) }},
	{"LengthRank", func(d Deps) Test { return NewLengthRank(d) }},
	{"Frame", func(d Deps) Test { return NewReadingFrame(d) }},
	{"Merge", func(d Deps) Test { return NewGeneMerge(d) }},
	{"Dup", func(d Deps) Test { return NewDuplication(d) }},
	{"ORF", func(d Deps) Test { return NewORF(d) }},
	{"MA", func(d Deps) Test { return NewAlignment(d) }},
}

// Aliases lists every known alias in default order.
func Aliases() []string {
	out := make([]string, len(registry))
	for i, r := range registry {
		out[i] = r.alias
	}
	return out
}

// Build instantiates the selected tests in the order given. An empty
// selection means all tests. Aliases match case-insensitively.
func Build(selected []string, deps Deps) ([]Test, error) {
	if len(selected) == 0 {
		selected = Aliases()
	}
	seen := make(map[string]bool, len(selected))
	tests := make([]Test, 0, len(selected))
	for _, raw := range selected {
		alias := strings.TrimSpace(raw)
		idx := -1
		for i, r := range registry {
			if strings.EqualFold(r.alias, alias) {
				idx = i
				break
			}
		}
		if idx < 0 {
			return nil, &ConfigError{Alias: alias, Err: ErrUnknownAlias}
		}
		canonical := registry[idx].alias
		if seen[canonical] {
			return nil, &ConfigError{Alias: alias, Err: ErrDuplicateAlias}
		}
		seen[canonical] = true
		tests = append(tests, registry[idx].build(deps))
	}
	return tests, nil
}
