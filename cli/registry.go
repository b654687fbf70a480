package cli

import (
	"fmt"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/choronzon/choronzon/format"
	"github.com/choronzon/choronzon/pngformat"
)

// plugins lists every format.Plugin the CLI knows how to select by name.
// A real deployment would load plug-ins dynamically; wiring them by name
// here keeps the reference build self-contained.
var plugins = map[string]format.Plugin{
	"png": pngformat.Plugin{},
}

// resolvePlugin looks up a plug-in by name, returning a "did you mean"
// suggestion drawn from the registered names when the lookup misses.
func resolvePlugin(name string) (format.Plugin, error) {
	if p, ok := plugins[name]; ok {
		return p, nil
	}
	names := make([]string, 0, len(plugins))
	for n := range plugins {
		names = append(names, n)
	}
	matches := fuzzy.RankFindNormalizedFold(name, names)
	if len(matches) > 0 {
		return nil, &Error{
			Message: fmt.Sprintf("unknown format plug-in %q", name),
			Hint:    fmt.Sprintf("did you mean %q?", matches[0].Target),
		}
	}
	return nil, &Error{Message: fmt.Sprintf("unknown format plug-in %q", name)}
}
