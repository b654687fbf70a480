// Package format defines the contract a file-format plug-in must satisfy to
// be fuzzed by the Choronzon engine. The engine itself never encodes or
// decodes a specific format; it only calls through this interface.
package format

import (
	"fmt"

	"github.com/choronzon/choronzon/chromo"
)

// Plugin is the three-operation contract a format implementation supplies.
// Implementations must be safe for concurrent use by multiple goroutines —
// the engine may enumerate corpus members concurrently with a running trial.
type Plugin interface {
	// Name identifies the format, e.g. "png".
	Name() string

	// Deserialize parses bytes into a Chromosome. It must accept any valid
	// file of the format and is not required to accept malformed ones.
	Deserialize(data []byte) (*chromo.Chromosome, error)

	// Serialize renders a Chromosome's tree to bytes. It always succeeds
	// for an admissible tree; it may recompute auto-derived fields (lengths,
	// checksums) but must preserve the tree's logical content.
	Serialize(c *chromo.Chromosome) ([]byte, error)

	// Admissible reports whether a gene of childKind may appear as a child
	// of a gene of parentKind at the given 0-based position among that
	// parent's existing children.
	Admissible(parentKind, childKind string, position int) bool
}

// ParseError is returned by Deserialize for input the plug-in declines to
// accept. It is never fatal to a campaign as a whole: a seed that fails to
// parse is skipped, not treated as an engine bug.
type ParseError struct {
	Format string
	Reason string
	Offset int
}

func (e *ParseError) Error() string {
	if e.Offset >= 0 {
		return fmt.Sprintf("%s: parse error at offset %d: %s", e.Format, e.Offset, e.Reason)
	}
	return fmt.Sprintf("%s: parse error: %s", e.Format, e.Reason)
}

// SerializationError is returned by Serialize when a tree cannot be
// rendered to bytes at all (as opposed to producing bytes that merely
// round-trip to a different tree, which is a plug-in bug, not this error).
type SerializationError struct {
	Format string
	Reason string
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("%s: serialization error: %s", e.Format, e.Reason)
}
