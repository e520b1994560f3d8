package arbor

import "github.com/google/uuid"

// UniqueName returns prefix suffixed with a short, collision-resistant
// fragment of a random UUID. It is a cosmetic alternative to the
// NameSelectionStrategy's "%" wildcard (resolveChildName's
// replacePercent): useful for pool-style Spawn loops where a caller
// wants names that stay readable in logs without relying on this
// Task's own collision counter to keep them unique across process
// restarts or between sibling trees.
func UniqueName(prefix string) string {
	id := uuid.New()
	return prefix + "-" + id.String()[:8]
}
