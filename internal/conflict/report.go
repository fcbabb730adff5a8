package conflict

import (
	"fmt"
	"strings"
)

// VersionConflictError is raised when a replayed mutation is rejected
// because its version no longer matches the server's. It carries both
// versions and the computed field diff so the presentation layer can show
// exactly what diverged.
type VersionConflictError struct {
	EntityKind    string
	EntityID      string
	ClientVersion int64
	ServerVersion int64
	Diff          []FieldDiff
}

func (e *VersionConflictError) Error() string {
	return fmt.Sprintf("version conflict on %s/%s: client v%d, server v%d, %d field(s) in conflict",
		e.EntityKind, e.EntityID, e.ClientVersion, e.ServerVersion,
		Summarize(e.Diff, len(e.Diff)).ConflictedFields)
}

// Report renders a diff as indented markdown, one line per changed field.
// Conflicting fields carry a distinct marker; the CLI passes the result
// through its markdown renderer.
func Report(entityKind, entityID string, clientVersion, serverVersion int64, diffs []FieldDiff) string {
	var b strings.Builder

	summary := Summarize(diffs, len(diffs))
	fmt.Fprintf(&b, "## Conflict: %s/%s\n\n", entityKind, entityID)
	fmt.Fprintf(&b, "Client version **%d**, server version **%d**, severity **%s**\n\n",
		clientVersion, serverVersion, summary.Severity)

	if len(diffs) == 0 {
		b.WriteString("No field-level changes detected.\n")
		return b.String()
	}

	for _, d := range diffs {
		if d.IsConflict {
			fmt.Fprintf(&b, "- **%s** ⚠ conflict\n", d.Field)
			fmt.Fprintf(&b, "    - client: `%v`\n", renderValue(d.ClientValue))
			fmt.Fprintf(&b, "    - server: `%v`\n", renderValue(d.ServerValue))
		} else {
			fmt.Fprintf(&b, "- %s\n", d.Description)
		}
	}

	fmt.Fprintf(&b, "\n%d changed field(s), %d in true conflict.\n",
		summary.ChangedFields, summary.ConflictedFields)
	return b.String()
}

func renderValue(v any) string {
	if v == nil {
		return "(unset)"
	}
	return fmt.Sprintf("%v", v)
}
