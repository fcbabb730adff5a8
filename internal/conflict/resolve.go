package conflict

import (
	"errors"
	"fmt"
	"sort"
)

// Strategy selects how a detected conflict is reconciled.
type Strategy string

const (
	// ClientWins takes the client payload wholesale; server-only changes
	// are discarded.
	ClientWins Strategy = "client_wins"
	// ServerWins takes the server payload wholesale; client changes are
	// discarded.
	ServerWins Strategy = "server_wins"
	// SmartMerge combines one-sided changes from each side and applies the
	// resolver's tie-break to fields in true conflict.
	SmartMerge Strategy = "smart_merge"
	// Manual requires an explicit per-field choice for every conflicted
	// field; the resolution is incomplete until each one has a choice.
	Manual Strategy = "manual"
)

// ValidStrategy reports whether s names a known strategy.
func ValidStrategy(s Strategy) bool {
	switch s {
	case ClientWins, ServerWins, SmartMerge, Manual:
		return true
	}
	return false
}

// Side names one side of a conflict in a manual selection.
type Side string

const (
	SideClient Side = "client"
	SideServer Side = "server"
)

// ErrUnresolvedFields is returned when a manual resolution is finalized
// while conflicted fields still have no selection. Callers must surface it
// and block, never fall back to a default strategy.
var ErrUnresolvedFields = errors.New("unresolved conflicting fields")

// Resolution is the reconciled outcome of a conflict. NewVersion is always
// serverVersion+1: the client writes forward from the server's
// authoritative version, never from its own stale one.
type Resolution struct {
	Strategy         Strategy       `json:"strategy"`
	ResolvedData     map[string]any `json:"resolved_data"`
	NewVersion       int64          `json:"new_version"`
	MergedFields     []string       `json:"merged_fields"`
	ConflictedFields []string       `json:"conflicted_fields"`
}

// Complete reports whether the resolution can be applied: automatic
// strategies always can, manual only once every conflicted field is chosen.
func (r *Resolution) Complete() bool {
	return len(r.ConflictedFields) == 0
}

// Resolver applies resolution strategies. TieBreak decides true conflicts
// under SmartMerge; the server side is the conventional authority but a
// client-side tie-break is equally well-defined.
type Resolver struct {
	TieBreak Side
}

// NewResolver returns a resolver with the server-wins tie-break.
func NewResolver() *Resolver {
	return &Resolver{TieBreak: SideServer}
}

// Resolve reconciles client and server payloads using the given strategy.
// diffs must come from Diff over the same payloads. selections supplies
// per-field choices for Manual and is ignored by the other strategies.
func (r *Resolver) Resolve(strategy Strategy, client, server map[string]any, diffs []FieldDiff, serverVersion int64, selections map[string]Side) (*Resolution, error) {
	if !ValidStrategy(strategy) {
		return nil, fmt.Errorf("unknown strategy: %q", strategy)
	}

	res := &Resolution{
		Strategy:   strategy,
		NewVersion: serverVersion + 1,
	}

	switch strategy {
	case ClientWins:
		res.ResolvedData = copyFields(client)
		res.MergedFields = diffFields(diffs)

	case ServerWins:
		res.ResolvedData = copyFields(server)
		res.MergedFields = diffFields(diffs)

	case SmartMerge:
		res.ResolvedData = r.smartMerge(client, server, diffs)
		res.MergedFields = diffFields(diffs)

	case Manual:
		data, merged, unresolved := manualMerge(client, server, diffs, selections)
		res.ResolvedData = data
		res.MergedFields = merged
		res.ConflictedFields = unresolved
		if len(unresolved) > 0 {
			return res, fmt.Errorf("%w: %d field(s) need a selection", ErrUnresolvedFields, len(unresolved))
		}
	}

	return res, nil
}

// smartMerge starts from the server payload, overlays non-conflicting
// client-only changes, and settles true conflicts with the tie-break.
// Server-only changes are already in place.
func (r *Resolver) smartMerge(client, server map[string]any, diffs []FieldDiff) map[string]any {
	merged := copyFields(server)
	for _, d := range diffs {
		if d.IsConflict {
			if r.TieBreak == SideClient {
				setOrDelete(merged, d.Field, client)
			}
			continue
		}
		if d.ClientChanged {
			setOrDelete(merged, d.Field, client)
		}
	}
	return merged
}

func manualMerge(client, server map[string]any, diffs []FieldDiff, selections map[string]Side) (data map[string]any, merged, unresolved []string) {
	// Non-conflicting fields merge like SmartMerge with server base plus
	// one-sided client changes; only true conflicts need a selection.
	base := (&Resolver{TieBreak: SideServer}).smartMerge(client, server, diffs)

	for _, d := range diffs {
		if !d.IsConflict {
			continue
		}
		side, ok := selections[d.Field]
		if !ok {
			unresolved = append(unresolved, d.Field)
			continue
		}
		switch side {
		case SideClient:
			setOrDelete(base, d.Field, client)
		case SideServer:
			setOrDelete(base, d.Field, server)
		default:
			unresolved = append(unresolved, d.Field)
			continue
		}
		merged = append(merged, d.Field)
	}

	sort.Strings(merged)
	sort.Strings(unresolved)
	return base, merged, unresolved
}

// setOrDelete copies field from src into dst, removing it when the source
// side deleted the field entirely.
func setOrDelete(dst map[string]any, field string, src map[string]any) {
	if v, ok := src[field]; ok {
		dst[field] = v
	} else {
		delete(dst, field)
	}
}

func copyFields(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func diffFields(diffs []FieldDiff) []string {
	fields := make([]string, 0, len(diffs))
	for _, d := range diffs {
		fields = append(fields, d.Field)
	}
	sort.Strings(fields)
	return fields
}
