// Package conflict implements field-level conflict detection and
// resolution between a client-held entity payload and the server's current
// one. Everything here is pure computation: no storage, no network.
package conflict

import (
	"fmt"
	"reflect"
	"sort"
)

// FieldDiff is one changed field between client and server payloads.
// IsConflict is true only when both sides moved the field away from the
// shared baseline to different values; a one-sided change is an ordinary
// update, not a conflict.
type FieldDiff struct {
	Field         string `json:"field"`
	ClientValue   any    `json:"client_value"`
	ServerValue   any    `json:"server_value"`
	Description   string `json:"description"`
	IsConflict    bool   `json:"is_conflict"`
	ClientChanged bool   `json:"client_changed"`
	ServerChanged bool   `json:"server_changed"`
}

// Severity is a coarse rating of how contested a diff is.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Summary gives headline counts for a computed diff.
type Summary struct {
	TotalFields      int      `json:"total_fields"`
	ChangedFields    int      `json:"changed_fields"`
	ConflictedFields int      `json:"conflicted_fields"`
	Severity         Severity `json:"severity"`
}

// Diff computes the field-by-field difference between client and server
// payloads against the last common baseline. Unchanged fields are omitted.
// Fields are visited in sorted order so output is deterministic.
//
// The baseline is what separates "server changed this, client didn't touch
// it" from "both changed it to the same new value": without it every
// divergence would look two-sided.
func Diff(client, server, baseline map[string]any) []FieldDiff {
	fields := make(map[string]bool, len(client)+len(server))
	for k := range client {
		fields[k] = true
	}
	for k := range server {
		fields[k] = true
	}

	names := make([]string, 0, len(fields))
	for k := range fields {
		names = append(names, k)
	}
	sort.Strings(names)

	var diffs []FieldDiff
	for _, field := range names {
		cv, cok := client[field]
		sv, sok := server[field]
		bv, bok := baseline[field]

		if valuesEqual(cv, sv) && cok == sok {
			continue // identical on both sides, nothing to report
		}

		clientChanged := !cok && bok || cok && (!bok || !valuesEqual(cv, bv))
		serverChanged := !sok && bok || sok && (!bok || !valuesEqual(sv, bv))

		d := FieldDiff{
			Field:         field,
			ClientValue:   cv,
			ServerValue:   sv,
			IsConflict:    clientChanged && serverChanged,
			ClientChanged: clientChanged,
			ServerChanged: serverChanged,
		}
		d.Description = describe(d)
		diffs = append(diffs, d)
	}
	return diffs
}

// Summarize derives headline counts and a severity from a diff. totalFields
// is the size of the union of client and server fields.
func Summarize(diffs []FieldDiff, totalFields int) Summary {
	s := Summary{TotalFields: totalFields, ChangedFields: len(diffs)}
	for _, d := range diffs {
		if d.IsConflict {
			s.ConflictedFields++
		}
	}
	switch {
	case s.ConflictedFields == 0:
		s.Severity = SeverityLow
	case s.ConflictedFields <= 2:
		s.Severity = SeverityMedium
	default:
		s.Severity = SeverityHigh
	}
	return s
}

func describe(d FieldDiff) string {
	switch {
	case d.IsConflict:
		return fmt.Sprintf("%s changed on both sides: client %v, server %v", d.Field, d.ClientValue, d.ServerValue)
	case d.ClientChanged:
		return fmt.Sprintf("%s changed locally to %v", d.Field, d.ClientValue)
	case d.ServerChanged:
		return fmt.Sprintf("%s changed on the server to %v", d.Field, d.ServerValue)
	default:
		return fmt.Sprintf("%s differs: client %v, server %v", d.Field, d.ClientValue, d.ServerValue)
	}
}

// valuesEqual compares decoded JSON values. reflect.DeepEqual covers the
// nested map/slice shapes json.Unmarshal produces.
func valuesEqual(a, b any) bool {
	if a == nil && b == nil {
		return true
	}
	return reflect.DeepEqual(a, b)
}
