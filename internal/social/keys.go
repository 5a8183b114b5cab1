package social

import (
	"strings"

	"nitedsync/internal/core"
)

// CanonicalKey collapses the two historical identity forms (opaque account
// id, raw email address) into one key space: identifiers containing "@" or
// "." have both characters replaced with "_", anything else passes through.
// Idempotent.
func CanonicalKey(id string) string {
	if !strings.ContainsAny(id, ".@") {
		return id
	}
	return strings.Map(func(r rune) rune {
		if r == '.' || r == '@' {
			return '_'
		}
		return r
	}, id)
}

// EntryKey resolves the canonical key of an adjacency entry, supporting
// legacy entries that carry only a raw id.
func EntryKey(e core.FollowEntry) string {
	if e.Key != "" {
		return CanonicalKey(e.Key)
	}
	return CanonicalKey(e.ID)
}
