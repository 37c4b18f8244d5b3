// README: Common identifier value object used across modules.
package types

import (
	"strings"

	"github.com/google/uuid"
)

type ID string

// NewID returns a 32-char lowercase hex identifier (a dashless UUIDv4).
func NewID() ID {
	return ID(strings.ReplaceAll(uuid.NewString(), "-", ""))
}

// IsValidID reports whether v looks like an identifier we hand out or accept from callers:
// non-empty, at most 32 chars, ASCII letters and digits only.
func IsValidID(v string) bool {
	if v == "" || len(v) > 32 {
		return false
	}
	for _, c := range v {
		if (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') {
			continue
		}
		return false
	}
	return true
}
