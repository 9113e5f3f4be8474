// Package noteid converts between note identifiers and store-relative paths.
//
// An id is the standard base64 encoding of the slash-separated path relative
// to the store root. Ids are derived, never stored, so a path change always
// produces a new id.
package noteid

import (
	"encoding/base64"
	"fmt"
	"path/filepath"
	"unicode/utf8"

	"github.com/starford/notter/internal/apperr"
)

// Encode returns the id for rel. Separators are normalized to '/'.
func Encode(rel string) string {
	return base64.StdEncoding.EncodeToString([]byte(filepath.ToSlash(rel)))
}

// Decode returns the slash-separated relative path for id. Only the
// canonical encoding is accepted: padding, trailing bits and line breaks
// must match what Encode produces.
func Decode(id string) (string, error) {
	raw, err := base64.StdEncoding.Strict().DecodeString(id)
	if err != nil {
		return "", fmt.Errorf("noteid: decode %q: %w", id, apperr.ErrInvalidIdentifier)
	}
	if len(raw) == 0 || !utf8.Valid(raw) || base64.StdEncoding.EncodeToString(raw) != id {
		return "", fmt.Errorf("noteid: decode %q: %w", id, apperr.ErrInvalidIdentifier)
	}
	return string(raw), nil
}
