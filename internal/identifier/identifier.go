// Package identifier turns externally supplied ids into storage references.
// It never touches storage, so malformed requests are rejected before any
// query is built.
package identifier

import (
	"github.com/google/uuid"

	"blogsphere/internal/models"
)

// canonicalLength is the length of the hyphenated UUID form.
const canonicalLength = 36

// Parse validates raw and returns the identifier it names. Anything other
// than a canonical, non-nil UUID string is rejected with INVALID_IDENTIFIER.
func Parse(raw any) (uuid.UUID, error) {
	s, ok := raw.(string)
	if !ok || len(s) != canonicalLength {
		return uuid.Nil, models.NewInvalidIdentifierError()
	}
	id, err := uuid.Parse(s)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, models.NewInvalidIdentifierError()
	}
	return id, nil
}

// IsValid reports whether Parse would accept raw.
func IsValid(raw any) bool {
	_, err := Parse(raw)
	return err == nil
}
