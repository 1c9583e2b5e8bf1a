package domain

import (
	"fmt"

	"github.com/google/uuid"
)

// NewID returns a fresh random id.
func NewID() string {
	return uuid.New().String()
}

// ParseID validates id and returns its canonical form.
func ParseID(id string) (string, error) {
	u, err := uuid.Parse(id)
	if err != nil {
		return "", fmt.Errorf("%w: malformed id %q", ErrInvalidReference, id)
	}
	return u.String(), nil
}

// ValidID reports whether id is a syntactically valid id.
func ValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// IDForms returns the distinct spellings under which id may have been
// stored: as given and canonical.
func IDForms(id string) []string {
	canonical, err := ParseID(id)
	if err != nil || canonical == id {
		return []string{id}
	}
	return []string{id, canonical}
}
