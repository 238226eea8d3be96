package geometry

import (
	"fmt"

	"go.jetify.com/typeid/v2"
)

// Id prefixes for scene entities
const (
	PrefixOverlay = "overlay"
	PrefixStroke  = "stroke"
)

// GenerateID returns a time-ordered unique id with a random suffix
func GenerateID(prefix string) string {
	id := typeid.MustGenerate(prefix)
	return id.String()
}

// ValidateID checks that id is well formed and carries the expected prefix
func ValidateID(id, expectedPrefix string) error {
	parsed, err := typeid.Parse(id)
	if err != nil {
		return fmt.Errorf("invalid id %q: %w", id, err)
	}
	if parsed.Prefix() != expectedPrefix {
		return fmt.Errorf("expected prefix %q but got %q in id %q", expectedPrefix, parsed.Prefix(), id)
	}
	return nil
}
