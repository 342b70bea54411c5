package formula

import (
	"fmt"
	"regexp"
)

// Formula keys double as identifiers inside other expressions, so they
// follow the same rules as catalog field identifiers.

const maxKeyLength = 100

var keyPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// reservedKeys are expression-language keywords and catalog-owned names a
// formula key must not shadow.
var reservedKeys = map[string]bool{
	"true":  true,
	"false": true,
	"null":  true,
	"in":    true,
	"if":    true,
	"else":  true,
	"floor": true,
	"ceil":  true,
	"round": true,
	"Round": true,
	"Math":  true,
}

// ValidateKey checks a proposed formula key before creation.
func ValidateKey(key string) error {
	if len(key) == 0 {
		return fmt.Errorf("formula key cannot be empty")
	}
	if len(key) > maxKeyLength {
		return fmt.Errorf("formula key length %d exceeds maximum of %d characters", len(key), maxKeyLength)
	}
	if !keyPattern.MatchString(key) {
		return fmt.Errorf("formula key %q must start with a letter or underscore, followed by letters, digits, or underscores", key)
	}
	if reservedKeys[key] {
		return fmt.Errorf("formula key %q is a reserved word", key)
	}
	for _, f := range Fields() {
		if f.Identifier == key {
			return fmt.Errorf("formula key %q collides with the %q catalog field", key, f.Identifier)
		}
	}
	return nil
}
