package model

import "github.com/google/uuid"

// CanonicalID returns the lower-case hyphenated form of a UUID given in any
// form uuid.Parse accepts (upper case, braces, urn:uuid: prefix). Stores key
// entities on this form.
func CanonicalID(id string) (string, bool) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return "", false
	}
	return parsed.String(), true
}
