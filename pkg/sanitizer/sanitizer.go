package sanitizer

import "strings"

type Strategy func(string) string

type Pipeline []Strategy

func (p Pipeline) Apply(s string) string {
	for _, fn := range p {
		s = fn(s)
	}
	return s
}

func lower(s string) string {
	return strings.ToLower(s)
}

// SanitizeEmail trims the address and lowercases it so lookups by organizer
// are case-insensitive.
func SanitizeEmail(email string) string {
	p := Pipeline{
		strings.TrimSpace,
		lower,
	}
	return p.Apply(email)
}

// SanitizeDescription trims a free-text description. A description that is
// empty after trimming becomes nil.
func SanitizeDescription(description *string) *string {
	if description == nil {
		return nil
	}
	d := strings.TrimSpace(*description)
	if d == "" {
		return nil
	}
	return &d
}
