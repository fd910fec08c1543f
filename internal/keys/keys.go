// Package keys converts between browser locations, display names and flat
// S3 object keys, and validates names before they reach the store.
//
// A location is a slash-separated path with no leading or trailing
// delimiter ("" is the bucket root). Folders are keys ending in the
// delimiter.
package keys

import (
	"fmt"
	"strings"
)

// Delimiter separates path segments inside a key.
const Delimiter = "/"

// MaxKeyBytes is the S3 limit on key length.
const MaxKeyBytes = 1024

// ForbiddenChars are rejected anywhere in a name.
const ForbiddenChars = "/\\\"{}^%`[]<>~#|"

// ToKey joins a location and a name into a storage key.
func ToKey(location, name string, isFolder bool) string {
	key := name
	if location != "" {
		key = location + Delimiter + name
	}
	if isFolder {
		key += Delimiter
	}
	return key
}

// Parent returns the location that contains key.
func Parent(key string) string {
	key = strings.TrimSuffix(key, Delimiter)
	idx := strings.LastIndex(key, Delimiter)
	if idx < 0 {
		return ""
	}
	return key[:idx]
}

// Name returns the last segment of key.
func Name(key string) string {
	key = strings.TrimSuffix(key, Delimiter)
	return key[strings.LastIndex(key, Delimiter)+1:]
}

// Prefix returns the listing prefix for a location.
func Prefix(location string) string {
	if location == "" {
		return ""
	}
	return location + Delimiter
}

// NormalizeLocation strips leading and trailing delimiters from a path.
func NormalizeLocation(path string) string {
	return strings.Trim(path, Delimiter)
}

// Segments splits a location into its parts. Root has none.
func Segments(location string) []string {
	if location == "" {
		return nil
	}
	return strings.Split(location, Delimiter)
}

// Rule identifies which naming rule a name broke.
type Rule string

const (
	RuleWhitespace   Rule = "whitespace"
	RuleNonPrintable Rule = "non_printable"
	RuleForbidden    Rule = "forbidden_character"
	RuleTooLong      Rule = "too_long"
)

// NameError describes the first naming rule a name violates.
type NameError struct {
	Name   string
	Rule   Rule
	Reason string
}

func (e *NameError) Error() string {
	return fmt.Sprintf("invalid name %q: %s", e.Name, e.Reason)
}

// ValidateName checks name against the key rules in order and reports the
// first violation.
func ValidateName(name string) error {
	if strings.TrimSpace(name) != name {
		return &NameError{Name: name, Rule: RuleWhitespace, Reason: "leading or trailing whitespace"}
	}
	for i := 0; i < len(name); i++ {
		if b := name[i]; b < 0x20 || b > 0x7E {
			return &NameError{Name: name, Rule: RuleNonPrintable, Reason: fmt.Sprintf("non-printable character at byte %d", i)}
		}
	}
	if idx := strings.IndexAny(name, ForbiddenChars); idx >= 0 {
		return &NameError{Name: name, Rule: RuleForbidden, Reason: fmt.Sprintf("forbidden character %q", name[idx])}
	}
	if len(name) > MaxKeyBytes {
		return &NameError{Name: name, Rule: RuleTooLong, Reason: fmt.Sprintf("longer than %d bytes", MaxKeyBytes)}
	}
	return nil
}

// IsValidName reports whether name passes ValidateName.
func IsValidName(name string) bool {
	return ValidateName(name) == nil
}
