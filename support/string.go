// Package support provides the string helpers the builder's dynamic
// method parsing relies on.
package support

import (
	"strings"
	"unicode"
)

// Str provides string helper functions.
var Str = &StringHelper{}

// StringHelper contains string manipulation methods.
type StringHelper struct{}

// Snake converts a string to snake_case.
func (s *StringHelper) Snake(str string) string {
	words := s.words(str)
	for i := range words {
		words[i] = strings.ToLower(words[i])
	}
	return strings.Join(words, "_")
}

// words splits a string on case boundaries and separators.
func (s *StringHelper) words(str string) []string {
	var words []string
	var word strings.Builder
	for i, r := range str {
		if unicode.IsUpper(r) && i > 0 {
			if word.Len() > 0 {
				words = append(words, word.String())
				word.Reset()
			}
		}
		if r == '_' || r == '-' || r == ' ' {
			if word.Len() > 0 {
				words = append(words, word.String())
				word.Reset()
			}
			continue
		}
		word.WriteRune(r)
	}
	if word.Len() > 0 {
		words = append(words, word.String())
	}
	return words
}
