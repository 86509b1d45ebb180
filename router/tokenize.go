package router

import (
	"strings"
	"unicode"
)

// Tokenize splits a command line into tokens. Double quotes group words into
// one token and are stripped; an unterminated quote runs to the end of the
// input. Consecutive whitespace is collapsed.
func Tokenize(input string) []string {
	var tokens []string
	var current strings.Builder
	inQuotes := false
	active := false

	flush := func() {
		if active {
			tokens = append(tokens, current.String())
			current.Reset()
			active = false
		}
	}

	for _, r := range input {
		switch {
		case r == '"':
			if inQuotes {
				inQuotes = false
				flush()
			} else {
				inQuotes = true
				active = true
			}
		case unicode.IsSpace(r) && !inQuotes:
			flush()
		default:
			current.WriteRune(r)
			active = true
		}
	}
	flush()

	return tokens
}

// StripPrefix removes the command prefix from message content. The second
// return value reports whether the prefix matched; content that does not
// start with the prefix is not a command invocation at all.
func StripPrefix(content, prefix string) (string, bool) {
	if prefix == "" || !strings.HasPrefix(content, prefix) {
		return "", false
	}
	return strings.TrimLeftFunc(content[len(prefix):], unicode.IsSpace), true
}
