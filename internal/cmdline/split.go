// Package cmdline turns a configured peer command string into an argv.
package cmdline

import (
	"errors"
	"strings"
	"unicode"
)

// ErrUnterminatedQuote is returned for a command string with an open quote.
var ErrUnterminatedQuote = errors.New("unterminated quote in command string")

// ErrEmptyCommand is returned by Parse for a blank command string.
var ErrEmptyCommand = errors.New("empty command")

type quoteState int

const (
	unquoted quoteState = iota
	single
	double
)

// Split tokenizes a command string the way a POSIX shell would for plain
// words: whitespace separates tokens, single quotes are literal, double
// quotes allow \" \\ and \$ escapes, and a backslash outside quotes
// escapes the next character. No expansion is performed.
func Split(input string) ([]string, error) {
	var (
		tokens  []string
		word    strings.Builder
		inWord  bool
		state   = unquoted
		escaped bool
	)

	flush := func() {
		if inWord {
			tokens = append(tokens, word.String())
			word.Reset()
			inWord = false
		}
	}

	for _, r := range input {
		if escaped {
			escaped = false
			if state == double && r != '"' && r != '\\' && r != '$' {
				word.WriteRune('\\')
			}
			word.WriteRune(r)
			continue
		}

		switch state {
		case single:
			if r == '\'' {
				state = unquoted
			} else {
				word.WriteRune(r)
			}
		case double:
			switch r {
			case '"':
				state = unquoted
			case '\\':
				escaped = true
			default:
				word.WriteRune(r)
			}
		default:
			switch {
			case r == '\\':
				escaped, inWord = true, true
			case r == '\'':
				state, inWord = single, true
			case r == '"':
				state, inWord = double, true
			case unicode.IsSpace(r):
				flush()
			default:
				word.WriteRune(r)
				inWord = true
			}
		}
	}

	if state != unquoted {
		return nil, ErrUnterminatedQuote
	}
	if escaped {
		// A trailing backslash stands for itself.
		word.WriteRune('\\')
	}
	flush()
	return tokens, nil
}

// Parse splits command into the program and its arguments.
func Parse(command string) (string, []string, error) {
	tokens, err := Split(command)
	if err != nil {
		return "", nil, err
	}
	if len(tokens) == 0 {
		return "", nil, ErrEmptyCommand
	}
	return tokens[0], tokens[1:], nil
}
