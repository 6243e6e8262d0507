package console

import (
	"errors"
	"strings"
)

// ErrUnterminatedQuote is returned for input with an unclosed quote.
var ErrUnterminatedQuote = errors.New("unterminated quote")

// ParseResult holds the parsed command name and arguments from a text line.
type ParseResult struct {
	// Command is the first word of the input, lowercased.
	Command string
	// Args are the remaining words after the command. Quoted words keep
	// their spaces: `act fighter "second wind"` has Args [fighter, second wind].
	Args []string
	// RawArgs is the raw text after the command.
	RawArgs string
}

// Parse splits a text line into a command and arguments.
//
// Postcondition: If line is blank, Command is empty. Returns
// ErrUnterminatedQuote if a quote is never closed.
func Parse(line string) (ParseResult, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return ParseResult{}, nil
	}

	words, err := split(line)
	if err != nil {
		return ParseResult{}, err
	}

	res := ParseResult{Command: strings.ToLower(words[0])}
	if len(words) > 1 {
		res.Args = words[1:]
	}
	if i := strings.IndexAny(line, " \t"); i >= 0 {
		res.RawArgs = strings.TrimSpace(line[i:])
	}
	return res, nil
}

// split breaks s on unquoted whitespace. Single and double quotes group.
func split(s string) ([]string, error) {
	var (
		words []string
		cur   strings.Builder
		quote rune
		inTok bool
	)
	for _, r := range s {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
				continue
			}
			cur.WriteRune(r)
		case r == '"' || r == '\'':
			quote = r
			inTok = true
		case r == ' ' || r == '\t':
			if inTok {
				words = append(words, cur.String())
				cur.Reset()
				inTok = false
			}
		default:
			cur.WriteRune(r)
			inTok = true
		}
	}
	if quote != 0 {
		return nil, ErrUnterminatedQuote
	}
	if inTok {
		words = append(words, cur.String())
	}
	return words, nil
}
