package shell

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/anmitsu/go-shlex"
)

// ErrUnterminatedQuote is returned when a line ends inside a quoted string.
var ErrUnterminatedQuote = errors.New("unterminated quote")

// Tokenize turns a raw input line into a token sequence. Unquoted operator
// characters split words even without surrounding whitespace. Quotes and
// escapes are removed following POSIX rules; the remaining bytes of each
// word reach the program unchanged.
func Tokenize(line string) (*Token, error) {
	var (
		tokens  []Token
		word    strings.Builder
		inWord  bool
		quote   byte
		escaped bool
	)

	flush := func() error {
		if !inWord {
			return nil
		}
		text, err := unquote(word.String())
		if err != nil {
			return err
		}
		tokens = append(tokens, Token{Kind: OptionToken, Text: text})
		word.Reset()
		inWord = false
		return nil
	}

	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case escaped:
			escaped = false
		case quote != 0:
			if c == quote {
				quote = 0
			} else if c == '\\' && quote == '"' {
				escaped = true
			}
		case c == '\\':
			escaped = true
		case c == '\'' || c == '"':
			quote = c
		case isBlank(c):
			if err := flush(); err != nil {
				return nil, err
			}
			continue
		case isOperatorByte(c):
			if err := flush(); err != nil {
				return nil, err
			}
			op := string(c)
			if (c == '&' || c == '|') && i+1 < len(line) && line[i+1] == c {
				op += string(c)
				i++
			}
			tokens = append(tokens, Token{Kind: OperatorToken, Text: op})
			continue
		}
		word.WriteByte(c)
		inWord = true
	}

	if quote != 0 || escaped {
		return nil, ErrUnterminatedQuote
	}
	if err := flush(); err != nil {
		return nil, err
	}

	return NewTokenList(tokens...), nil
}

// unquote strips quotes and escapes from one word. A word made of quotes
// alone is the empty argument.
func unquote(word string) (string, error) {
	words, err := shlex.Split(bytesToRunes(word), true)
	if err != nil {
		return "", fmt.Errorf("tokenize %q: %w", word, err)
	}
	// Words never hold unquoted blanks, so shlex yields at most one.
	return runesToBytes(strings.Join(words, "")), nil
}

// byteRuneBase maps bytes above ASCII into the private use area. shlex
// decodes its input as UTF-8, which would replace invalid bytes.
const byteRuneBase = 0xE000

func bytesToRunes(s string) string {
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		if c := s[i]; c < utf8.RuneSelf {
			sb.WriteByte(c)
		} else {
			sb.WriteRune(byteRuneBase + rune(c))
		}
	}
	return sb.String()
}

func runesToBytes(s string) string {
	var sb strings.Builder
	for _, r := range s {
		if r >= byteRuneBase+utf8.RuneSelf && r <= byteRuneBase+0xFF {
			sb.WriteByte(byte(r - byteRuneBase))
		} else {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

func isBlank(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\v', '\f', '\r':
		return true
	}
	return false
}

func isOperatorByte(c byte) bool {
	switch c {
	case '|', '<', '>', '&':
		return true
	}
	return false
}
