package shell

import "strings"

// TokenKind tags a Token.
type TokenKind int

const (
	// PipelineToken only appears after a chain has been built.
	PipelineToken TokenKind = iota
	OperatorToken
	OptionToken
	BuiltInToken
)

func (k TokenKind) String() string {
	switch k {
	case PipelineToken:
		return "pipeline"
	case OperatorToken:
		return "operator"
	case OptionToken:
		return "option"
	case BuiltInToken:
		return "builtin"
	default:
		return "unknown"
	}
}

// Operators understood by the lexer, validator and builder.
const (
	OpPipe       = "|"
	OpInput      = "<"
	OpOutput     = ">"
	OpAnd        = "&&"
	OpOr         = "||"
	OpBackground = "&"
)

// Token is one element of a singly linked token sequence.
type Token struct {
	Kind TokenKind
	Text string
	Next *Token
}

// IsOperator reports whether the token is the given operator.
func (t *Token) IsOperator(op string) bool {
	return t != nil && t.Kind == OperatorToken && t.Text == op
}

// NewTokenList links the given tokens together, for callers that build
// sequences by hand.
func NewTokenList(tokens ...Token) *Token {
	var head *Token
	for i := len(tokens) - 1; i >= 0; i-- {
		tok := tokens[i]
		tok.Next = head
		head = &tok
	}
	return head
}

// Len returns the number of tokens in the sequence starting at t.
func (t *Token) Len() int {
	n := 0
	for ; t != nil; t = t.Next {
		n++
	}
	return n
}

// String renders the sequence space separated.
func (t *Token) String() string {
	var parts []string
	for ; t != nil; t = t.Next {
		parts = append(parts, t.Text)
	}
	return strings.Join(parts, " ")
}
