package asm

import "fmt"

// ---------------------------------------------------------------------------
// Token types for the assembly lexer
// ---------------------------------------------------------------------------

// TokenType represents the type of a token.
type TokenType int

const (
	// Special tokens
	TokenEOF TokenType = iota
	TokenError
	TokenNewline

	// Literals
	TokenInteger    // 42, -7
	TokenString     // 'hello', 'it''s'
	TokenIdentifier // push_self, Sample.foo, Object[], String.concat:

	// Keywords
	TokenKeyword // loop:, argument:
)

var tokenNames = map[TokenType]string{
	TokenEOF:        "EOF",
	TokenError:      "ERROR",
	TokenNewline:    "NEWLINE",
	TokenInteger:    "INTEGER",
	TokenString:     "STRING",
	TokenIdentifier: "IDENTIFIER",
	TokenKeyword:    "KEYWORD",
}

// String returns the name of the token type.
func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("TokenType(%d)", t)
}

// Position is a location in source text.
type Position struct {
	Offset int // byte offset, 0-based
	Line   int // 1-based
	Column int // 1-based
}

// String formats the position as line:column.
func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Token is a lexical token. For keywords Literal excludes the colon; for
// strings it holds the unquoted text.
type Token struct {
	Type    TokenType
	Literal string
	Pos     Position
}

// String formats the token for error messages.
func (t Token) String() string {
	switch t.Type {
	case TokenEOF:
		return "end of input"
	case TokenNewline:
		return "end of line"
	case TokenKeyword:
		return t.Literal + ":"
	case TokenString:
		return fmt.Sprintf("'%s'", t.Literal)
	default:
		return t.Literal
	}
}
