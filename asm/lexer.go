package asm

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ---------------------------------------------------------------------------
// Lexer: Tokenizer for assembly and pragma text
// ---------------------------------------------------------------------------

// Lexer tokenizes assembly source. Newlines are significant and reported as
// TokenNewline; comments run from ';' to the end of the line.
type Lexer struct {
	input   string
	pos     int  // current position in input
	readPos int  // reading position (after current char)
	ch      rune // current character
	line    int  // current line (1-based)
	col     int  // current column (1-based)
}

// NewLexer creates a new lexer for the given input.
func NewLexer(input string) *Lexer {
	l := &Lexer{
		input: input,
		line:  1,
	}
	l.readChar()
	return l
}

// readChar reads the next character.
func (l *Lexer) readChar() {
	if l.ch == '\n' {
		l.line++
		l.col = 0
	}
	if l.readPos >= len(l.input) {
		l.ch = 0 // EOF
		l.pos = l.readPos
		l.col++
		return
	}
	r, size := utf8.DecodeRuneInString(l.input[l.readPos:])
	l.ch = r
	l.pos = l.readPos
	l.readPos += size
	l.col++
}

// peekChar returns the next character without consuming it.
func (l *Lexer) peekChar() rune {
	if l.readPos >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.readPos:])
	return r
}

func (l *Lexer) position() Position {
	return Position{Offset: l.pos, Line: l.line, Column: l.col}
}

// Tokens returns every token up to and including EOF, stopping early at the
// first error token.
func (l *Lexer) Tokens() []Token {
	var out []Token
	for {
		tok := l.NextToken()
		out = append(out, tok)
		if tok.Type == TokenEOF || tok.Type == TokenError {
			return out
		}
	}
}

// NextToken returns the next token.
func (l *Lexer) NextToken() Token {
	l.skipBlanksAndComments()

	pos := l.position()

	switch {
	case l.ch == 0 && l.pos >= len(l.input):
		return Token{Type: TokenEOF, Pos: pos}

	case l.ch == '\n':
		l.readChar()
		return Token{Type: TokenNewline, Literal: "\n", Pos: pos}

	case l.ch == '\'':
		return l.readString(pos)

	case isDigit(l.ch):
		return l.readNumber(pos)

	case l.ch == '-' && isDigit(l.peekChar()):
		return l.readNumber(pos)

	case isLetter(l.ch) || l.ch == '_':
		return l.readIdentifierOrKeyword(pos)

	default:
		ch := l.ch
		l.readChar()
		return Token{Type: TokenError, Literal: fmt.Sprintf("unexpected character: %q", ch), Pos: pos}
	}
}

// skipBlanksAndComments skips spaces, tabs, carriage returns and comments,
// but not newlines.
func (l *Lexer) skipBlanksAndComments() {
	for {
		for l.ch == ' ' || l.ch == '\t' || l.ch == '\r' {
			l.readChar()
		}
		if l.ch == ';' {
			for l.ch != '\n' && !(l.ch == 0 && l.pos >= len(l.input)) {
				l.readChar()
			}
			continue
		}
		return
	}
}

// readString reads a single-quoted string; a doubled quote escapes itself.
func (l *Lexer) readString(pos Position) Token {
	l.readChar() // consume opening '

	var sb strings.Builder
	for {
		if l.ch == 0 && l.pos >= len(l.input) {
			return Token{Type: TokenError, Literal: "unterminated string", Pos: pos}
		}
		if l.ch == '\'' {
			if l.peekChar() == '\'' {
				sb.WriteRune('\'')
				l.readChar()
				l.readChar()
				continue
			}
			l.readChar() // consume closing '
			return Token{Type: TokenString, Literal: sb.String(), Pos: pos}
		}
		sb.WriteRune(l.ch)
		l.readChar()
	}
}

// readNumber reads a decimal integer with an optional leading minus.
func (l *Lexer) readNumber(pos Position) Token {
	start := l.pos
	if l.ch == '-' {
		l.readChar()
	}
	for isDigit(l.ch) {
		l.readChar()
	}
	if isLetter(l.ch) || l.ch == '_' {
		return Token{Type: TokenError, Literal: fmt.Sprintf("malformed number %s%c", l.input[start:l.pos], l.ch), Pos: pos}
	}
	return Token{Type: TokenInteger, Literal: l.input[start:l.pos], Pos: pos}
}

// readIdentifierOrKeyword reads an identifier, a qualified member reference
// or a keyword.
//
// A plain identifier followed by ':' is a keyword (a label or a pragma
// option). Once an identifier is qualified with '.', colons belong to the
// member's selector instead, so "String.concat:" and "Handle.invoke:with:"
// lex as single identifiers. Trailing "[]" pairs form array types.
func (l *Lexer) readIdentifierOrKeyword(pos Position) Token {
	start := l.pos
	qualified := false
	for {
		for isLetter(l.ch) || isDigit(l.ch) || l.ch == '_' {
			l.readChar()
		}
		if l.ch == '.' && (isLetter(l.peekChar()) || l.peekChar() == '_') {
			qualified = true
			l.readChar()
			continue
		}
		break
	}

	if l.ch == ':' {
		if !qualified {
			lit := l.input[start:l.pos]
			l.readChar()
			return Token{Type: TokenKeyword, Literal: lit, Pos: pos}
		}
		for l.ch == ':' {
			l.readChar()
			if !isLetter(l.ch) && l.ch != '_' {
				break
			}
			for isLetter(l.ch) || isDigit(l.ch) || l.ch == '_' {
				l.readChar()
			}
			if l.ch != ':' {
				return Token{Type: TokenError, Literal: fmt.Sprintf("malformed selector %s", l.input[start:l.pos]), Pos: pos}
			}
		}
	}

	for l.ch == '[' && l.peekChar() == ']' {
		l.readChar()
		l.readChar()
	}
	return Token{Type: TokenIdentifier, Literal: l.input[start:l.pos], Pos: pos}
}

func isLetter(ch rune) bool {
	return unicode.IsLetter(ch)
}

func isDigit(ch rune) bool {
	return ch >= '0' && ch <= '9'
}
