package compiler

import (
	"unicode"
	"unicode/utf8"
)

// ---------------------------------------------------------------------------
// Scanner: tokenizer for function bodies
// ---------------------------------------------------------------------------

// TokenKind classifies a scanned token.
type TokenKind uint8

const (
	TokenEOF TokenKind = iota
	TokenIdent
	TokenKeyword
	TokenNumber
	TokenString
	TokenPunct
	TokenIllegal
)

func (k TokenKind) String() string {
	switch k {
	case TokenEOF:
		return "EOF"
	case TokenIdent:
		return "identifier"
	case TokenKeyword:
		return "keyword"
	case TokenNumber:
		return "number"
	case TokenString:
		return "string"
	case TokenPunct:
		return "punctuation"
	}
	return "illegal"
}

// Token is a scanned token. Offset is relative to the unit's source.
type Token struct {
	Kind   TokenKind
	Text   string
	Offset int
}

var keywords = map[string]bool{
	"function": true,
	"return":   true,
	"var":      true,
	"let":      true,
	"const":    true,
	"if":       true,
	"else":     true,
	"while":    true,
	"for":      true,
	"class":    true,
	"new":      true,
	"this":     true,
}

// Scanner tokenizes src[start:end] of a unit's source.
type Scanner struct {
	input   string
	pos     int  // offset of ch
	readPos int  // offset after ch
	end     int  // scanning stops here
	ch      rune // current character, 0 at end
}

// NewScanner creates a scanner over input[start:end].
func NewScanner(input string, start, end int) *Scanner {
	if end > len(input) {
		end = len(input)
	}
	if start > end {
		start = end
	}
	s := &Scanner{input: input, readPos: start, end: end}
	s.readChar()
	return s
}

func (s *Scanner) readChar() {
	if s.readPos >= s.end {
		s.ch = 0
		s.pos = s.end
		return
	}
	r, size := utf8.DecodeRuneInString(s.input[s.readPos:s.end])
	s.ch = r
	s.pos = s.readPos
	s.readPos += size
}

func (s *Scanner) peekChar() rune {
	if s.readPos >= s.end {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(s.input[s.readPos:s.end])
	return r
}

func (s *Scanner) skipWhitespaceAndComments() {
	for {
		switch {
		case s.ch != 0 && unicode.IsSpace(s.ch):
			s.readChar()
		case s.ch == '/' && s.peekChar() == '/':
			for s.ch != 0 && s.ch != '\n' {
				s.readChar()
			}
		case s.ch == '/' && s.peekChar() == '*':
			s.readChar()
			s.readChar()
			for s.ch != 0 && !(s.ch == '*' && s.peekChar() == '/') {
				s.readChar()
			}
			if s.ch != 0 {
				s.readChar()
				s.readChar()
			}
		default:
			return
		}
	}
}

// Next returns the next token, TokenEOF at the end of the range.
func (s *Scanner) Next() Token {
	s.skipWhitespaceAndComments()

	start := s.pos
	switch {
	case s.ch == 0:
		return Token{Kind: TokenEOF, Offset: start}

	case isIdentStart(s.ch):
		for isIdentPart(s.ch) {
			s.readChar()
		}
		text := s.input[start:s.pos]
		if keywords[text] {
			return Token{Kind: TokenKeyword, Text: text, Offset: start}
		}
		return Token{Kind: TokenIdent, Text: text, Offset: start}

	case unicode.IsDigit(s.ch):
		for unicode.IsDigit(s.ch) || s.ch == '.' || s.ch == '_' {
			s.readChar()
		}
		return Token{Kind: TokenNumber, Text: s.input[start:s.pos], Offset: start}

	case s.ch == '"' || s.ch == '\'' || s.ch == '`':
		quote := s.ch
		s.readChar()
		for s.ch != 0 && s.ch != quote {
			if s.ch == '\\' {
				s.readChar()
			}
			s.readChar()
		}
		if s.ch == 0 {
			return Token{Kind: TokenIllegal, Text: s.input[start:s.pos], Offset: start}
		}
		s.readChar()
		return Token{Kind: TokenString, Text: s.input[start:s.pos], Offset: start}
	}

	s.readChar()
	return Token{Kind: TokenPunct, Text: s.input[start:s.pos], Offset: start}
}

func isIdentStart(r rune) bool {
	return r == '_' || r == '$' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return isIdentStart(r) || unicode.IsDigit(r)
}
