package lexer

import "github.com/mlld-lang/mlld-core/internal/location"

// TokenType classifies a lexical token.
type TokenType int

const (
	EOF TokenType = iota
	ILLEGAL

	NEWLINE

	// Directive markers
	SLASH   // '/'  canonical directive marker at start-of-line
	LEGACY_AT // '@' legacy directive marker at start-of-line

	// Keywords
	VAR
	EXE
	SHOW
	ADD // legacy alias for show
	RUN
	IMPORT
	EXPORT
	PATH
	FOR
	WHEN
	CHECKPOINT
	GUARD
	AS
	FROM
	IN
	WITH

	// Structure
	AT          // '@' inside an expression, introduces a variable reference
	IDENTIFIER
	DOT
	LBRACKET
	RBRACKET
	LPAREN
	RPAREN
	LBRACE
	RBRACE
	EQUALS
	EQEQ // '==' equality comparison, used in when conditions
	COLON
	COMMA
	PIPE
	ARROW

	// Template delimiters
	BACKTICK    // `
	DBLCOLON    // ::
	TRIPLECOLON // :::
	DBLBRACE    // {{
	DBLBRACE_CLOSE

	// Literals and raw content
	STRING_SINGLE
	STRING_DOUBLE
	NUMBER
	BOOLEAN
	TEXT    // markdown prose run
	COMMENT

	// Embedded code fence
	FENCE // ``` delimiter
)

var tokenNames = map[TokenType]string{
	EOF: "EOF", ILLEGAL: "ILLEGAL", NEWLINE: "NEWLINE",
	SLASH: "SLASH", LEGACY_AT: "LEGACY_AT",
	VAR: "var", EXE: "exe", SHOW: "show", ADD: "add", RUN: "run",
	IMPORT: "import", EXPORT: "export", PATH: "path", FOR: "for", WHEN: "when",
	CHECKPOINT: "checkpoint", GUARD: "guard", AS: "as", FROM: "from", IN: "in", WITH: "with",
	AT: "AT", IDENTIFIER: "IDENTIFIER", DOT: "DOT", LBRACKET: "[", RBRACKET: "]",
	LPAREN: "(", RPAREN: ")", LBRACE: "{", RBRACE: "}", EQUALS: "=", EQEQ: "==", COLON: ":",
	COMMA: ",", PIPE: "|", ARROW: "=>",
	BACKTICK: "`", DBLCOLON: "::", TRIPLECOLON: ":::", DBLBRACE: "{{", DBLBRACE_CLOSE: "}}",
	STRING_SINGLE: "STRING_SINGLE", STRING_DOUBLE: "STRING_DOUBLE",
	NUMBER: "NUMBER", BOOLEAN: "BOOLEAN", TEXT: "TEXT", COMMENT: "COMMENT",
	FENCE: "FENCE",
}

func (t TokenType) String() string {
	if n, ok := tokenNames[t]; ok {
		return n
	}
	return "UNKNOWN"
}

var keywords = map[string]TokenType{
	"var": VAR, "exe": EXE, "show": SHOW, "add": ADD, "run": RUN,
	"import": IMPORT, "export": EXPORT, "path": PATH, "for": FOR, "when": WHEN,
	"checkpoint": CHECKPOINT, "guard": GUARD, "as": AS, "from": FROM, "in": IN, "with": WITH,
}

// Token is a single lexical token with its source position.
type Token struct {
	Type  TokenType
	Text  string
	Start location.Position
	End   location.Position
}

func (t Token) Span() location.Span { return location.Span{Start: t.Start, End: t.End} }
