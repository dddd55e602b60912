// Package parser turns mlld source into a typed ast.Program. It is a
// hand-rolled, PEG-style recursive-descent parser: each directive rule is
// tried in a fixed order (ordered choice), every semantic sub-part is
// parsed into child nodes immediately rather than deferred to a
// re-parse, and the verbatim source substring for each slot is preserved
// alongside it (spec.md §4.1). The parser never backtracks across a
// directive boundary — once a directive keyword is recognised, a parse
// failure inside it produces an ast.ErrorNode plus a collected
// *errs.Error rather than abandoning the whole file (permissive mode).
package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mlld-lang/mlld-core/ast"
	"github.com/mlld-lang/mlld-core/errs"
	"github.com/mlld-lang/mlld-core/internal/location"
	"github.com/mlld-lang/mlld-core/lexer"
)

// Options configure a Parse call.
type Options struct {
	// Strict stops parsing at the first parse error. Parse errors are
	// always collected; Strict only changes whether parsing continues
	// past one.
	Strict bool
	// FilePath is attached to every produced location for error messages.
	FilePath string
	// MaxErrors bounds error collection so a badly malformed file does
	// not produce unbounded diagnostics.
	MaxErrors int
}

// Option mutates an Options value.
type Option func(*Options)

func WithStrict() Option            { return func(o *Options) { o.Strict = true } }
func WithFilePath(p string) Option  { return func(o *Options) { o.FilePath = p } }
func WithMaxErrors(n int) Option    { return func(o *Options) { o.MaxErrors = n } }

// Result is everything Parse produces: the AST and any collected errors.
// A non-empty Errors slice does not necessarily mean Program is unusable
// — permissive mode keeps parsing past recoverable errors.
type Result struct {
	Program *ast.Program
	Errors  []*errs.Error
}

// Parse tokenizes and parses source into an ast.Program.
func Parse(source []byte, opts ...Option) *Result {
	o := &Options{MaxErrors: 100}
	for _, opt := range opts {
		opt(o)
	}
	var tokens []lexer.Token
	for _, t := range lexer.Tokenize(source) {
		if t.Type == lexer.COMMENT {
			continue
		}
		tokens = append(tokens, t)
	}
	p := &parser{
		tokens: tokens,
		source: source,
		opts:   o,
	}
	program := p.parseProgram()
	return &Result{Program: program, Errors: p.errors}
}

type parser struct {
	tokens []lexer.Token
	source []byte
	pos    int
	opts   *Options
	errors []*errs.Error
	nextID int
}

// rawSince returns the verbatim source text from the start of from's span
// up to (but not including) the current token's start — used to preserve
// a directive slot's original text alongside its parsed form.
func (p *parser) rawSince(from location.Span) string {
	end := p.cur().Start.Offset
	start := from.Start.Offset
	if start < 0 || end > len(p.source) || start > end {
		return ""
	}
	return strings.TrimSpace(string(p.source[start:end]))
}

// rawSpan returns the verbatim source text covered by span.
func (p *parser) rawSpan(span location.Span) string {
	start, end := span.Start.Offset, span.End.Offset
	if start < 0 || end > len(p.source) || start > end {
		return ""
	}
	return string(p.source[start:end])
}

func (p *parser) genID(prefix string) string {
	p.nextID++
	return fmt.Sprintf("%s%d", prefix, p.nextID)
}

func (p *parser) cur() lexer.Token {
	if p.pos >= len(p.tokens) {
		return lexer.Token{Type: lexer.EOF}
	}
	return p.tokens[p.pos]
}

func (p *parser) peek(n int) lexer.Token {
	idx := p.pos + n
	if idx >= len(p.tokens) {
		return lexer.Token{Type: lexer.EOF}
	}
	return p.tokens[idx]
}

func (p *parser) advance() lexer.Token {
	t := p.cur()
	if p.pos < len(p.tokens) {
		p.pos++
	}
	return t
}

func (p *parser) at(t lexer.TokenType) bool { return p.cur().Type == t }

func (p *parser) accept(t lexer.TokenType) (lexer.Token, bool) {
	if p.at(t) {
		return p.advance(), true
	}
	return lexer.Token{}, false
}

func (p *parser) expect(t lexer.TokenType) (lexer.Token, bool) {
	if tok, ok := p.accept(t); ok {
		return tok, true
	}
	p.errAt(p.cur().Span(), "expected %s, found %s %q", t, p.cur().Type, p.cur().Text)
	return lexer.Token{}, false
}

func (p *parser) errAt(span location.Span, format string, args ...any) {
	if len(p.errors) >= p.opts.MaxErrors {
		return
	}
	msg := fmt.Sprintf(format, args...)
	e := errs.New(errs.KindParseError, "%s", msg).At(p.opts.FilePath, span)
	if hint := errs.SyntaxHint(msg); hint != "" {
		e.WithHint(hint)
	}
	p.errors = append(p.errors, e)
}

func (p *parser) parseProgram() *ast.Program {
	prog := &ast.Program{}
	for !p.at(lexer.EOF) {
		if p.opts.Strict && len(p.errors) > 0 {
			break
		}
		switch p.cur().Type {
		case lexer.TEXT:
			tok := p.advance()
			if tok.Text == "" {
				continue
			}
			prog.Nodes = append(prog.Nodes, ast.NewText(p.genID("txt"), tok.Text, tok.Span()))
		case lexer.SLASH, lexer.LEGACY_AT:
			p.advance()
			d := p.parseDirective()
			if d != nil {
				prog.Nodes = append(prog.Nodes, d)
			}
		case lexer.NEWLINE:
			p.advance()
		default:
			// Unexpected token at top level; wrap it in an ErrorNode and
			// keep going so one bad directive doesn't sink the file.
			tok := p.advance()
			p.errAt(tok.Span(), "unexpected token %s %q at top level", tok.Type, tok.Text)
			prog.Nodes = append(prog.Nodes, &ast.ErrorNode{Message: "unexpected " + tok.Type.String()})
		}
	}
	return prog
}

func (p *parser) parseDirective() *ast.Directive {
	kw := p.cur()
	switch kw.Type {
	case lexer.VAR:
		p.advance()
		return p.parseVar(kw)
	case lexer.EXE:
		p.advance()
		return p.parseExe(kw)
	case lexer.SHOW, lexer.ADD:
		p.advance()
		return p.parseShow(kw)
	case lexer.RUN:
		p.advance()
		return p.parseRun(kw)
	case lexer.IMPORT:
		p.advance()
		return p.parseImport(kw)
	case lexer.EXPORT:
		p.advance()
		return p.parseExport(kw)
	case lexer.PATH:
		p.advance()
		return p.parsePath(kw)
	case lexer.FOR:
		p.advance()
		return p.parseFor(kw)
	case lexer.WHEN:
		p.advance()
		return p.parseWhen(kw)
	case lexer.CHECKPOINT:
		p.advance()
		return p.parseCheckpoint(kw)
	case lexer.GUARD:
		p.advance()
		return p.parseGuard(kw)
	default:
		p.errAt(kw.Span(), "expected a directive keyword, found %q", kw.Text)
		p.skipToNewline()
		return nil
	}
}

func (p *parser) skipToNewline() {
	for !p.at(lexer.NEWLINE) && !p.at(lexer.EOF) {
		p.advance()
	}
	p.accept(lexer.NEWLINE)
}

// parseAtName parses the AT IDENTIFIER pair that names most directive
// operands (`@foo`), returning the name and its span.
func (p *parser) parseAtName() (string, location.Span, bool) {
	atTok, ok := p.expect(lexer.AT)
	if !ok {
		return "", lexer.Token{}.Span(), false
	}
	nameTok, ok := p.expect(lexer.IDENTIFIER)
	if !ok {
		return "", atTok.Span(), false
	}
	return nameTok.Text, location.Cover(atTok.Span(), nameTok.Span()), true
}

// parseFieldTail parses the ordered .name / [index] / [@var] tail that
// may follow a variable reference (spec.md §4.2).
func (p *parser) parseFieldTail() []ast.FieldAccess {
	var tail []ast.FieldAccess
	for {
		switch p.cur().Type {
		case lexer.DOT:
			p.advance()
			nameTok, ok := p.expect(lexer.IDENTIFIER)
			if !ok {
				return tail
			}
			tail = append(tail, ast.FieldAccess{Kind: ast.FieldDot, Name: nameTok.Text})
		case lexer.LBRACKET:
			p.advance()
			if p.at(lexer.AT) {
				name, span, ok := p.parseAtName()
				if !ok {
					return tail
				}
				p.expect(lexer.RBRACKET)
				tail = append(tail, ast.FieldAccess{Kind: ast.FieldDynamic, Var: ast.NewVariableRef(p.genID("var"), name, span)})
				continue
			}
			numTok, ok := p.expect(lexer.NUMBER)
			if !ok {
				return tail
			}
			p.expect(lexer.RBRACKET)
			n, _ := strconv.Atoi(numTok.Text)
			tail = append(tail, ast.FieldAccess{Kind: ast.FieldIndex, Index: n})
		default:
			return tail
		}
	}
}

// parseWithClause parses a trailing `with { pipeline: [...], format: "...", trust: ... }`
// modifier block, or a bare `| @a | @b` pipeline shorthand.
func (p *parser) parseWithClause() *ast.WithClause {
	if p.at(lexer.PIPE) {
		wc := &ast.WithClause{}
		for p.at(lexer.PIPE) {
			p.advance()
			wc.Pipeline = append(wc.Pipeline, p.parsePipelineStage())
		}
		return wc
	}
	if p.at(lexer.WITH) {
		p.advance()
		wc := &ast.WithClause{}
		p.expect(lexer.LBRACE)
		for !p.at(lexer.RBRACE) && !p.at(lexer.EOF) {
			keyTok, ok := p.expect(lexer.IDENTIFIER)
			if !ok {
				break
			}
			p.expect(lexer.COLON)
			switch keyTok.Text {
			case "pipeline":
				p.expect(lexer.LBRACKET)
				for !p.at(lexer.RBRACKET) && !p.at(lexer.EOF) {
					wc.Pipeline = append(wc.Pipeline, p.parsePipelineStage())
					if !p.accept(lexer.COMMA) {
						break
					}
				}
				p.expect(lexer.RBRACKET)
			case "format":
				if s, ok := p.expect(lexer.STRING_DOUBLE); ok {
					wc.Format = unquote(s.Text)
				} else if s, ok := p.expect(lexer.STRING_SINGLE); ok {
					wc.Format = unquote(s.Text)
				}
			case "trust":
				if id, ok := p.expect(lexer.IDENTIFIER); ok {
					wc.Trust = id.Text
				}
			case "headerShift":
				if n, ok := p.expect(lexer.NUMBER); ok {
					wc.HeaderShift = int(parseFloat(n.Text))
				}
			}
			if !p.accept(lexer.COMMA) {
				break
			}
		}
		p.expect(lexer.RBRACE)
		return wc
	}
	return nil
}

func (p *parser) parsePipelineStage() ast.PipelineStageSpec {
	start := p.cur().Span()
	name, _, _ := p.parseAtName()
	spec := ast.PipelineStageSpec{Target: name, Span: start}
	if p.at(lexer.LPAREN) {
		p.advance()
		for !p.at(lexer.RPAREN) && !p.at(lexer.EOF) {
			spec.Args = append(spec.Args, p.parseExpression())
			if !p.accept(lexer.COMMA) {
				break
			}
		}
		p.expect(lexer.RPAREN)
	}
	return spec
}

func unquote(raw string) string {
	if len(raw) < 2 {
		return raw
	}
	body := raw[1 : len(raw)-1]
	return strings.NewReplacer(`\"`, `"`, `\'`, `'`, `\\`, `\`, `\n`, "\n").Replace(body)
}
