package parser

import (
	"strings"

	"github.com/mlld-lang/mlld-core/ast"
	"github.com/mlld-lang/mlld-core/internal/location"
	"github.com/mlld-lang/mlld-core/lexer"
)

// parseExpression parses one value position: a variable reference, a
// literal (string/number/bool/object/array), or an embedded code fence.
// This is the single entry point every directive slot funnels through
// (spec.md §4.2).
func (p *parser) parseExpression() ast.Node {
	switch p.cur().Type {
	case lexer.AT:
		return p.parseVariableRef()
	case lexer.STRING_SINGLE:
		tok := p.advance()
		return ast.NewStringLiteral(p.genID("lit"), unquote(tok.Text), ast.StringSingle, nil, tok.Span())
	case lexer.STRING_DOUBLE:
		tok := p.advance()
		return ast.NewStringLiteral(p.genID("lit"), unquote(tok.Text), ast.StringDouble, p.splitInterp(unquote(tok.Text)), tok.Span())
	case lexer.BACKTICK:
		return p.parseDelimitedTemplate(lexer.BACKTICK, ast.StringBacktick)
	case lexer.DBLCOLON:
		return p.parseDelimitedTemplate(lexer.DBLCOLON, ast.StringDouble)
	case lexer.TRIPLECOLON:
		return p.parseTripleTemplate()
	case lexer.NUMBER:
		tok := p.advance()
		return ast.NewNumberLiteral(p.genID("lit"), parseFloat(tok.Text), tok.Span())
	case lexer.BOOLEAN:
		tok := p.advance()
		return ast.NewBoolLiteral(p.genID("lit"), tok.Text == "true", tok.Span())
	case lexer.LBRACE:
		return p.parseObjectLiteral()
	case lexer.LBRACKET:
		return p.parseArrayLiteral()
	case lexer.FENCE:
		return p.parseCodeFence()
	default:
		tok := p.advance()
		p.errAt(tok.Span(), "expected a value, found %s %q", tok.Type, tok.Text)
		return &ast.ErrorNode{Message: "expected value"}
	}
}

func parseFloat(s string) float64 {
	var n float64
	var neg bool
	i := 0
	if i < len(s) && s[i] == '-' {
		neg = true
		i++
	}
	for ; i < len(s) && s[i] >= '0' && s[i] <= '9'; i++ {
		n = n*10 + float64(s[i]-'0')
	}
	if i < len(s) && s[i] == '.' {
		i++
		frac := 0.1
		for ; i < len(s) && s[i] >= '0' && s[i] <= '9'; i++ {
			n += float64(s[i]-'0') * frac
			frac /= 10
		}
	}
	if neg {
		n = -n
	}
	return n
}

// parseVariableRef parses `@name` plus its optional field-access tail and
// withClause.
func (p *parser) parseVariableRef() *ast.VariableRef {
	name, span, ok := p.parseAtName()
	if !ok {
		return ast.NewVariableRef(p.genID("var"), "", span)
	}
	ref := ast.NewVariableRef(p.genID("var"), name, span)
	ref.Fields = p.parseFieldTail()
	ref.With = p.parseWithClause()
	return ref
}

// splitInterp walks a double-quoted string body and splits it into
// alternating Text/VariableRef segments on bare `@identifier` references,
// matching the double-quote interpolation regime (spec.md §4.1).
func (p *parser) splitInterp(body string) []ast.Node {
	var out []ast.Node
	i := 0
	textStart := 0
	for i < len(body) {
		if body[i] == '@' && i+1 < len(body) && isIdentByte(body[i+1], true) {
			if i > textStart {
				out = append(out, ast.NewText(p.genID("txt"), body[textStart:i], location.Span{}))
			}
			j := i + 1
			for j < len(body) && isIdentByte(body[j], false) {
				j++
			}
			out = append(out, ast.NewVariableRef(p.genID("var"), body[i+1:j], location.Span{}))
			i = j
			textStart = i
			continue
		}
		i++
	}
	if textStart < len(body) {
		out = append(out, ast.NewText(p.genID("txt"), body[textStart:], location.Span{}))
	}
	return out
}

func isIdentByte(b byte, start bool) bool {
	if (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || b == '_' {
		return true
	}
	if start {
		return false
	}
	return b >= '0' && b <= '9' || b == '-'
}

// parseDelimitedTemplate parses a backtick or `::` delimited template:
// consecutive TEXT and AT tokens until the matching closing delimiter,
// which the lexer emits with the same token type as the opener.
func (p *parser) parseDelimitedTemplate(open lexer.TokenType, style ast.StringStyle) *ast.Literal {
	openTok, _ := p.expect(open)
	var segs []ast.Node
	var raw string
	for !p.at(open) && !p.at(lexer.EOF) {
		switch p.cur().Type {
		case lexer.TEXT:
			tok := p.advance()
			segs = append(segs, ast.NewText(p.genID("txt"), tok.Text, tok.Span()))
			raw += tok.Text
		case lexer.AT:
			ref := p.parseVariableRef()
			segs = append(segs, ref)
			raw += ref.String()
		default:
			tok := p.advance()
			raw += tok.Text
		}
	}
	closeTok, _ := p.expect(open)
	span := location.Cover(openTok.Span(), closeTok.Span())
	return ast.NewStringLiteral(p.genID("lit"), raw, style, segs, span)
}

// parseTripleTemplate parses a `:::` delimited template, whose only
// interpolation trigger is `{{identifier}}` (spec.md §4.1).
func (p *parser) parseTripleTemplate() *ast.Literal {
	openTok, _ := p.expect(lexer.TRIPLECOLON)
	var segs []ast.Node
	var raw string
	for !p.at(lexer.TRIPLECOLON) && !p.at(lexer.EOF) {
		switch p.cur().Type {
		case lexer.TEXT:
			tok := p.advance()
			segs = append(segs, ast.NewText(p.genID("txt"), tok.Text, tok.Span()))
			raw += tok.Text
		case lexer.DBLBRACE:
			p.advance()
			raw += "{{"
			nameTok, ok := p.expect(lexer.IDENTIFIER)
			if ok {
				ref := ast.NewVariableRef(p.genID("var"), nameTok.Text, nameTok.Span())
				ref.Fields = p.parseFieldTail()
				segs = append(segs, ref)
				raw += ref.String()
			}
			p.expect(lexer.DBLBRACE_CLOSE)
			raw += "}}"
		default:
			tok := p.advance()
			raw += tok.Text
		}
	}
	closeTok, _ := p.expect(lexer.TRIPLECOLON)
	span := location.Cover(openTok.Span(), closeTok.Span())
	return ast.NewStringLiteral(p.genID("lit"), raw, ast.StringDouble, segs, span)
}

func (p *parser) parseObjectLiteral() *ast.Literal {
	start := p.cur().Span()
	p.expect(lexer.LBRACE)
	var props []ast.ObjectProperty
	for !p.at(lexer.RBRACE) && !p.at(lexer.EOF) {
		var key string
		switch p.cur().Type {
		case lexer.IDENTIFIER:
			key = p.advance().Text
		case lexer.STRING_SINGLE, lexer.STRING_DOUBLE:
			key = unquote(p.advance().Text)
		default:
			tok := p.advance()
			p.errAt(tok.Span(), "expected an object key, found %s %q", tok.Type, tok.Text)
			break
		}
		p.expect(lexer.COLON)
		val := p.parseExpression()
		props = append(props, ast.ObjectProperty{Key: key, Value: val})
		if !p.accept(lexer.COMMA) {
			break
		}
	}
	endTok, _ := p.expect(lexer.RBRACE)
	return ast.NewObjectLiteral(p.genID("lit"), props, location.Cover(start, endTok.Span()))
}

func (p *parser) parseArrayLiteral() *ast.Literal {
	start := p.cur().Span()
	p.expect(lexer.LBRACKET)
	var items []ast.Node
	for !p.at(lexer.RBRACKET) && !p.at(lexer.EOF) {
		items = append(items, p.parseExpression())
		if !p.accept(lexer.COMMA) {
			break
		}
	}
	endTok, _ := p.expect(lexer.RBRACKET)
	return ast.NewArrayLiteral(p.genID("lit"), items, location.Cover(start, endTok.Span()))
}

func (p *parser) parseCodeFence() *ast.CodeFence {
	start := p.cur().Span()
	p.expect(lexer.FENCE)
	lang := ""
	if p.at(lexer.IDENTIFIER) {
		lang = p.advance().Text
	}
	var segs []ast.Node
	var raw string
	for !p.at(lexer.FENCE) && !p.at(lexer.EOF) {
		switch p.cur().Type {
		case lexer.AT:
			ref := p.parseVariableRef()
			segs = append(segs, ref)
			raw += ref.String()
		default:
			tok := p.advance()
			segs = append(segs, ast.NewText(p.genID("txt"), tok.Text, tok.Span()))
			raw += tok.Text
		}
	}
	endTok, _ := p.expect(lexer.FENCE)
	return ast.NewCodeFence(p.genID("fence"), lang, segs, raw, location.Cover(start, endTok.Span()))
}

// parseParamList parses the `(a, b, c)` parameter list of an exe
// definition.
func (p *parser) parseParamList() []string {
	var params []string
	p.expect(lexer.LPAREN)
	for !p.at(lexer.RPAREN) && !p.at(lexer.EOF) {
		tok, ok := p.expect(lexer.IDENTIFIER)
		if !ok {
			break
		}
		params = append(params, tok.Text)
		if !p.accept(lexer.COMMA) {
			break
		}
	}
	p.expect(lexer.RPAREN)
	return params
}

// ---- directive parse functions ----

func (p *parser) parseVar(kw lexer.Token) *ast.Directive {
	name, nameSpan, ok := p.parseAtName()
	if !ok {
		p.skipToNewline()
		return nil
	}
	p.expect(lexer.EQUALS)
	// A var's right-hand side may itself be an inline `run` invocation
	// (e.g. `/var @r = run "echo hi" | @upper`); parseRun already
	// consumes its own withClause/pipeline and the trailing directive
	// end, so the nested Directive stands in as the value node.
	if p.at(lexer.RUN) {
		runKw := p.advance()
		runDir := p.parseRun(runKw)
		d := ast.NewDirective(p.genID("dir"), ast.DirectiveVar, ast.SubtypeVar, location.Cover(kw.Span(), p.cur().Span()))
		d.SetSlot("name", []ast.Node{ast.NewText(p.genID("txt"), name, nameSpan)}, name)
		d.SetSlot("value", []ast.Node{runDir}, runDir.RawSlot("body"))
		return d
	}
	valStart := p.cur().Span()
	val := p.parseExpression()
	valRaw := p.rawSince(valStart)
	with := p.parseWithClause()
	d := ast.NewDirective(p.genID("dir"), ast.DirectiveVar, ast.SubtypeVar, location.Cover(kw.Span(), p.cur().Span()))
	d.SetSlot("name", []ast.Node{ast.NewText(p.genID("txt"), name, nameSpan)}, name)
	d.SetSlot("value", []ast.Node{val}, valRaw)
	if with != nil {
		d.Meta["with"] = with
	}
	p.acceptDirectiveEnd()
	return d
}

func (p *parser) parseExe(kw lexer.Token) *ast.Directive {
	name, nameSpan, ok := p.parseAtName()
	if !ok {
		p.skipToNewline()
		return nil
	}
	var params []string
	if p.at(lexer.LPAREN) {
		params = p.parseParamList()
	}
	p.expect(lexer.EQUALS)
	subtype := ast.SubtypeExecCommand
	bodyStart := p.cur().Span()
	var body ast.Node
	switch p.cur().Type {
	case lexer.FENCE:
		subtype = ast.SubtypeExecCode
		body = p.parseCodeFence()
	case lexer.BACKTICK, lexer.DBLCOLON, lexer.TRIPLECOLON:
		subtype = ast.SubtypeExecTemplate
		body = p.parseExpression()
	default:
		body = p.parseExpression()
	}
	bodyRaw := p.rawSince(bodyStart)
	with := p.parseWithClause()
	d := ast.NewDirective(p.genID("dir"), ast.DirectiveExe, subtype, location.Cover(kw.Span(), p.cur().Span()))
	d.SetSlot("name", []ast.Node{ast.NewText(p.genID("txt"), name, nameSpan)}, name)
	if len(params) > 0 {
		d.Meta["params"] = params
	}
	d.SetSlot("body", []ast.Node{body}, bodyRaw)
	if with != nil {
		d.Meta["with"] = with
	}
	p.acceptDirectiveEnd()
	return d
}

func (p *parser) parseShow(kw lexer.Token) *ast.Directive {
	subtype := ast.SubtypeShowVariable
	valStart := p.cur().Span()
	var val ast.Node
	switch p.cur().Type {
	case lexer.AT:
		val = p.parseVariableRef()
	case lexer.BACKTICK, lexer.DBLCOLON, lexer.TRIPLECOLON:
		subtype = ast.SubtypeShowTemplate
		val = p.parseExpression()
	default:
		val = p.parseExpression()
	}
	valRaw := p.rawSince(valStart)
	// A variable reference already consumes its own trailing withClause
	// (pipeline) as part of parseVariableRef; only parse one here for
	// the template/other cases, so a show modifier like headerShift has
	// somewhere to attach regardless of operand kind.
	var with *ast.WithClause
	if _, isRef := val.(*ast.VariableRef); !isRef {
		with = p.parseWithClause()
	}
	d := ast.NewDirective(p.genID("dir"), ast.DirectiveShow, subtype, location.Cover(kw.Span(), p.cur().Span()))
	d.SetSlot("value", []ast.Node{val}, valRaw)
	if with != nil {
		d.Meta["with"] = with
	}
	p.acceptDirectiveEnd()
	return d
}

func (p *parser) parseRun(kw lexer.Token) *ast.Directive {
	subtype := ast.SubtypeRunCommand
	bodyStart := p.cur().Span()
	var body ast.Node
	switch p.cur().Type {
	case lexer.FENCE:
		subtype = ast.SubtypeRunCode
		body = p.parseCodeFence()
	case lexer.AT:
		subtype = ast.SubtypeRunExec
		body = p.parseVariableRef()
	default:
		body = p.parseExpression()
	}
	bodyRaw := p.rawSince(bodyStart)
	with := p.parseWithClause()
	d := ast.NewDirective(p.genID("dir"), ast.DirectiveRun, subtype, location.Cover(kw.Span(), p.cur().Span()))
	d.SetSlot("body", []ast.Node{body}, bodyRaw)
	if with != nil {
		d.Meta["with"] = with
	}
	p.acceptDirectiveEnd()
	return d
}

func (p *parser) parseImport(kw lexer.Token) *ast.Directive {
	subtype := ast.SubtypeImportAll
	var names []ast.Node
	var namesRaw string
	aliases := map[string]string{}
	if p.at(lexer.LBRACE) {
		subtype = ast.SubtypeImportSelected
		p.advance()
		namesStart := p.cur().Span()
		for !p.at(lexer.RBRACE) && !p.at(lexer.EOF) {
			nameTok, ok := p.expect(lexer.IDENTIFIER)
			if !ok {
				break
			}
			if p.at(lexer.AS) {
				p.advance()
				if a, ok := p.expect(lexer.IDENTIFIER); ok {
					aliases[nameTok.Text] = a.Text
				}
			}
			names = append(names, ast.NewVariableRef(p.genID("var"), nameTok.Text, nameTok.Span()))
			if !p.accept(lexer.COMMA) {
				break
			}
		}
		namesRaw = p.rawSince(namesStart)
		p.expect(lexer.RBRACE)
	}
	p.expect(lexer.FROM)
	pathStart := p.cur().Span()
	pathVal := p.parseExpression()
	pathRaw := p.rawSince(pathStart)
	d := ast.NewDirective(p.genID("dir"), ast.DirectiveImport, subtype, location.Cover(kw.Span(), p.cur().Span()))
	if len(names) > 0 {
		d.SetSlot("names", names, namesRaw)
	}
	if len(aliases) > 0 {
		d.Meta["aliases"] = aliases
	}
	d.SetSlot("path", []ast.Node{pathVal}, pathRaw)
	p.acceptDirectiveEnd()
	return d
}

func (p *parser) parseExport(kw lexer.Token) *ast.Directive {
	var names []ast.Node
	p.expect(lexer.LBRACE)
	namesStart := p.cur().Span()
	for !p.at(lexer.RBRACE) && !p.at(lexer.EOF) {
		nameTok, ok := p.expect(lexer.IDENTIFIER)
		if !ok {
			break
		}
		names = append(names, ast.NewVariableRef(p.genID("var"), nameTok.Text, nameTok.Span()))
		if !p.accept(lexer.COMMA) {
			break
		}
	}
	namesRaw := p.rawSince(namesStart)
	p.expect(lexer.RBRACE)
	d := ast.NewDirective(p.genID("dir"), ast.DirectiveExport, "", location.Cover(kw.Span(), p.cur().Span()))
	d.SetSlot("names", names, namesRaw)
	p.acceptDirectiveEnd()
	return d
}

func (p *parser) parsePath(kw lexer.Token) *ast.Directive {
	name, nameSpan, ok := p.parseAtName()
	if !ok {
		p.skipToNewline()
		return nil
	}
	p.expect(lexer.EQUALS)
	valStart := p.cur().Span()
	val := p.parseExpression()
	d := ast.NewDirective(p.genID("dir"), ast.DirectivePath, ast.SubtypeAddPath, location.Cover(kw.Span(), p.cur().Span()))
	d.SetSlot("name", []ast.Node{ast.NewText(p.genID("txt"), name, nameSpan)}, name)
	d.SetSlot("value", []ast.Node{val}, p.rawSince(valStart))
	p.acceptDirectiveEnd()
	return d
}

func (p *parser) parseFor(kw lexer.Token) *ast.Directive {
	itemName, itemSpan, ok := p.parseAtName()
	if !ok {
		p.skipToNewline()
		return nil
	}
	p.expect(lexer.IN)
	iterStart := p.cur().Span()
	iterable := p.parseExpression()
	iterRaw := p.rawSince(iterStart)
	d := ast.NewDirective(p.genID("dir"), ast.DirectiveFor, ast.SubtypeForIterate, location.Cover(kw.Span(), p.cur().Span()))
	d.SetSlot("item", []ast.Node{ast.NewText(p.genID("txt"), itemName, itemSpan)}, itemName)
	d.SetSlot("iterable", []ast.Node{iterable}, iterRaw)
	if p.at(lexer.LBRACE) {
		p.advance()
		bodyStart := p.cur().Span()
		var body []ast.Node
		for !p.at(lexer.RBRACE) && !p.at(lexer.EOF) {
			switch p.cur().Type {
			case lexer.SLASH, lexer.LEGACY_AT:
				p.advance()
				if inner := p.parseDirective(); inner != nil {
					body = append(body, inner)
				}
			case lexer.TEXT:
				tok := p.advance()
				body = append(body, ast.NewText(p.genID("txt"), tok.Text, tok.Span()))
			case lexer.NEWLINE:
				p.advance()
			default:
				p.advance()
			}
		}
		bodyRaw := p.rawSince(bodyStart)
		p.expect(lexer.RBRACE)
		d.SetSlot("body", body, bodyRaw)
	}
	p.acceptDirectiveEnd()
	return d
}

func (p *parser) parseWhen(kw lexer.Token) *ast.Directive {
	d := ast.NewDirective(p.genID("dir"), ast.DirectiveWhen, ast.SubtypeWhenMatch, kw.Span())
	var conds []ast.Node
	var actions []ast.Node
	var condRaws, actionRaws []string
	p.expect(lexer.LBRACE)
	for !p.at(lexer.RBRACE) && !p.at(lexer.EOF) {
		condStart := p.cur().Span()
		cond := p.parseWhenCondition()
		condRaws = append(condRaws, p.rawSince(condStart))
		p.expect(lexer.ARROW)
		actionStart := p.cur().Span()
		action := p.parseExpression()
		actionRaws = append(actionRaws, p.rawSince(actionStart))
		conds = append(conds, cond)
		actions = append(actions, action)
		if !p.accept(lexer.COMMA) {
			p.accept(lexer.NEWLINE)
		}
	}
	p.expect(lexer.RBRACE)
	d.SetSlot("conditions", conds, strings.Join(condRaws, ", "))
	d.SetSlot("actions", actions, strings.Join(actionRaws, ", "))
	d.Span = location.Cover(kw.Span(), p.cur().Span())
	p.acceptDirectiveEnd()
	return d
}

// parseWhenCondition parses one `when` arm's condition: either a bare
// expression (matched by truthiness, or always for the `*` wildcard) or
// an `left == right` equality pattern (spec.md §4.3).
func (p *parser) parseWhenCondition() ast.Node {
	start := p.cur().Span()
	if p.at(lexer.ILLEGAL) && p.cur().Text == "*" {
		tok := p.advance()
		return ast.NewVariableRef(p.genID("var"), "*", tok.Span())
	}
	left := p.parseExpression()
	if !p.at(lexer.EQEQ) {
		return left
	}
	p.advance()
	right := p.parseExpression()
	return ast.NewEqualityExpr(p.genID("eq"), left, right, location.Cover(start, p.cur().Span()))
}

func (p *parser) parseCheckpoint(kw lexer.Token) *ast.Directive {
	d := ast.NewDirective(p.genID("dir"), ast.DirectiveCheckpoint, ast.SubtypeCheckpointMark, kw.Span())
	if p.at(lexer.AT) {
		name, nameSpan, ok := p.parseAtName()
		if ok {
			d.SetSlot("name", []ast.Node{ast.NewText(p.genID("txt"), name, nameSpan)}, name)
		}
	}
	d.Span = location.Cover(kw.Span(), p.cur().Span())
	p.acceptDirectiveEnd()
	return d
}

func (p *parser) parseGuard(kw lexer.Token) *ast.Directive {
	name, nameSpan, _ := p.parseAtName()
	p.expect(lexer.EQUALS)
	policyStart := p.cur().Span()
	policy := p.parseExpression()
	policyRaw := p.rawSince(policyStart)
	d := ast.NewDirective(p.genID("dir"), ast.DirectiveGuard, ast.SubtypeGuardPolicy, kw.Span())
	d.SetSlot("name", []ast.Node{ast.NewText(p.genID("txt"), name, nameSpan)}, name)
	d.SetSlot("policy", []ast.Node{policy}, policyRaw)
	d.Span = location.Cover(kw.Span(), p.cur().Span())
	p.acceptDirectiveEnd()
	return d
}

// acceptDirectiveEnd consumes the NEWLINE that terminates a directive, if
// one is still pending (some directive parsers already consume it via a
// nested construct such as a `{ ... }` block).
func (p *parser) acceptDirectiveEnd() {
	p.accept(lexer.NEWLINE)
}
