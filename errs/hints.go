package errs

import "strings"

// SyntaxHint pattern-matches a raw parser expectation message into a
// one-line, user-facing remediation hint, suppressing over-long
// expectation lists in favour of intent (spec.md §4.1). Returns "" when
// nothing matches; callers should leave Hint unset in that case rather
// than invent one.
func SyntaxHint(message string) string {
	m := strings.ToLower(message)

	switch {
	case strings.Contains(m, "expected directive"):
		return "a directive starts with '/' (or legacy '@') at the start of a line"
	case strings.Contains(m, "unclosed") && strings.Contains(m, "brace"):
		return "every '{' needs a matching '}' inside this directive"
	case strings.Contains(m, "unclosed") && strings.Contains(m, "template"):
		return "every opening ` or :: or ::: needs a matching closing delimiter"
	case strings.Contains(m, "unclosed") && strings.Contains(m, "string"):
		return "every quote must be closed on the same logical line"
	case strings.Contains(m, "expected '='"):
		return "/var needs an '=' between the name and its value: /var @name = value"
	case strings.Contains(m, "expected identifier") && strings.Contains(m, "param"):
		return "parameter lists are comma-separated names: (a, b, c)"
	case strings.Contains(m, "unexpected") && strings.Contains(m, "{{"):
		return "{{var}} interpolation only works inside ::: wrapped templates"
	default:
		return ""
	}
}
