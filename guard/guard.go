// Package guard implements spec.md §4.3's guard directive: evaluating a
// policy predicate before a labelled operation and either allowing or
// denying it with a message. The actual cryptographic operations a
// policy may consult — signing, verification, descriptor merging — are
// external collaborators (spec.md §1 Non-goals, §6): this package only
// defines the narrow interfaces the core calls through, the same
// no-in-tree-implementation pattern env.ModuleResolver uses for module
// fetching.
package guard

import "github.com/mlld-lang/mlld-core/interp/security"

// Signer produces a signature over content under key (spec.md §6
// "sign(content, key) → sig").
type Signer interface {
	Sign(content, key []byte) (sig []byte, err error)
}

// Verifier checks a signature against content (spec.md §6
// "verify(content, sig) → bool").
type Verifier interface {
	Verify(content, sig []byte) (bool, error)
}

// DescriptorMerger combines several provenance descriptors into one,
// richer than security.Merge's in-core deduplication — an external
// collaborator may fold in registry trust levels or revocation state
// (spec.md §6 "descriptor_merge(...) → descriptor").
type DescriptorMerger interface {
	Merge(descriptors ...security.Descriptor) security.Descriptor
}

// Decision is the outcome of evaluating a guard policy.
type Decision struct {
	Allowed bool
	Reason  string
}

// Evaluate interprets a policy expression's resolved value as a guard
// Decision. A bare boolean or any other truthy/falsy value means
// allow/deny with no reason; a {allow, reason} object carries an
// explicit message for the deny case.
func Evaluate(policyValue any) Decision {
	if m, ok := policyValue.(map[string]any); ok {
		allowed := true
		if a, ok := m["allow"].(bool); ok {
			allowed = a
		}
		reason, _ := m["reason"].(string)
		return Decision{Allowed: allowed, Reason: reason}
	}
	return Decision{Allowed: truthy(policyValue)}
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case float64:
		return t != 0
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	default:
		return true
	}
}
