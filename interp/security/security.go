// Package security implements the SecurityDescriptor mentioned as
// spec.md §3's `security_mx`: a content-provenance label accumulated
// during interpolation so guards and the (external) signing collaborator
// can consume it. Grounded on runtime/vault/vault.go's site-based
// descriptor model — an expression id plus a site id derived with a
// keyed hash — minus the transport-boundary concept (this core has no
// remote transports, spec.md §1 Non-goals) and minus secret-value
// redaction (no stdout scrubbing here; that is a CLI/publishing concern,
// out of scope).
package security

import (
	"encoding/hex"
	"sync"

	"golang.org/x/crypto/blake2b"
)

// Descriptor records where one piece of content came from: the
// expression that produced it and a site id binding it to the place it
// was produced, so a guard or signer can later decide whether a value is
// trusted to flow to a given sink.
type Descriptor struct {
	// ExpressionID identifies the producing expression (a variable name,
	// or a synthetic id for an inline literal).
	ExpressionID string
	// SiteID is a keyed hash of the expression id and the current
	// interpolation path, unforgeable without the run's key.
	SiteID string
	// Origin records how the content was produced: "literal", "import",
	// "command", "code", "transformation".
	Origin string
}

// Ledger accumulates Descriptors produced while interpolating one
// directive or template, matching environment.Environment's
// "accumulated during interpolation" field (spec.md §4.2 Environment
// contract). It is keyed so repeated interpolation of the same
// expression at the same site does not grow unboundedly.
type Ledger struct {
	key []byte

	mu    sync.Mutex
	descs map[string]Descriptor
}

// NewLedger creates a Ledger keyed for one interpreter run. The key need
// not be secret — it only needs to be stable within a run and distinct
// across runs so SiteIDs from different runs never collide.
func NewLedger(runKey []byte) *Ledger {
	return &Ledger{key: runKey, descs: make(map[string]Descriptor)}
}

// Record derives a SiteID for (expressionID, path) and stores a
// Descriptor for it, returning the Descriptor for the caller to merge
// into its own collected set.
func (l *Ledger) Record(expressionID, path, origin string) Descriptor {
	site := siteID(l.key, expressionID+"|"+path)
	d := Descriptor{ExpressionID: expressionID, SiteID: site, Origin: origin}
	l.mu.Lock()
	l.descs[site] = d
	l.mu.Unlock()
	return d
}

// All returns every Descriptor recorded so far, for attaching to a
// derived value or handing to the signing collaborator.
func (l *Ledger) All() []Descriptor {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Descriptor, 0, len(l.descs))
	for _, d := range l.descs {
		out = append(out, d)
	}
	return out
}

func siteID(key []byte, site string) string {
	h, err := blake2b.New256(key)
	if err != nil {
		// blake2b.New256 only errors on an over-length key; our keys are
		// always a fixed internal size, so this is a bug, not user error.
		panic("security: invalid ledger key: " + err.Error())
	}
	h.Write([]byte(site))
	return hex.EncodeToString(h.Sum(nil))
}

// Merge combines descriptors from several sources (e.g. sibling
// interpolation segments) into one slice, deduplicated by SiteID.
func Merge(sets ...[]Descriptor) []Descriptor {
	seen := make(map[string]bool)
	var out []Descriptor
	for _, set := range sets {
		for _, d := range set {
			if seen[d.SiteID] {
				continue
			}
			seen[d.SiteID] = true
			out = append(out, d)
		}
	}
	return out
}
