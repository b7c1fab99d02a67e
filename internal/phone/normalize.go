// Package phone maps stored contact phone numbers to the format the
// messaging bridge expects.
package phone

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Rule rewrites numbers that start with Prefix and have exactly Length characters.
// Inverse, when set, maps a Transform output back to the raw form it came from.
type Rule struct {
	Name      string
	Prefix    string
	Length    int
	Transform func(string) string
	Inverse   func(string) (string, bool)
}

func (r Rule) matches(s string) bool {
	return len(s) == r.Length && strings.HasPrefix(s, r.Prefix)
}

// MexicoMobile drops the legacy mobile "1" inserted after the +52 country
// code: 521XXXXXXXXXX (13 digits) becomes 52XXXXXXXXXX (12 digits).
var MexicoMobile = Rule{
	Name:   "mx-mobile",
	Prefix: "521",
	Length: 13,
	Transform: func(s string) string {
		return s[:2] + s[3:]
	},
	Inverse: func(s string) (string, bool) {
		if len(s) != 12 || !strings.HasPrefix(s, "52") {
			return "", false
		}
		return "521" + s[2:], true
	},
}

// DefaultRules is the rule table used by Normalize.
var DefaultRules = []Rule{MexicoMobile}

// Normalizer applies the first matching rule of its table.
type Normalizer struct {
	rules  []Rule
	logger *zap.Logger
}

// New builds a Normalizer. Rules of the same length whose prefixes overlap
// are rejected so that table order never changes the result.
func New(logger *zap.Logger, rules ...Rule) (*Normalizer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	for i, a := range rules {
		if a.Prefix == "" || a.Length <= 0 || a.Transform == nil {
			return nil, fmt.Errorf("phone rule %q: prefix, length and transform are required", a.Name)
		}
		for _, b := range rules[i+1:] {
			if a.Length != b.Length {
				continue
			}
			if strings.HasPrefix(a.Prefix, b.Prefix) || strings.HasPrefix(b.Prefix, a.Prefix) {
				return nil, fmt.Errorf("phone rules %q and %q collide on prefix", a.Name, b.Name)
			}
		}
	}
	return &Normalizer{rules: rules, logger: logger}, nil
}

// Default returns a Normalizer with DefaultRules.
func Default(logger *zap.Logger) *Normalizer {
	n, err := New(logger, DefaultRules...)
	if err != nil {
		panic(err)
	}
	return n
}

// Normalize returns raw in the bridge's expected format. Numbers that match
// no rule pass through unchanged; this is best effort, not validation.
func (n *Normalizer) Normalize(raw string) string {
	if raw == "" {
		return ""
	}
	for _, r := range n.rules {
		if !r.matches(raw) {
			continue
		}
		out := r.Transform(raw)
		n.logger.Debug("phone normalized",
			zap.String("rule", r.Name),
			zap.String("from", raw),
			zap.String("to", out),
		)
		return out
	}
	return raw
}

// Variants returns every digit form that normalizes to the same number as
// raw: raw without a leading "+", its normalized form, and the raw forms the
// rules map onto it. Stored numbers kept as captured can be matched against
// any of them.
func (n *Normalizer) Variants(raw string) []string {
	bare := strings.TrimPrefix(strings.TrimSpace(raw), "+")
	if bare == "" {
		return nil
	}
	norm := n.Normalize(bare)
	out := []string{bare}
	add := func(s string) {
		for _, have := range out {
			if have == s {
				return
			}
		}
		out = append(out, s)
	}
	add(norm)
	for _, r := range n.rules {
		if r.Inverse == nil {
			continue
		}
		if orig, ok := r.Inverse(norm); ok && r.matches(orig) && n.Normalize(orig) == norm {
			add(orig)
		}
	}
	return out
}

var std = Default(nil)

// Normalize applies DefaultRules without logging.
func Normalize(raw string) string {
	return std.Normalize(raw)
}
