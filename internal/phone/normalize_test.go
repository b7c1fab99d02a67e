package phone

import (
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"mx mobile", "5214427817483", "524427817483"},
		{"mx mobile other area", "5219991234567", "529991234567"},
		{"us number", "12025551234", "12025551234"},
		{"empty", "", ""},
		{"mx already normalized", "524427817483", "524427817483"},
		{"mx prefix wrong length short", "521442781748", "521442781748"},
		{"mx prefix wrong length long", "52144278174831", "52144278174831"},
		{"formatted with plus", "+5214427817483", "+5214427817483"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.in); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{
		"5214427817483",
		"5219991234567",
		"524427817483",
		"12025551234",
		"",
		"5215215215215",
		"521",
	}
	for _, in := range inputs {
		once := Normalize(in)
		twice := Normalize(once)
		if once != twice {
			t.Errorf("Normalize(Normalize(%q)) = %q, want %q", in, twice, once)
		}
	}
}

func TestVariants(t *testing.T) {
	n := Default(nil)
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"raw mx", "5214427817483", []string{"5214427817483", "524427817483"}},
		{"normalized mx", "524427817483", []string{"524427817483", "5214427817483"}},
		{"plus normalized mx", "+524427817483", []string{"524427817483", "5214427817483"}},
		{"no rule", "12025551234", []string{"12025551234"}},
		{"empty", " ", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := n.Variants(tt.in)
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("Variants(%q) = %v, want %v", tt.in, got, tt.want)
			}
			for _, v := range got {
				if n.Normalize(v) != n.Normalize(got[0]) {
					t.Errorf("variant %q normalizes to %q, want %q", v, n.Normalize(v), n.Normalize(got[0]))
				}
			}
		})
	}
}

func TestNewRejectsCollidingPrefixes(t *testing.T) {
	drop := func(s string) string { return s }
	_, err := New(nil,
		Rule{Name: "a", Prefix: "52", Length: 13, Transform: drop},
		Rule{Name: "b", Prefix: "521", Length: 13, Transform: drop},
	)
	if err == nil || !strings.Contains(err.Error(), "collide") {
		t.Fatalf("New() error = %v, want collision error", err)
	}

	// Same prefix, different lengths never both match.
	if _, err := New(nil,
		Rule{Name: "a", Prefix: "521", Length: 13, Transform: drop},
		Rule{Name: "b", Prefix: "521", Length: 12, Transform: drop},
	); err != nil {
		t.Fatalf("New() error = %v, want nil", err)
	}
}

func TestNewRejectsIncompleteRule(t *testing.T) {
	if _, err := New(nil, Rule{Name: "empty"}); err == nil {
		t.Fatal("New() expected error for rule without prefix")
	}
}

func TestCustomRuleTable(t *testing.T) {
	// Argentina: 549 + 10 digits -> strip the 9.
	ar := Rule{
		Name:      "ar-mobile",
		Prefix:    "549",
		Length:    13,
		Transform: func(s string) string { return s[:2] + s[3:] },
	}
	n, err := New(zap.NewNop(), MexicoMobile, ar)
	if err != nil {
		t.Fatal(err)
	}
	if got := n.Normalize("5491123456789"); got != "541123456789" {
		t.Errorf("Normalize(ar) = %q, want 541123456789", got)
	}
	if got := n.Normalize("5214427817483"); got != "524427817483" {
		t.Errorf("Normalize(mx) = %q, want 524427817483", got)
	}
}
