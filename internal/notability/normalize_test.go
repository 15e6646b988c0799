package notability

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeName(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Acme Dental", "Acme Dental"},
		{"Acme Dental 1700000000000", "Acme Dental"},
		{"Acme Dental_1700000000000", "Acme Dental"},
		{"Acme Dental-1700000000000", "Acme Dental"},
		{"  Acme   Dental  ", "Acme Dental"},
		// Short digit runs are part of the real name.
		{"Studio 54", "Studio 54"},
		{"Route 66 Diner", "Route 66 Diner"},
		// Digits in the middle are never stripped.
		{"1700000000000 Acme", "1700000000000 Acme"},
		// Fullwidth characters fold to their ASCII forms.
		{"Ａｃｍｅ Dental", "Acme Dental"},
		{"", ""},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, NormalizeName(tc.in), "input %q", tc.in)
	}
}
