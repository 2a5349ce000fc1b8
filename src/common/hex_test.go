package common

import (
	"strings"
	"testing"

	"github.com/pkg/errors"
)

func TestIsHex64(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{strings.Repeat("a", 64), true},
		{strings.Repeat("F", 64), true},
		{strings.Repeat("a", 63), false},
		{strings.Repeat("a", 65), false},
		{strings.Repeat("g", 64), false},
		{"", false},
	}
	for _, c := range cases {
		if got := IsHex64(c.in); got != c.want {
			t.Fatalf("IsHex64(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestStoreErrWrapped(t *testing.T) {
	err := NewStoreErr("UTXO", KeyNotFound, "abc_0")
	if !IsStore(err, KeyNotFound) {
		t.Fatalf("expected KeyNotFound")
	}
	if IsStore(err, KeyAlreadyExists) {
		t.Fatalf("unexpected KeyAlreadyExists")
	}
	wrapped := errors.Wrap(err, "applying transaction")
	if !IsStore(wrapped, KeyNotFound) {
		t.Fatalf("wrapped error should still match KeyNotFound")
	}
}
