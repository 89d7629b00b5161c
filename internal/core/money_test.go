package core

import (
	"errors"
	"math/big"
	"testing"
)

func TestParseAmountToCents(t *testing.T) {
	cases := []struct {
		in  string
		out int64
		ok  bool
	}{
		{"0.01", 1, true},
		{"1", 100, true},
		{"1.2", 120, true},
		{"1.20", 120, true},
		{"10.05", 1005, true},
		{" 2.50 ", 250, true},
		{"0", 0, true},
		{".5", 50, true},
		{"3.", 300, true},
		{"1.230", 123, true},
		{"+4", 400, true},
		{"1e2", 10000, true},
		{"125e-2", 125, true},
		{"-0", 0, true},
		{"1.234", 0, false},
		{"-1", 0, false},
		{"-0.01", 0, false},
		{"abc", 0, false},
		{"", 0, false},
		{"   ", 0, false},
		{"1.2.3", 0, false},
		{"1,23", 0, false},
		{"1/2", 0, false},
		{".", 0, false},
		{"NaN", 0, false},
		{"Infinity", 0, false},
		{"1e999", 0, false},
		{"99999999999999999999", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseAmountToCents(tc.in)
		if tc.ok {
			if err != nil || got != tc.out {
				t.Fatalf("%q expected %d, got %d (err=%v)", tc.in, tc.out, got, err)
			}
			continue
		}
		if err == nil {
			t.Fatalf("%q expected error, got %d", tc.in, got)
		}
		if !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("%q expected ErrInvalidInput, got %v", tc.in, err)
		}
	}
}

func TestParseAmountToCentsRoundTrip(t *testing.T) {
	for _, in := range []string{"0", "0.01", "0.10", "7", "12.3", "999.99", "100000", "42.00"} {
		cents, err := ParseAmountToCents(in)
		if err != nil {
			t.Fatalf("%q unexpected error: %v", in, err)
		}
		want, _ := new(big.Rat).SetString(in)
		got := big.NewRat(cents, 100)
		if got.Cmp(want) != 0 {
			t.Fatalf("%q round trip gave %s", in, got.FloatString(2))
		}
		if back, err := ParseAmountToCents(FormatCents(cents)); err != nil || back != cents {
			t.Fatalf("%q reparse of %q gave %d (err=%v)", in, FormatCents(cents), back, err)
		}
	}
}

func TestFormatCents(t *testing.T) {
	cases := map[int64]string{
		0:      "0.00",
		1:      "0.01",
		100:    "1.00",
		1005:   "10.05",
		500000: "5000.00",
		-250:   "-2.50",
		-1:     "-0.01",
	}
	for in, want := range cases {
		if got := FormatCents(in); got != want {
			t.Fatalf("FormatCents(%d) = %q, want %q", in, got, want)
		}
	}
}
