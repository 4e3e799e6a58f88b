package flipit

import (
	"errors"
	"math/big"
	"testing"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in   string
		want string // base units, decimal
		ok   bool
	}{
		{"1", "1000000000000000000", true},
		{"0.5", "500000000000000000", true},
		{"10.25", "10250000000000000000", true},
		{".1", "100000000000000000", true},
		{"0.000000000000000001", "1", true},
		{"", "", false},
		{"0", "", false},
		{"0.0", "", false},
		{"-1", "", false},
		{"abc", "", false},
		{"1.2.3", "", false},
		{"0.0000000000000000001", "", false}, // 19 fractional digits
	}
	for _, tc := range tests {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			if err != nil {
				t.Fatalf("ParseAmount(%q): unexpected error %v", tc.in, err)
			}
			if got.String() != tc.want {
				t.Fatalf("ParseAmount(%q) = %s, want %s", tc.in, got, tc.want)
			}
			continue
		}
		if err == nil {
			t.Fatalf("ParseAmount(%q): expected error, got %s", tc.in, got)
		}
		if !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("ParseAmount(%q): error %v is not ErrInvalidAmount", tc.in, err)
		}
	}
}

func TestFormatAmountRoundTrip(t *testing.T) {
	for _, s := range []string{"1", "0.5", "10.25", "123456.789"} {
		v, err := ParseAmount(s)
		if err != nil {
			t.Fatalf("ParseAmount(%q): %v", s, err)
		}
		if got := FormatAmount(v); got != s {
			t.Fatalf("FormatAmount(ParseAmount(%q)) = %q", s, got)
		}
	}
}

func TestFormatAmountTrimsZeros(t *testing.T) {
	v, _ := new(big.Int).SetString("1500000000000000000", 10)
	if got := FormatAmount(v); got != "1.5" {
		t.Fatalf("FormatAmount = %q, want 1.5", got)
	}
	if got := FormatAmount(nil); got != "0" {
		t.Fatalf("FormatAmount(nil) = %q, want 0", got)
	}
}
