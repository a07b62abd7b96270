package core

import "testing"

func TestParseCentavosInput(t *testing.T) {
	cases := []struct {
		in  string
		out int64
	}{
		{"12345", 12345},   // 123.45
		{"123,45", 12345},  // separators stripped
		{"1.234,56", 123456},
		{"R$ 50,00", 5000},
		{"7", 7}, // 0.07
		{"", 0},
		{"abc", 0},
		{"0", 0},
	}
	for _, tc := range cases {
		if got := ParseCentavosInput(tc.in); got.Cents != tc.out {
			t.Fatalf("%q expected %d cents, got %d", tc.in, tc.out, got.Cents)
		}
	}
}

func TestParseDecimalToCents(t *testing.T) {
	cases := []struct {
		in  string
		out int64
		ok  bool
	}{
		{"1", 100, true},
		{"1.0", 100, true},
		{"1.23", 123, true},
		{"1,23", 123, true},
		{"0.01", 1, true},
		{"2664.004", 266400, true}, // rounds down to the existing cent
		{"1.005", 101, true},       // half-up rounding
		{" 2.50 ", 250, true},
		{"-1", 0, false},
		{"0", 0, false},
		{"abc", 0, false},
		{"1.2.3", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseDecimalToCents(tc.in)
		if tc.ok {
			if err != nil || got != tc.out {
				t.Fatalf("%q expected %d, got %d (err=%v)", tc.in, tc.out, got, err)
			}
		} else if err == nil {
			t.Fatalf("%q expected error", tc.in)
		}
	}
}

func TestMoneyString(t *testing.T) {
	cases := []struct {
		cents int64
		out   string
	}{
		{266400, "2664,00"},
		{5, "0,05"},
		{0, "0,00"},
		{-1234, "-12,34"},
	}
	for _, tc := range cases {
		if got := (Money{Cents: tc.cents}).String(); got != tc.out {
			t.Fatalf("%d expected %q, got %q", tc.cents, tc.out, got)
		}
	}
}
