package core

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  any
		out string
		ok  bool
	}{
		{"30", "30", true},
		{"12.34", "12.34", true},
		{"12,34", "12.34", true},
		{" 2.50 ", "2.5", true},
		{30, "30", true},
		{int64(7), "7", true},
		{uint64(9), "9", true},
		{19.99, "19.99", true},
		{json.Number("4.33"), "4.33", true},
		{decimal.RequireFromString("1.5"), "1.5", true},
		{"-5", "-5", true},
		{"abc", "0", false},
		{"1.234,5", "0", false},
		{"1,2,3", "0", false},
		{"", "0", false},
		{nil, "0", false},
		{math.NaN(), "0", false},
		{math.Inf(1), "0", false},
		{true, "0", false},
	}
	for _, tc := range cases {
		got, ok := ParseAmount(tc.in)
		if ok != tc.ok {
			t.Fatalf("%v: expected ok=%v, got %v", tc.in, tc.ok, ok)
		}
		if ok && !got.Equal(decimal.RequireFromString(tc.out)) {
			t.Fatalf("%v: expected %s, got %s", tc.in, tc.out, got)
		}
	}
}

func TestRound2(t *testing.T) {
	cases := []struct {
		in  string
		out float64
	}{
		{"10", 10},
		{"1.005", 1.01},
		{"1.004", 1.0},
		{"-1.005", -1.01},
		{"129.899999", 129.9},
		{"0", 0},
		{"1e400", 0},
		{"-1e400", 0},
	}
	for _, tc := range cases {
		if got := Round2(decimal.RequireFromString(tc.in)); got != tc.out {
			t.Errorf("Round2(%s) = %v, want %v", tc.in, got, tc.out)
		}
	}
}

func TestParseTimestamp(t *testing.T) {
	cases := []struct {
		in   string
		want time.Time
		ok   bool
	}{
		{"2024-01-01", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), true},
		{"2024-02-03 10:11:12", time.Date(2024, 2, 3, 10, 11, 12, 0, time.UTC), true},
		{"2024-02-03T10:11:12", time.Date(2024, 2, 3, 10, 11, 12, 0, time.UTC), true},
		{"2024-02-03T10:11:12Z", time.Date(2024, 2, 3, 10, 11, 12, 0, time.UTC), true},
		{"not a date", time.Time{}, false},
		{"", time.Time{}, false},
	}
	for _, tc := range cases {
		got, ok := ParseTimestamp(tc.in)
		if ok != tc.ok || !got.Equal(tc.want) {
			t.Errorf("ParseTimestamp(%q) = %v, %v; want %v, %v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}
