package money

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestRound_HalfUp(t *testing.T) {
	cases := map[string]string{
		"1.005":   "1.01",
		"1.004":   "1",
		"2.345":   "2.35",
		"-2.345":  "-2.35",
		"100":     "100",
		"0.125":   "0.13",
		"12.3449": "12.34",
	}
	for in, want := range cases {
		got := Round(decimal.RequireFromString(in))
		if !got.Equal(decimal.RequireFromString(want)) {
			t.Errorf("Round(%s) = %s, want %s", in, got, want)
		}
	}
}

func TestDiv_ZeroDivisor(t *testing.T) {
	got := Div(decimal.NewFromInt(10), decimal.Zero)
	if !got.IsZero() {
		t.Errorf("Expected zero, got %s", got)
	}

	got = Div(decimal.NewFromInt(10), decimal.NewFromInt(4))
	if !got.Equal(decimal.RequireFromString("2.5")) {
		t.Errorf("Expected 2.5, got %s", got)
	}
}

func TestSumMinMax(t *testing.T) {
	a := decimal.NewFromFloat(10.10)
	b := decimal.NewFromFloat(20.20)

	if !Sum(a, b).Equal(decimal.RequireFromString("30.3")) {
		t.Errorf("Expected 30.3, got %s", Sum(a, b))
	}
	if !Sum().IsZero() {
		t.Errorf("Expected empty sum to be zero")
	}
	if !Min(a, b).Equal(a) {
		t.Errorf("Expected min %s, got %s", a, Min(a, b))
	}
	if !Max(a, b).Equal(b) {
		t.Errorf("Expected max %s, got %s", b, Max(a, b))
	}
}

func TestNonNegativeAndPercent(t *testing.T) {
	if !NonNegative(decimal.NewFromInt(-5)).IsZero() {
		t.Errorf("Expected negative to clamp to zero")
	}
	if !NonNegative(decimal.NewFromInt(5)).Equal(decimal.NewFromInt(5)) {
		t.Errorf("Expected positive to pass through")
	}
	if !Percent(18.5).Equal(decimal.RequireFromString("0.185")) {
		t.Errorf("Expected 0.185, got %s", Percent(18.5))
	}
}
