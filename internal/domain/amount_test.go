package domain

import (
	"errors"
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
	"pgregory.net/rapid"
)

func TestConvertAmount(t *testing.T) {
	t.Run("2:1 rate doubles", func(t *testing.T) {
		got := ConvertAmount(decimal.NewFromInt(100), decimal.NewFromInt(2000))
		if !got.Equal(decimal.NewFromInt(200)) {
			t.Errorf("Expected 200, got %s", got)
		}
	})

	t.Run("Truncates instead of rounding", func(t *testing.T) {
		// 7 * 1999 / 1000 = 13.993
		got := ConvertAmount(decimal.NewFromInt(7), decimal.NewFromInt(1999))
		if !got.Equal(decimal.NewFromInt(13)) {
			t.Errorf("Expected 13, got %s", got)
		}
	})

	t.Run("Tiny amount truncates to zero", func(t *testing.T) {
		got := ConvertAmount(decimal.NewFromInt(1), decimal.NewFromInt(999))
		if !got.IsZero() {
			t.Errorf("Expected 0, got %s", got)
		}
	})

	t.Run("No overflow ceiling", func(t *testing.T) {
		huge, _ := decimal.NewFromString("115792089237316195423570985008687907853269984665640564039457584007913129639935")
		got := ConvertAmount(huge, decimal.NewFromInt(3000))
		want := huge.Mul(decimal.NewFromInt(3))
		if !got.Equal(want) {
			t.Errorf("Expected %s, got %s", want, got)
		}
	})
}

func TestConvertAmount_MatchesIntegerFloor(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		amount := rapid.Uint64Range(1, 1<<62).Draw(t, "amount")
		rate := rapid.Uint64Range(1, 1<<40).Draw(t, "rate")

		want := new(big.Int).Mul(new(big.Int).SetUint64(amount), new(big.Int).SetUint64(rate))
		want.Quo(want, big.NewInt(RateScale))

		got := ConvertAmount(decimal.NewFromBigInt(new(big.Int).SetUint64(amount), 0),
			decimal.NewFromBigInt(new(big.Int).SetUint64(rate), 0))
		if got.BigInt().Cmp(want) != 0 || !got.IsInteger() {
			t.Fatalf("ConvertAmount(%d, %d) = %s, want %s", amount, rate, got, want)
		}
		// floor: result * scale never exceeds amount * rate
		back := got.Mul(decimal.NewFromInt(RateScale))
		product := decimal.NewFromBigInt(new(big.Int).SetUint64(amount), 0).
			Mul(decimal.NewFromBigInt(new(big.Int).SetUint64(rate), 0))
		if back.GreaterThan(product) {
			t.Fatalf("result rounded up: %s * 1000 > %s", got, product)
		}
	})
}

func TestParseAmount(t *testing.T) {
	valid := map[string]int64{"0": 0, "1": 1, " 500 ": 500, "1000000": 1000000}
	for raw, want := range valid {
		got, err := ParseAmount(raw)
		if err != nil {
			t.Errorf("ParseAmount(%q) failed: %v", raw, err)
			continue
		}
		if !got.Equal(decimal.NewFromInt(want)) {
			t.Errorf("ParseAmount(%q) = %s, want %d", raw, got, want)
		}
	}

	for _, raw := range []string{"", "-1", "1.5", "abc"} {
		if _, err := ParseAmount(raw); !errors.Is(err, ErrInvalidAmount) {
			t.Errorf("ParseAmount(%q) error = %v, want ErrInvalidAmount", raw, err)
		}
	}
}

func TestIsPositiveInteger(t *testing.T) {
	if IsPositiveInteger(decimal.Zero) {
		t.Error("zero is not positive")
	}
	if IsPositiveInteger(decimal.NewFromFloat(0.5)) {
		t.Error("fractions are not integers")
	}
	if !IsPositiveInteger(decimal.NewFromInt(1)) {
		t.Error("1 is a positive integer")
	}
}
