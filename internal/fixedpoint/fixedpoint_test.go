package fixedpoint

import (
	"math/big"
	"testing"
)

func TestFromInt64ScalesToEighteenDecimals(t *testing.T) {
	got := FromInt64(42)
	want, _ := new(big.Int).SetString("42000000000000000000", 10)
	if got.Cmp(want) != 0 {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestMulDivTruncatesTowardZero(t *testing.T) {
	// 7 * 3 / 2 = 10 with truncation.
	got := MulDiv(big.NewInt(7), big.NewInt(3), big.NewInt(2))
	if got.Int64() != 10 {
		t.Fatalf("expected 10, got %d", got.Int64())
	}
}

func TestMulDivFullWidthIntermediate(t *testing.T) {
	// A product that overflows int64 must still divide exactly.
	a := FromInt64(2000)
	got := MulDiv(a, One, FromInt64(2))
	want := FromInt64(1000)
	if got.Cmp(want) != 0 {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestMulBps(t *testing.T) {
	got := MulBps(FromInt64(100), 10500)
	want := FromInt64(105)
	if got.Cmp(want) != 0 {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	if _, err := Parse("12x"); err == nil {
		t.Fatal("expected parse error")
	}
	v, err := Parse("1000000000000000000")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if v.Cmp(One) != 0 {
		t.Fatalf("expected 1e18, got %s", v)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	original := big.NewInt(5)
	copied := Clone(original)
	copied.Add(copied, big.NewInt(1))
	if original.Int64() != 5 {
		t.Fatalf("clone mutated original: %d", original.Int64())
	}
}

func TestNilHandling(t *testing.T) {
	if !IsZero(nil) {
		t.Fatal("nil should be zero")
	}
	if IsPositive(nil) || IsNegative(nil) {
		t.Fatal("nil is neither positive nor negative")
	}
	if Cmp(nil, big.NewInt(0)) != 0 {
		t.Fatal("nil should compare equal to zero")
	}
	if String(nil) != "0" {
		t.Fatal("nil should render as 0")
	}
}
