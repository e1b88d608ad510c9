package packmarket

import (
	"testing"

	"ento-core/internal/fixedpoint"
)

func TestUnitPriceAtZeroSupplyIsFloor(t *testing.T) {
	curve, err := NewBondingCurve(fixedpoint.One, fixedpoint.One, fixedpoint.FromInt64(100000))
	if err != nil {
		t.Fatalf("new curve: %v", err)
	}
	price := curve.UnitPrice(fixedpoint.Zero())
	if price.Cmp(fixedpoint.One) != 0 {
		t.Fatalf("expected floor price, got %s", price)
	}
}

func TestUnitPriceAtGenesisSupply(t *testing.T) {
	genesis := fixedpoint.FromInt64(100000)
	curve, err := NewBondingCurve(fixedpoint.One, fixedpoint.One, genesis)
	if err != nil {
		t.Fatalf("new curve: %v", err)
	}
	// At full genesis supply: price = floor + slope = 2.0.
	price := curve.UnitPrice(genesis)
	if price.Cmp(fixedpoint.FromInt64(2)) != 0 {
		t.Fatalf("expected price 2e18, got %s", price)
	}
}

func TestUnitPriceMonotonicInSupply(t *testing.T) {
	genesis := fixedpoint.FromInt64(100000)
	curve, err := NewBondingCurve(fixedpoint.One, fixedpoint.One, genesis)
	if err != nil {
		t.Fatalf("new curve: %v", err)
	}
	low := curve.UnitPrice(fixedpoint.FromInt64(1000))
	high := curve.UnitPrice(fixedpoint.FromInt64(50000))
	if low.Cmp(high) >= 0 {
		t.Fatalf("price not monotonic: %s >= %s", low, high)
	}
}

func TestSetSlopeRejectsNegative(t *testing.T) {
	curve, err := NewBondingCurve(fixedpoint.One, fixedpoint.One, fixedpoint.FromInt64(1))
	if err != nil {
		t.Fatalf("new curve: %v", err)
	}
	if err := curve.SetSlope(fixedpoint.FromInt64(-1)); err == nil {
		t.Fatal("expected negative slope rejection")
	}
}

func TestMonthKeyValidation(t *testing.T) {
	if _, err := NewMonthKey("2026-09"); err != nil {
		t.Fatalf("valid month rejected: %v", err)
	}
	if _, err := NewMonthKey("2026/09"); err == nil {
		t.Fatal("expected invalid month rejection")
	}
	if _, err := NewMonthKey("2026-13"); err == nil {
		t.Fatal("expected out-of-range month rejection")
	}
}
