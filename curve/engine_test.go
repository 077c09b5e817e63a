// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package curve

import (
	"math/big"
	"testing"

	"github.com/luxfi/bondtoken/token"
)

func tokens(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), token.Scale)
}

func TestCurrentPriceAtGenesis(t *testing.T) {
	s := NewState()

	// effective supply 100000e18, divisor 10000e18: factor 10, growth
	// 20, price 1.2x the initial price.
	want := big.NewInt(12e13)
	if got := s.CurrentPrice(big.NewInt(0)); got.Cmp(want) != 0 {
		t.Errorf("Expected genesis price %v, got %v", want, got)
	}
}

func TestPriceMonotonic(t *testing.T) {
	s := NewState()

	// The growth term is floored, so nearby supplies can quote the
	// same price. The price must never decrease as supply grows.
	prev := s.CurrentPrice(big.NewInt(0))
	for _, supply := range []*big.Int{tokens(1000), tokens(50_000), tokens(400_000), tokens(999_999)} {
		price := s.CurrentPrice(supply)
		if price.Cmp(prev) < 0 {
			t.Errorf("Price decreased at supply %v: %v < %v", supply, price, prev)
		}
		prev = price
	}
}

func TestPurchaseCostAboveSpot(t *testing.T) {
	s := NewState()
	supply := tokens(10_000)
	amount := tokens(5000)

	cost, err := s.PurchaseCost(supply, amount)
	if err != nil {
		t.Fatalf("PurchaseCost failed: %v", err)
	}

	spot := new(big.Int).Mul(s.CurrentPrice(supply), amount)
	spot.Div(spot, token.Scale)
	if cost.Cmp(spot) <= 0 {
		t.Errorf("Expected integrated cost above spot cost, got %v <= %v", cost, spot)
	}
}

func TestTokensForPaymentUsesSpotPrice(t *testing.T) {
	s := NewState()
	supply := tokens(10_000)
	payment := tokens(1)

	got, err := s.TokensForPayment(supply, payment)
	if err != nil {
		t.Fatalf("TokensForPayment failed: %v", err)
	}

	want := new(big.Int).Mul(payment, token.Scale)
	want.Div(want, s.CurrentPrice(supply))
	if got.Cmp(want) != 0 {
		t.Errorf("Expected spot-price quote %v, got %v", want, got)
	}

	// Spot quote buys more tokens than PurchaseCost would charge the
	// same payment for; the two quotes diverge for any real trade.
	cost, err := s.PurchaseCost(supply, got)
	if err != nil {
		t.Fatalf("PurchaseCost failed: %v", err)
	}
	if cost.Cmp(payment) < 0 {
		t.Errorf("Expected cost of quoted tokens >= payment, got %v < %v", cost, payment)
	}
}

func TestIntervalQuoteSymmetry(t *testing.T) {
	s := NewState()
	supply := tokens(20_000)
	amount := tokens(1000)

	cost, err := s.PurchaseCost(supply, amount)
	if err != nil {
		t.Fatalf("PurchaseCost failed: %v", err)
	}
	proceeds, err := s.SaleProceeds(new(big.Int).Add(supply, amount), amount)
	if err != nil {
		t.Fatalf("SaleProceeds failed: %v", err)
	}
	if proceeds.Cmp(cost) != 0 {
		// Buy then sell the same interval quotes the same trapezoid.
		t.Errorf("Expected symmetric interval quotes, cost %v proceeds %v", cost, proceeds)
	}
}

func TestQuoteGuards(t *testing.T) {
	s := NewState()
	supply := tokens(100)

	if _, err := s.PurchaseCost(supply, big.NewInt(0)); err != ErrInvalidAmount {
		t.Errorf("Expected ErrInvalidAmount, got %v", err)
	}
	if _, err := s.PurchaseCost(supply, token.MaxSupply); err != ErrExceedsMaxSupply {
		t.Errorf("Expected ErrExceedsMaxSupply, got %v", err)
	}
	if _, err := s.TokensForPayment(supply, big.NewInt(-1)); err != ErrInvalidAmount {
		t.Errorf("Expected ErrInvalidAmount, got %v", err)
	}
	if _, err := s.SaleProceeds(supply, tokens(101)); err != ErrInvalidAmount {
		t.Errorf("Expected ErrInvalidAmount selling more than supply, got %v", err)
	}

	// A payment large enough that the spot quote passes the cap fails.
	huge := new(big.Int).Mul(token.MaxSupply, big.NewInt(1000))
	if _, err := s.TokensForPayment(supply, huge); err != ErrExceedsMaxSupply {
		t.Errorf("Expected ErrExceedsMaxSupply, got %v", err)
	}
}

func TestApplyPurchaseAndSale(t *testing.T) {
	s := NewState()
	vb := new(big.Int).Set(s.VirtualBalance)
	vs := new(big.Int).Set(s.VirtualSupply)

	s.ApplyPurchase(tokens(3), tokens(7))
	if got := new(big.Int).Sub(s.VirtualBalance, vb); got.Cmp(tokens(3)) != 0 {
		t.Errorf("Expected virtual balance +3, got %v", got)
	}
	if got := new(big.Int).Sub(s.VirtualSupply, vs); got.Cmp(tokens(7)) != 0 {
		t.Errorf("Expected virtual supply +7, got %v", got)
	}

	s.ApplySale(tokens(3), tokens(7))
	if s.VirtualBalance.Cmp(vb) != 0 || s.VirtualSupply.Cmp(vs) != 0 {
		t.Error("Sale did not invert the purchase")
	}
}

func TestResetValidatesRatio(t *testing.T) {
	s := NewState()

	if err := s.Reset(MaxReserveRatio+1, tokens(1), tokens(1)); err != ErrInvalidReserveRatio {
		t.Errorf("Expected ErrInvalidReserveRatio, got %v", err)
	}
	if err := s.Reset(MaxReserveRatio, tokens(200), tokens(50_000)); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if s.VirtualBalance.Cmp(tokens(200)) != 0 || s.VirtualSupply.Cmp(tokens(50_000)) != 0 {
		t.Error("Reset did not store the new anchoring")
	}
}

func TestSnapshotIsCopy(t *testing.T) {
	s := NewState()
	snap := s.Snapshot()

	s.ApplyPurchase(tokens(1), tokens(1))
	if snap.VirtualBalance.Cmp(s.VirtualBalance) == 0 {
		t.Error("Snapshot aliases live state")
	}
}

func BenchmarkPurchaseCost(b *testing.B) {
	s := NewState()
	supply := tokens(250_000)
	amount := tokens(100)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s.PurchaseCost(supply, amount)
	}
}

func BenchmarkCurrentPrice(b *testing.B) {
	s := NewState()
	supply := tokens(250_000)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s.CurrentPrice(supply)
	}
}
