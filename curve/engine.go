// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package curve implements the bonding-curve pricing engine: pure
// functions over (totalSupply, virtualSupply, virtualBalance) that quote
// spot price, purchase cost, sale proceeds, and tokens-for-payment.
//
// The curve is a piecewise-linear approximation of an exponential
// bonding curve: price grows linearly in the supply factor, scaled by a
// fixed multiplier per CurveDivisor increment of supply. Virtual supply
// and balance are synthetic offsets that stabilize early-stage pricing.
package curve

import (
	"errors"
	"math/big"

	"github.com/luxfi/bondtoken/token"
)

// Curve constants. All amounts are 1e18-scaled integers.
var (
	// InitialPrice is the price at zero effective supply, in
	// settlement-currency wei per whole token.
	InitialPrice = big.NewInt(1e14) // 0.0001

	// Multiplier is the percentage the price grows per CurveDivisor
	// tokens of effective supply.
	Multiplier = big.NewInt(2)

	// CurveDivisor is the supply increment over which Multiplier
	// percent of growth is applied: 10,000 tokens.
	CurveDivisor = new(big.Int).Mul(big.NewInt(10_000), token.Scale)

	// DefaultVirtualSupply anchors the launch price: 100,000 tokens.
	DefaultVirtualSupply = new(big.Int).Mul(big.NewInt(100_000), token.Scale)

	// DefaultVirtualBalance is the synthetic reserve at launch: 100
	// settlement-currency units.
	DefaultVirtualBalance = new(big.Int).Mul(big.NewInt(100), token.Scale)

	hundred = big.NewInt(100)
)

// MaxReserveRatio is 100% in parts per million.
const MaxReserveRatio = 1_000_000

// DefaultReserveRatio is 50% in ppm. The ratio is validated and stored
// but not yet load-bearing in the price formula.
const DefaultReserveRatio = 500_000

// Errors
var (
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrExceedsMaxSupply    = errors.New("exceeds max supply")
	ErrInvalidReserveRatio = errors.New("invalid reserve ratio")
)

// State holds the mutable curve parameters. The caller (the market
// executor) serializes access; methods here never lock.
type State struct {
	// VirtualBalance is the synthetic settlement-currency reserve,
	// increased by every buy and decreased by every sell.
	VirtualBalance *big.Int

	// VirtualSupply is the synthetic supply baseline, moved by the
	// gross token amount of every trade.
	VirtualSupply *big.Int

	// ReserveRatio in ppm (0..1,000,000). Retained for forward
	// compatibility with a reserve-ratio-based curve.
	ReserveRatio uint32
}

// NewState returns curve state at the default launch anchoring.
func NewState() *State {
	return &State{
		VirtualBalance: new(big.Int).Set(DefaultVirtualBalance),
		VirtualSupply:  new(big.Int).Set(DefaultVirtualSupply),
		ReserveRatio:   DefaultReserveRatio,
	}
}

// priceAt computes the spot price for an effective supply of
// totalSupply + virtualSupply:
//
//	supplyFactor = (totalSupply + virtualSupply) * 1e18 / CurveDivisor
//	price        = InitialPrice * (100 + supplyFactor*Multiplier/1e18) / 100
func (s *State) priceAt(totalSupply *big.Int) *big.Int {
	effective := new(big.Int).Add(totalSupply, s.VirtualSupply)

	supplyFactor := new(big.Int).Mul(effective, token.Scale)
	supplyFactor.Div(supplyFactor, CurveDivisor)

	growth := new(big.Int).Mul(supplyFactor, Multiplier)
	growth.Div(growth, token.Scale)

	price := new(big.Int).Add(hundred, growth)
	price.Mul(price, InitialPrice)
	price.Div(price, hundred)
	return price
}

// CurrentPrice returns the spot price at the given issued supply.
func (s *State) CurrentPrice(totalSupply *big.Int) *big.Int {
	return s.priceAt(totalSupply)
}

// PurchaseCost quotes the settlement cost of buying amount tokens.
// The cost is the trapezoidal average of the price before and after the
// hypothetical purchase, times amount. This approximates the integral
// of the price curve over the purchased interval.
func (s *State) PurchaseCost(totalSupply, amount *big.Int) (*big.Int, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	newSupply := new(big.Int).Add(totalSupply, amount)
	if newSupply.Cmp(token.MaxSupply) > 0 {
		return nil, ErrExceedsMaxSupply
	}

	priceBefore := s.priceAt(totalSupply)
	priceAfter := s.priceAt(newSupply)

	avg := new(big.Int).Add(priceBefore, priceAfter)
	avg.Div(avg, big.NewInt(2))

	cost := new(big.Int).Mul(avg, amount)
	cost.Div(cost, token.Scale)
	return cost, nil
}

// TokensForPayment quotes how many tokens a payment buys at the current
// spot price. Deliberately simpler than PurchaseCost: it does not
// integrate over the interval, so the two quotes diverge slightly for
// any non-zero purchase. That asymmetry is part of the pricing design.
func (s *State) TokensForPayment(totalSupply, payment *big.Int) (*big.Int, error) {
	if payment == nil || payment.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}

	amount := new(big.Int).Mul(payment, token.Scale)
	amount.Div(amount, s.priceAt(totalSupply))

	newSupply := new(big.Int).Add(totalSupply, amount)
	if newSupply.Cmp(token.MaxSupply) > 0 {
		return nil, ErrExceedsMaxSupply
	}
	return amount, nil
}

// SaleProceeds quotes the settlement return for selling amount tokens:
// the trapezoidal average of the price at the current and the decreased
// hypothetical supply, times amount.
func (s *State) SaleProceeds(totalSupply, amount *big.Int) (*big.Int, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	if totalSupply.Cmp(amount) < 0 {
		return nil, ErrInvalidAmount
	}
	newSupply := new(big.Int).Sub(totalSupply, amount)

	avg := new(big.Int).Add(s.priceAt(totalSupply), s.priceAt(newSupply))
	avg.Div(avg, big.NewInt(2))

	proceeds := new(big.Int).Mul(avg, amount)
	proceeds.Div(proceeds, token.Scale)
	return proceeds, nil
}

// ApplyPurchase moves the virtual reserves in the buy direction: the
// full payment and the gross token amount, fee tokens included, so the
// curve shape stays stable across trades.
func (s *State) ApplyPurchase(payment, grossTokens *big.Int) {
	s.VirtualBalance = new(big.Int).Add(s.VirtualBalance, payment)
	s.VirtualSupply = new(big.Int).Add(s.VirtualSupply, grossTokens)
}

// ApplySale moves the virtual reserves in the sell direction by the net
// return and the sold amount.
func (s *State) ApplySale(netReturn, amount *big.Int) {
	s.VirtualBalance = new(big.Int).Sub(s.VirtualBalance, netReturn)
	s.VirtualSupply = new(big.Int).Sub(s.VirtualSupply, amount)
}

// Reset overwrites the curve anchoring. Access control is the caller's
// responsibility; only the ratio bound is validated here.
func (s *State) Reset(reserveRatio uint32, virtualBalance, virtualSupply *big.Int) error {
	if reserveRatio > MaxReserveRatio {
		return ErrInvalidReserveRatio
	}
	s.ReserveRatio = reserveRatio
	s.VirtualBalance = new(big.Int).Set(virtualBalance)
	s.VirtualSupply = new(big.Int).Set(virtualSupply)
	return nil
}

// Snapshot returns a copy of the curve state.
func (s *State) Snapshot() State {
	return State{
		VirtualBalance: new(big.Int).Set(s.VirtualBalance),
		VirtualSupply:  new(big.Int).Set(s.VirtualSupply),
		ReserveRatio:   s.ReserveRatio,
	}
}
