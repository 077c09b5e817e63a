// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package market

import (
	"math/big"
	"sync"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/core/types"

	"github.com/luxfi/bondtoken/access"
	"github.com/luxfi/bondtoken/curve"
	"github.com/luxfi/bondtoken/token"
)

// Executor orchestrates purchases and sales against the bonding curve.
// Every mutating entry point holds a call-scoped reentrancy lock so a
// settlement callback cannot re-enter and observe half-updated state.
type Executor struct {
	ledger *token.Ledger
	curve  *curve.State
	guard  *access.Controller

	purchaseFee   uint32
	feePool       common.Address
	liquidityPool common.Address

	settler Settler
	events  token.EventSink

	mu sync.RWMutex
}

// NewExecutor wires the trade executor. Events go to sink; nil discards.
func NewExecutor(
	ledger *token.Ledger,
	curveState *curve.State,
	guard *access.Controller,
	settler Settler,
	feePool, liquidityPool common.Address,
	sink token.EventSink,
) *Executor {
	if sink == nil {
		sink = token.NoopSink{}
	}
	return &Executor{
		ledger:        ledger,
		curve:         curveState,
		guard:         guard,
		purchaseFee:   DefaultPurchaseFee,
		feePool:       feePool,
		liquidityPool: liquidityPool,
		settler:       settler,
		events:        sink,
	}
}

// enter acquires the reentrancy lock; exit releases it unconditionally.
// The lock lives on the shared guard, so trades and outbound bridging
// exclude each other within one call stack.
func (e *Executor) enter() error {
	if !e.guard.Enter() {
		return ErrReentrant
	}
	return nil
}

func (e *Executor) exit() {
	e.guard.Exit()
}

// Purchase buys tokens with paymentSent at the current curve quote.
// The quote must reach minTokens or the trade fails with
// ErrSlippageExceeded and no state change. The full payment is
// forwarded to the liquidity pool; a failed forward aborts everything.
func (e *Executor) Purchase(buyer common.Address, paymentSent *uint256.Int, minTokens *big.Int) (*big.Int, error) {
	if err := e.enter(); err != nil {
		return nil, err
	}
	defer e.exit()

	if err := e.guard.RequireNotPaused(); err != nil {
		return nil, err
	}
	if paymentSent == nil || paymentSent.IsZero() {
		return nil, ErrInvalidAmount
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	payment := paymentSent.ToBig()
	gross, err := e.curve.TokensForPayment(e.ledger.TotalSupply(), payment)
	if err != nil {
		return nil, err
	}
	if minTokens != nil && gross.Cmp(minTokens) < 0 {
		return nil, ErrSlippageExceeded
	}

	fee := new(big.Int).Mul(gross, big.NewInt(int64(e.purchaseFee)))
	fee.Div(fee, big.NewInt(token.BasisPoints))
	net := new(big.Int).Sub(gross, fee)

	// Mint first: the pair mint re-checks the supply cap and commits
	// both halves or neither.
	if err := e.ledger.MintPair(buyer, net, e.feePool, fee); err != nil {
		return nil, err
	}

	// Virtual reserves move by the gross amounts, fee tokens included.
	e.curve.ApplyPurchase(payment, gross)

	if err := e.settler.Transfer(buyer, e.liquidityPool, paymentSent); err != nil {
		// Unwind: the whole trade is all-or-nothing.
		e.curve.ApplySale(payment, gross)
		_ = e.ledger.Burn(buyer, net)
		if fee.Sign() > 0 {
			_ = e.ledger.Burn(e.feePool, fee)
		}
		return nil, ErrTransferFailed
	}

	e.events.AddLog(&types.Log{
		Topics: []common.Hash{TokensPurchasedTopic, addrTopic(buyer)},
		Data:   append(word(net), word(fee)...),
	})
	return net, nil
}

// Sell redeems amount tokens against the curve. The quoted proceeds
// must reach minReturn or the trade fails with ErrSlippageExceeded.
// The seller is paid the net return and the fee pool the fee, both in
// settlement currency out of the liquidity pool.
func (e *Executor) Sell(seller common.Address, amount, minReturn *big.Int) (*big.Int, error) {
	if err := e.enter(); err != nil {
		return nil, err
	}
	defer e.exit()

	if err := e.guard.RequireNotPaused(); err != nil {
		return nil, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	if e.ledger.BalanceOf(seller).Cmp(amount) < 0 {
		return nil, token.ErrInsufficientBalance
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	proceeds, err := e.curve.SaleProceeds(e.ledger.TotalSupply(), amount)
	if err != nil {
		return nil, err
	}
	if minReturn != nil && proceeds.Cmp(minReturn) < 0 {
		return nil, ErrSlippageExceeded
	}

	// The sell path reuses the purchase fee rate.
	fee := new(big.Int).Mul(proceeds, big.NewInt(int64(e.purchaseFee)))
	fee.Div(fee, big.NewInt(token.BasisPoints))
	netReturn := new(big.Int).Sub(proceeds, fee)

	if err := e.ledger.Burn(seller, amount); err != nil {
		return nil, err
	}
	e.curve.ApplySale(netReturn, amount)

	netU, feeU := toU256(netReturn), toU256(fee)
	if err := e.settler.Transfer(e.liquidityPool, seller, netU); err != nil {
		e.curve.ApplyPurchase(netReturn, amount)
		_ = e.ledger.Mint(seller, amount)
		return nil, ErrTransferFailed
	}
	if fee.Sign() > 0 {
		if err := e.settler.Transfer(e.liquidityPool, e.feePool, feeU); err != nil {
			_ = e.settler.Transfer(seller, e.liquidityPool, netU)
			e.curve.ApplyPurchase(netReturn, amount)
			_ = e.ledger.Mint(seller, amount)
			return nil, ErrTransferFailed
		}
	}

	e.events.AddLog(&types.Log{
		Topics: []common.Hash{TokensSoldTopic, addrTopic(seller)},
		Data:   append(append(word(amount), word(netReturn)...), word(fee)...),
	})
	return netReturn, nil
}

// PurchaseQuote returns the gross token amount a payment would buy at
// the current price, before the purchase fee.
func (e *Executor) PurchaseQuote(payment *big.Int) (*big.Int, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.curve.TokensForPayment(e.ledger.TotalSupply(), payment)
}

// SellQuote returns the gross proceeds of selling amount, before fees.
func (e *Executor) SellQuote(amount *big.Int) (*big.Int, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.curve.SaleProceeds(e.ledger.TotalSupply(), amount)
}

// CurrentPrice returns the spot price at the current issued supply.
func (e *Executor) CurrentPrice() *big.Int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.curve.CurrentPrice(e.ledger.TotalSupply())
}

// CurveState returns a copy of the curve state.
func (e *Executor) CurveState() curve.State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.curve.Snapshot()
}

// PurchaseFee returns the purchase fee rate in basis points.
func (e *Executor) PurchaseFee() uint32 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.purchaseFee
}

// =========================================================================
// Admin surface (owner-gated)
// =========================================================================

// SetFeePool points fee token mints and fee currency payments at pool.
func (e *Executor) SetFeePool(caller, pool common.Address) error {
	if err := e.guard.RequireOwner(caller); err != nil {
		return err
	}
	if pool == (common.Address{}) {
		return ErrZeroAddress
	}
	e.mu.Lock()
	e.feePool = pool
	e.mu.Unlock()

	if err := e.ledger.SetFeePool(pool); err != nil {
		return err
	}
	e.events.AddLog(&types.Log{
		Topics: []common.Hash{FeePoolUpdatedTopic, addrTopic(pool)},
	})
	return nil
}

// SetLiquidityPool points settlement forwarding at pool.
func (e *Executor) SetLiquidityPool(caller, pool common.Address) error {
	if err := e.guard.RequireOwner(caller); err != nil {
		return err
	}
	if pool == (common.Address{}) {
		return ErrZeroAddress
	}
	e.mu.Lock()
	e.liquidityPool = pool
	e.mu.Unlock()

	e.events.AddLog(&types.Log{
		Topics: []common.Hash{LiquidityPoolUpdatedTopic, addrTopic(pool)},
	})
	return nil
}

// SetPurchaseFee updates the purchase (and therefore sell) fee rate.
func (e *Executor) SetPurchaseFee(caller common.Address, bps uint32) error {
	if err := e.guard.RequireOwner(caller); err != nil {
		return err
	}
	if bps > token.MaxFeeBasisPoints {
		return ErrFeeTooHigh
	}
	e.mu.Lock()
	e.purchaseFee = bps
	e.mu.Unlock()
	return nil
}

// UpdateCurveParameters re-anchors the curve. Only the reserve ratio
// bound is validated; the virtual reserves are overwritten as given.
func (e *Executor) UpdateCurveParameters(caller common.Address, reserveRatio uint32, virtualBalance, virtualSupply *big.Int) error {
	if err := e.guard.RequireOwner(caller); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.curve.Reset(reserveRatio, virtualBalance, virtualSupply); err != nil {
		return err
	}
	e.events.AddLog(&types.Log{
		Topics: []common.Hash{CurveParametersUpdatedTopic},
		Data:   append(append(word(big.NewInt(int64(reserveRatio))), word(virtualBalance)...), word(virtualSupply)...),
	})
	return nil
}

// Helpers

func word(v *big.Int) []byte {
	w := make([]byte, 32)
	v.FillBytes(w)
	return w
}

func addrTopic(addr common.Address) common.Hash {
	var h common.Hash
	copy(h[12:], addr.Bytes())
	return h
}

func toU256(v *big.Int) *uint256.Int {
	u, _ := uint256.FromBig(v)
	if u == nil {
		u = uint256.NewInt(0)
	}
	return u
}
