// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package market implements the trade executor: it quotes trades
// through the curve engine, applies fees, and mutates curve state and
// ledger atomically, settling the currency leg against the liquidity
// pool.
package market

import (
	"errors"

	"github.com/holiman/uint256"
	"github.com/luxfi/crypto"
	"github.com/luxfi/geth/common"
)

// Errors
var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrSlippageExceeded = errors.New("slippage exceeded")
	ErrReentrant        = errors.New("reentrancy detected")
	ErrZeroAddress      = errors.New("zero address")
	ErrFeeTooHigh       = errors.New("fee exceeds cap")
	ErrTransferFailed   = errors.New("settlement transfer failed")
)

// Event signatures
var (
	TokensPurchasedTopic        = common.BytesToHash(crypto.Keccak256([]byte("TokensPurchased(address,uint256,uint256)")))
	TokensSoldTopic             = common.BytesToHash(crypto.Keccak256([]byte("TokensSold(address,uint256,uint256,uint256)")))
	FeePoolUpdatedTopic         = common.BytesToHash(crypto.Keccak256([]byte("FeePoolUpdated(address)")))
	LiquidityPoolUpdatedTopic   = common.BytesToHash(crypto.Keccak256([]byte("LiquidityPoolUpdated(address)")))
	FeesUpdatedTopic            = common.BytesToHash(crypto.Keccak256([]byte("FeesUpdated(uint256,uint256,uint256)")))
	CurveParametersUpdatedTopic = common.BytesToHash(crypto.Keccak256([]byte("CurveParametersUpdated(uint256,uint256,uint256)")))
)

// DefaultPurchaseFee is the launch purchase fee: 60 bps (0.6%).
// The sell path reuses this same rate.
const DefaultPurchaseFee uint32 = 60

// Settler is the push-based settlement-currency transfer primitive.
// A failed transfer aborts the whole trade.
type Settler interface {
	Transfer(from, to common.Address, value *uint256.Int) error
}

// NativeLedger is an in-memory Settler tracking native balances, used
// for local wiring and tests.
type NativeLedger struct {
	balances map[common.Address]*uint256.Int
}

// NewNativeLedger creates an empty native-currency ledger.
func NewNativeLedger() *NativeLedger {
	return &NativeLedger{balances: make(map[common.Address]*uint256.Int)}
}

// Fund credits value to addr out of thin air.
func (n *NativeLedger) Fund(addr common.Address, value *uint256.Int) {
	bal, ok := n.balances[addr]
	if !ok {
		bal = uint256.NewInt(0)
	}
	n.balances[addr] = new(uint256.Int).Add(bal, value)
}

// BalanceOf returns addr's native balance.
func (n *NativeLedger) BalanceOf(addr common.Address) *uint256.Int {
	if bal, ok := n.balances[addr]; ok {
		return bal.Clone()
	}
	return uint256.NewInt(0)
}

// Transfer moves value from one account to another.
func (n *NativeLedger) Transfer(from, to common.Address, value *uint256.Int) error {
	bal, ok := n.balances[from]
	if !ok || bal.Lt(value) {
		return ErrTransferFailed
	}
	n.balances[from] = new(uint256.Int).Sub(bal, value)
	n.Fund(to, value)
	return nil
}
