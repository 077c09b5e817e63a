// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package token

import (
	"math/big"
	"sync"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/core/types"
)

// Ledger tracks per-holder balances and total issued supply.
// Invariant: totalSupply == sum(balances), bounded by MaxSupply.
// Supply changes only through Mint and Burn, never directly.
type Ledger struct {
	balances    map[common.Address]*big.Int
	allowances  map[common.Address]map[common.Address]*big.Int
	totalSupply *big.Int

	// Fee-on-transfer configuration: every plain transfer routes a
	// transferFee cut to feePool and the remainder to the recipient.
	transferFee uint32
	feePool     common.Address

	events EventSink

	mu sync.RWMutex
}

// NewLedger creates an empty ledger with the given transfer fee (basis
// points) and fee pool. Events go to sink; nil means discard.
func NewLedger(transferFee uint32, feePool common.Address, sink EventSink) *Ledger {
	if sink == nil {
		sink = NoopSink{}
	}
	return &Ledger{
		balances:    make(map[common.Address]*big.Int),
		allowances:  make(map[common.Address]map[common.Address]*big.Int),
		totalSupply: big.NewInt(0),
		transferFee: transferFee,
		feePool:     feePool,
		events:      sink,
	}
}

// TotalSupply returns the total issued supply.
func (l *Ledger) TotalSupply() *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return new(big.Int).Set(l.totalSupply)
}

// BalanceOf returns the balance of holder.
func (l *Ledger) BalanceOf(holder common.Address) *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if bal, ok := l.balances[holder]; ok {
		return new(big.Int).Set(bal)
	}
	return big.NewInt(0)
}

// Allowance returns how much spender may move on behalf of owner.
func (l *Ledger) Allowance(owner, spender common.Address) *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if byOwner, ok := l.allowances[owner]; ok {
		if a, ok := byOwner[spender]; ok {
			return new(big.Int).Set(a)
		}
	}
	return big.NewInt(0)
}

// TransferFee returns the current transfer fee in basis points.
func (l *Ledger) TransferFee() uint32 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.transferFee
}

// FeePool returns the current fee pool address.
func (l *Ledger) FeePool() common.Address {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.feePool
}

// SetTransferFee updates the transfer fee rate. Caller is responsible
// for authorization; the ledger only enforces the rate cap.
func (l *Ledger) SetTransferFee(bps uint32) error {
	if bps > MaxFeeBasisPoints {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.transferFee = bps
	return nil
}

// SetFeePool updates the fee pool address.
func (l *Ledger) SetFeePool(pool common.Address) error {
	if pool == (common.Address{}) {
		return ErrZeroAddress
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.feePool = pool
	return nil
}

// Mint credits amount to recipient and grows the supply.
func (l *Ledger) Mint(to common.Address, amount *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.mint(to, amount)
}

// mint requires the lock to be held.
func (l *Ledger) mint(to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	newSupply := new(big.Int).Add(l.totalSupply, amount)
	if newSupply.Cmp(MaxSupply) > 0 {
		return ErrExceedsMaxSupply
	}
	l.credit(to, amount)
	l.totalSupply = newSupply
	l.emitTransfer(common.Address{}, to, amount)
	return nil
}

// Burn debits amount from holder and shrinks the supply.
func (l *Ledger) Burn(from common.Address, amount *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.burn(from, amount)
}

// burn requires the lock to be held.
func (l *Ledger) burn(from common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if err := l.debit(from, amount); err != nil {
		return err
	}
	l.totalSupply = new(big.Int).Sub(l.totalSupply, amount)
	l.emitTransfer(from, common.Address{}, amount)
	return nil
}

// MintPair credits two recipients in one supply-cap check, so that a
// net/fee split either lands entirely or not at all.
func (l *Ledger) MintPair(to common.Address, toAmount *big.Int, pool common.Address, poolAmount *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	total := new(big.Int).Add(toAmount, poolAmount)
	if total.Sign() <= 0 {
		return ErrInvalidAmount
	}
	newSupply := new(big.Int).Add(l.totalSupply, total)
	if newSupply.Cmp(MaxSupply) > 0 {
		return ErrExceedsMaxSupply
	}
	if toAmount.Sign() > 0 {
		l.credit(to, toAmount)
		l.emitTransfer(common.Address{}, to, toAmount)
	}
	if poolAmount.Sign() > 0 {
		l.credit(pool, poolAmount)
		l.emitTransfer(common.Address{}, pool, poolAmount)
	}
	l.totalSupply = newSupply
	return nil
}

// Transfer moves amount from the caller to recipient, splitting off the
// transfer fee to the fee pool. Executed as two ledger movements.
func (l *Ledger) Transfer(from, to common.Address, amount *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.transferWithFee(from, to, amount)
}

// TransferFrom moves amount from owner to recipient on behalf of
// spender, consuming allowance before the fee split.
func (l *Ledger) TransferFrom(spender, owner, to common.Address, amount *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	allowed := l.allowance(owner, spender)
	if allowed.Cmp(amount) < 0 {
		return ErrInsufficientAllowance
	}
	if err := l.transferWithFee(owner, to, amount); err != nil {
		return err
	}
	l.setAllowance(owner, spender, new(big.Int).Sub(allowed, amount))
	return nil
}

// Approve sets spender's allowance over the caller's balance.
func (l *Ledger) Approve(owner, spender common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	l.setAllowance(owner, spender, new(big.Int).Set(amount))

	l.events.AddLog(&types.Log{
		Topics: []common.Hash{ApprovalTopic, addressTopic(owner), addressTopic(spender)},
		Data:   amountWord(amount),
	})
	return nil
}

// transferWithFee requires the lock to be held.
func (l *Ledger) transferWithFee(from, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}

	fee := new(big.Int).Mul(amount, big.NewInt(int64(l.transferFee)))
	fee.Div(fee, big.NewInt(BasisPoints))
	net := new(big.Int).Sub(amount, fee)

	if err := l.debit(from, amount); err != nil {
		return err
	}
	l.credit(to, net)
	l.emitTransfer(from, to, net)
	if fee.Sign() > 0 {
		l.credit(l.feePool, fee)
		l.emitTransfer(from, l.feePool, fee)
	}
	return nil
}

// credit requires the lock to be held.
func (l *Ledger) credit(addr common.Address, amount *big.Int) {
	bal, ok := l.balances[addr]
	if !ok {
		bal = big.NewInt(0)
	}
	l.balances[addr] = new(big.Int).Add(bal, amount)
}

// debit requires the lock to be held.
func (l *Ledger) debit(addr common.Address, amount *big.Int) error {
	bal, ok := l.balances[addr]
	if !ok || bal.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	remaining := new(big.Int).Sub(bal, amount)
	if remaining.Sign() == 0 {
		delete(l.balances, addr)
	} else {
		l.balances[addr] = remaining
	}
	return nil
}

func (l *Ledger) allowance(owner, spender common.Address) *big.Int {
	if byOwner, ok := l.allowances[owner]; ok {
		if a, ok := byOwner[spender]; ok {
			return a
		}
	}
	return big.NewInt(0)
}

func (l *Ledger) setAllowance(owner, spender common.Address, amount *big.Int) {
	if l.allowances[owner] == nil {
		l.allowances[owner] = make(map[common.Address]*big.Int)
	}
	if amount.Sign() == 0 {
		delete(l.allowances[owner], spender)
		return
	}
	l.allowances[owner][spender] = amount
}

func (l *Ledger) emitTransfer(from, to common.Address, amount *big.Int) {
	l.events.AddLog(&types.Log{
		Topics: []common.Hash{TransferTopic, addressTopic(from), addressTopic(to)},
		Data:   amountWord(amount),
	})
}
