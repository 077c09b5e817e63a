// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package bondtoken composes the ledger, bonding curve, trade
// executor and bridge controller into a single token contract with
// one-time initialization.
package bondtoken

import (
	"errors"
	"math/big"
	"sync"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/core/types"
	"github.com/luxfi/log"

	"github.com/luxfi/bondtoken/access"
	"github.com/luxfi/bondtoken/bridge"
	"github.com/luxfi/bondtoken/curve"
	"github.com/luxfi/bondtoken/market"
	"github.com/luxfi/bondtoken/token"
)

var (
	ErrAlreadyInitialized = errors.New("already initialized")
	ErrNotInitialized     = errors.New("not initialized")
	ErrZeroAddress        = errors.New("zero address")
)

// Config carries the one-time initialization parameters.
type Config struct {
	Owner         common.Address
	FeePool       common.Address
	LiquidityPool common.Address

	PurchaseFee uint32 // basis points, applied to buys and sells
	TransferFee uint32 // basis points, applied to transfers
	BridgeFee   uint32 // basis points, applied to outbound bridging

	LocalChain uint32
	Settler    market.Settler
	Events     token.EventSink
	Logger     log.Logger
}

// Token is the composed contract. All mutating entry points require
// Initialize to have run exactly once.
type Token struct {
	mu          sync.RWMutex
	initialized bool

	guard  *access.Controller
	ledger *token.Ledger
	market *market.Executor
	bridge *bridge.Controller
	events token.EventSink
}

// New returns an uninitialized token.
func New() *Token {
	return &Token{}
}

// Initialize wires the contract. It can be called exactly once; every
// other entry point fails with ErrNotInitialized until it has run.
func (t *Token) Initialize(cfg Config) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.initialized {
		return ErrAlreadyInitialized
	}
	if cfg.Owner == (common.Address{}) || cfg.FeePool == (common.Address{}) || cfg.LiquidityPool == (common.Address{}) {
		return ErrZeroAddress
	}
	if cfg.PurchaseFee > token.MaxFeeBasisPoints || cfg.TransferFee > token.MaxFeeBasisPoints || cfg.BridgeFee > token.MaxFeeBasisPoints {
		return market.ErrFeeTooHigh
	}

	sink := cfg.Events
	if sink == nil {
		sink = token.NoopSink{}
	}

	guard := access.NewController(cfg.Owner)
	ledger := token.NewLedger(cfg.TransferFee, cfg.FeePool, sink)
	state := curve.NewState()
	exec := market.NewExecutor(ledger, state, guard, cfg.Settler, cfg.FeePool, cfg.LiquidityPool, sink)
	if err := exec.SetPurchaseFee(cfg.Owner, cfg.PurchaseFee); err != nil {
		return err
	}
	ctrl := bridge.NewController(ledger, guard, cfg.LocalChain, cfg.FeePool, sink, cfg.Logger)
	if err := ctrl.SetBridgeFee(cfg.Owner, cfg.BridgeFee); err != nil {
		return err
	}

	t.guard = guard
	t.ledger = ledger
	t.market = exec
	t.bridge = ctrl
	t.events = sink
	t.initialized = true
	return nil
}

func (t *Token) ready() error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if !t.initialized {
		return ErrNotInitialized
	}
	return nil
}

// Ledger exposes the underlying ledger, nil before Initialize.
func (t *Token) Ledger() *token.Ledger { return t.ledger }

// Bridge exposes the bridge controller, nil before Initialize.
func (t *Token) Bridge() *bridge.Controller { return t.bridge }

// Token surface.

func (t *Token) TotalSupply() *big.Int {
	if t.ready() != nil {
		return new(big.Int)
	}
	return t.ledger.TotalSupply()
}

func (t *Token) BalanceOf(holder common.Address) *big.Int {
	if t.ready() != nil {
		return new(big.Int)
	}
	return t.ledger.BalanceOf(holder)
}

func (t *Token) Allowance(owner, spender common.Address) *big.Int {
	if t.ready() != nil {
		return new(big.Int)
	}
	return t.ledger.Allowance(owner, spender)
}

// Transfer moves tokens between holders. Plain transfers stay live
// while the contract is paused; only trading and bridging halt.
func (t *Token) Transfer(from, to common.Address, amount *big.Int) error {
	if err := t.ready(); err != nil {
		return err
	}
	return t.ledger.Transfer(from, to, amount)
}

func (t *Token) TransferFrom(spender, owner, to common.Address, amount *big.Int) error {
	if err := t.ready(); err != nil {
		return err
	}
	return t.ledger.TransferFrom(spender, owner, to, amount)
}

func (t *Token) Approve(owner, spender common.Address, amount *big.Int) error {
	if err := t.ready(); err != nil {
		return err
	}
	return t.ledger.Approve(owner, spender, amount)
}

// Market surface.

func (t *Token) Buy(buyer common.Address, paymentSent *uint256.Int, minTokens *big.Int) (*big.Int, error) {
	if err := t.ready(); err != nil {
		return nil, err
	}
	return t.market.Purchase(buyer, paymentSent, minTokens)
}

func (t *Token) Sell(seller common.Address, amount, minReturn *big.Int) (*big.Int, error) {
	if err := t.ready(); err != nil {
		return nil, err
	}
	return t.market.Sell(seller, amount, minReturn)
}

func (t *Token) CurrentPrice() *big.Int {
	if t.ready() != nil {
		return new(big.Int)
	}
	return t.market.CurrentPrice()
}

func (t *Token) PurchaseQuote(payment *big.Int) (*big.Int, error) {
	if err := t.ready(); err != nil {
		return nil, err
	}
	return t.market.PurchaseQuote(payment)
}

func (t *Token) SellQuote(amount *big.Int) (*big.Int, error) {
	if err := t.ready(); err != nil {
		return nil, err
	}
	return t.market.SellQuote(amount)
}

// Bridge surface.

func (t *Token) BridgeOut(caller common.Address, amount *big.Int, destChain uint32, attachedValue *big.Int) ([32]byte, error) {
	if err := t.ready(); err != nil {
		return [32]byte{}, err
	}
	return t.bridge.BridgeOut(caller, amount, destChain, attachedValue)
}

func (t *Token) OnMessage(caller common.Address, srcChain uint32, srcAddress []byte, nonce uint64, payload []byte) error {
	if err := t.ready(); err != nil {
		return err
	}
	return t.bridge.OnMessage(caller, srcChain, srcAddress, nonce, payload)
}

// Administration.

func (t *Token) Owner() common.Address {
	if t.ready() != nil {
		return common.Address{}
	}
	return t.guard.Owner()
}

func (t *Token) Paused() bool {
	if t.ready() != nil {
		return false
	}
	return t.guard.IsPaused()
}

func (t *Token) Pause(caller common.Address) error {
	if err := t.ready(); err != nil {
		return err
	}
	return t.guard.Pause(caller)
}

func (t *Token) Unpause(caller common.Address) error {
	if err := t.ready(); err != nil {
		return err
	}
	return t.guard.Unpause(caller)
}

func (t *Token) TransferOwnership(caller, next common.Address) error {
	if err := t.ready(); err != nil {
		return err
	}
	return t.guard.TransferOwnership(caller, next)
}

// UpdateFees sets all three fee rates in one owner call. Each rate is
// capped independently, and no rate changes unless all pass.
func (t *Token) UpdateFees(caller common.Address, purchaseFee, transferFee, bridgeFee uint32) error {
	if err := t.ready(); err != nil {
		return err
	}
	if err := t.guard.RequireOwner(caller); err != nil {
		return err
	}
	if purchaseFee > token.MaxFeeBasisPoints || transferFee > token.MaxFeeBasisPoints || bridgeFee > token.MaxFeeBasisPoints {
		return market.ErrFeeTooHigh
	}
	if err := t.market.SetPurchaseFee(caller, purchaseFee); err != nil {
		return err
	}
	if err := t.ledger.SetTransferFee(transferFee); err != nil {
		return err
	}
	if err := t.bridge.SetBridgeFee(caller, bridgeFee); err != nil {
		return err
	}
	t.events.AddLog(&types.Log{
		Topics: []common.Hash{market.FeesUpdatedTopic},
		Data:   feeWords(purchaseFee, transferFee, bridgeFee),
	})
	return nil
}

// feeWords packs the three fee rates as 32-byte words for log data.
func feeWords(purchase, transfer, bridge uint32) []byte {
	buf := make([]byte, 96)
	big.NewInt(int64(purchase)).FillBytes(buf[:32])
	big.NewInt(int64(transfer)).FillBytes(buf[32:64])
	big.NewInt(int64(bridge)).FillBytes(buf[64:])
	return buf
}

// SetFeePool points every component's fee destination at pool.
func (t *Token) SetFeePool(caller, pool common.Address) error {
	if err := t.ready(); err != nil {
		return err
	}
	if err := t.market.SetFeePool(caller, pool); err != nil {
		return err
	}
	return t.bridge.SetFeePool(caller, pool)
}

func (t *Token) SetLiquidityPool(caller, pool common.Address) error {
	if err := t.ready(); err != nil {
		return err
	}
	return t.market.SetLiquidityPool(caller, pool)
}

func (t *Token) UpdateCurveParameters(caller common.Address, reserveRatio uint32, virtualBalance, virtualSupply *big.Int) error {
	if err := t.ready(); err != nil {
		return err
	}
	return t.market.UpdateCurveParameters(caller, reserveRatio, virtualBalance, virtualSupply)
}

func (t *Token) SetGateway(caller, gateway common.Address, messenger bridge.Messenger) error {
	if err := t.ready(); err != nil {
		return err
	}
	return t.bridge.SetGateway(caller, gateway, messenger)
}

func (t *Token) SetTrustedRemote(caller common.Address, chainID uint32, path []byte) error {
	if err := t.ready(); err != nil {
		return err
	}
	return t.bridge.SetTrustedRemote(caller, chainID, path)
}

func (t *Token) SetMinDestinationGas(caller common.Address, chainID uint32, gas uint64) error {
	if err := t.ready(); err != nil {
		return err
	}
	return t.bridge.SetMinDestinationGas(caller, chainID, gas)
}
