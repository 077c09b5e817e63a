// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package token implements the balance ledger for the bonded token:
// per-holder balances, total issued supply, and the mint/burn/transfer
// primitives the market and bridge layers are built on.
package token

import (
	"errors"
	"math/big"

	"github.com/luxfi/crypto"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/core/types"
)

// Token metadata
const (
	Name     = "Bonded Token"
	Symbol   = "BOND"
	Decimals = 18
)

// Scale is the fixed-point scale shared by all token and price math.
var Scale = big.NewInt(1e18)

// MaxSupply is the hard issuance ceiling: 1,000,000 tokens at 1e18 scale.
var MaxSupply = new(big.Int).Mul(big.NewInt(1_000_000), Scale)

// BasisPoints is the denominator for all fee rates (10000 = 100%).
const BasisPoints = 10000

// MaxFeeBasisPoints caps every configurable fee rate at 10%.
const MaxFeeBasisPoints = 1000

// Ledger errors
var (
	ErrInvalidAmount         = errors.New("invalid amount")
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	ErrExceedsMaxSupply      = errors.New("exceeds max supply")
	ErrZeroAddress           = errors.New("zero address")
)

// Event signatures, keccak-hashed the way on-chain logs are keyed.
var (
	TransferTopic = common.BytesToHash(crypto.Keccak256([]byte("Transfer(address,address,uint256)")))
	ApprovalTopic = common.BytesToHash(crypto.Keccak256([]byte("Approval(address,address,uint256)")))
)

// EventSink receives the log records every successful operation emits.
// Sinks are informational only: a sink must not fail the operation.
type EventSink interface {
	AddLog(*types.Log)
}

// NoopSink discards all events.
type NoopSink struct{}

func (NoopSink) AddLog(*types.Log) {}

// RecordingSink retains events in order, for tests and local tooling.
type RecordingSink struct {
	Logs []*types.Log
}

func (s *RecordingSink) AddLog(l *types.Log) {
	s.Logs = append(s.Logs, l)
}

// amountWord encodes an amount as a 32-byte big-endian word for log data.
func amountWord(v *big.Int) []byte {
	word := make([]byte, 32)
	v.FillBytes(word)
	return word
}

// addressTopic widens an address into a 32-byte log topic.
func addressTopic(addr common.Address) common.Hash {
	var h common.Hash
	copy(h[12:], addr.Bytes())
	return h
}
