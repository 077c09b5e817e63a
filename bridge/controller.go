// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package bridge burns tokens on the local chain and asks a messaging
// gateway to mint them on a trusted remote, and mints locally when the
// gateway delivers a message from a trusted remote.
package bridge

import (
	"bytes"
	"math/big"
	"sync"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/core/types"
	"github.com/luxfi/log"

	"github.com/luxfi/bondtoken/access"
	"github.com/luxfi/bondtoken/registry"
	"github.com/luxfi/bondtoken/token"
)

// Controller is the cross-chain transfer state machine. Outbound
// transfers burn the gross amount, keep a token fee in the fee pool,
// and dispatch the net amount; inbound messages mint to the encoded
// recipient once the gateway and source path check out.
type Controller struct {
	ledger    *token.Ledger
	guard     *access.Controller
	messenger Messenger
	gateway   common.Address

	localChain     uint32
	trustedRemotes map[uint32][]byte
	minDestGas     map[uint32]uint64
	bridgeFee      uint32
	feePool        common.Address
	nonce          uint64

	events token.EventSink
	logger log.Logger
	mu     sync.RWMutex
}

// NewController wires a bridge controller over an existing ledger.
// The messenger and gateway address are set later via SetGateway.
func NewController(ledger *token.Ledger, guard *access.Controller, localChain uint32, feePool common.Address, sink token.EventSink, logger log.Logger) *Controller {
	if sink == nil {
		sink = token.NoopSink{}
	}
	return &Controller{
		ledger:         ledger,
		guard:          guard,
		localChain:     localChain,
		trustedRemotes: make(map[uint32][]byte),
		minDestGas:     make(map[uint32]uint64),
		bridgeFee:      DefaultBridgeFee,
		feePool:        feePool,
		events:         sink,
		logger:         logger,
	}
}

// BridgeOut burns amount from caller and dispatches a mint of the net
// amount (after the token fee) to the same address on destChain.
// attachedValue is the native value sent along to cover the gateway
// fee; any overpayment is refunded to caller by the messenger.
func (c *Controller) BridgeOut(caller common.Address, amount *big.Int, destChain uint32, attachedValue *big.Int) ([32]byte, error) {
	// The reentrancy lock is shared with the trade executor, so a
	// messenger callback cannot re-enter trading or bridging.
	if !c.guard.Enter() {
		return [32]byte{}, ErrReentrant
	}
	defer c.guard.Exit()

	if err := c.guard.RequireNotPaused(); err != nil {
		return [32]byte{}, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return [32]byte{}, ErrInvalidAmount
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.messenger == nil {
		return [32]byte{}, ErrNoGateway
	}
	path, ok := c.trustedRemotes[destChain]
	if !ok {
		return [32]byte{}, ErrInvalidDestination
	}

	fee := new(big.Int).Mul(amount, big.NewInt(int64(c.bridgeFee)))
	fee.Div(fee, big.NewInt(token.BasisPoints))
	net := new(big.Int).Sub(amount, fee)

	payload := EncodePayload(caller, net)
	destGas := c.destinationGas(destChain)

	quote, err := c.messenger.EstimateFee(destChain, payload, destGas)
	if err != nil {
		return [32]byte{}, err
	}
	if attachedValue == nil || attachedValue.Cmp(quote) < 0 {
		return [32]byte{}, ErrInsufficientBridgeFee
	}

	if err := c.ledger.Burn(caller, amount); err != nil {
		return [32]byte{}, err
	}
	if fee.Sign() > 0 {
		if err := c.ledger.Mint(c.feePool, fee); err != nil {
			c.ledger.Mint(caller, amount)
			return [32]byte{}, err
		}
	}

	if err := c.messenger.Dispatch(destChain, path, payload, destGas, attachedValue, caller); err != nil {
		if fee.Sign() > 0 {
			c.ledger.Burn(c.feePool, fee)
		}
		c.ledger.Mint(caller, amount)
		return [32]byte{}, err
	}

	id := transferID(c.localChain, destChain, caller, payload, c.nonce)
	c.nonce++

	c.emit(BridgeInitiatedTopic, caller, net, destChain)
	if c.logger != nil {
		c.logger.Info("bridge out",
			"caller", caller,
			"net", net,
			"fee", fee,
			"dest", registry.ChainName(destChain),
			"id", common.Hash(id),
		)
	}
	return id, nil
}

// OnMessage handles a delivery from the messaging gateway. caller is
// the address invoking the callback and must be the registered
// gateway; srcAddress must byte-match the trusted remote path for
// srcChain. The nonce is recorded for logging only, delivery ordering
// and dedup are the gateway's job.
func (c *Controller) OnMessage(caller common.Address, srcChain uint32, srcAddress []byte, nonce uint64, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.gateway == (common.Address{}) || caller != c.gateway {
		return ErrUnauthorizedOrigin
	}
	trusted, ok := c.trustedRemotes[srcChain]
	if !ok || !bytes.Equal(trusted, srcAddress) {
		return ErrInvalidSource
	}

	recipient, amount, err := DecodePayload(payload)
	if err != nil {
		return err
	}
	if err := c.ledger.Mint(recipient, amount); err != nil {
		return err
	}

	c.emit(BridgeCompletedTopic, recipient, amount, srcChain)
	if c.logger != nil {
		c.logger.Info("bridge in",
			"recipient", recipient,
			"amount", amount,
			"src", registry.ChainName(srcChain),
			"nonce", nonce,
		)
	}
	return nil
}

// EstimateBridgeFee quotes the native fee for an outbound transfer of
// amount to destChain, using the net payload that BridgeOut would
// dispatch.
func (c *Controller) EstimateBridgeFee(caller common.Address, amount *big.Int, destChain uint32) (*big.Int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.messenger == nil {
		return nil, ErrNoGateway
	}
	if _, ok := c.trustedRemotes[destChain]; !ok {
		return nil, ErrInvalidDestination
	}
	fee := new(big.Int).Mul(amount, big.NewInt(int64(c.bridgeFee)))
	fee.Div(fee, big.NewInt(token.BasisPoints))
	net := new(big.Int).Sub(amount, fee)
	return c.messenger.EstimateFee(destChain, EncodePayload(caller, net), c.destinationGas(destChain))
}

// TrustedRemote returns the registered remote path for chainID, or nil.
func (c *Controller) TrustedRemote(chainID uint32) []byte {
	c.mu.RLock()
	defer c.mu.RUnlock()
	path := c.trustedRemotes[chainID]
	if path == nil {
		return nil
	}
	out := make([]byte, len(path))
	copy(out, path)
	return out
}

// BridgeFee returns the outbound token fee in basis points.
func (c *Controller) BridgeFee() uint32 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.bridgeFee
}

// Gateway returns the registered messaging gateway address.
func (c *Controller) Gateway() common.Address {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gateway
}

// SetGateway registers the messaging gateway the controller dispatches
// through and accepts deliveries from.
func (c *Controller) SetGateway(caller common.Address, gateway common.Address, messenger Messenger) error {
	if err := c.guard.RequireOwner(caller); err != nil {
		return err
	}
	if gateway == (common.Address{}) || messenger == nil {
		return ErrZeroAddress
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gateway = gateway
	c.messenger = messenger
	return nil
}

// SetTrustedRemote registers the remote contract path for chainID. An
// empty path disables the chain.
func (c *Controller) SetTrustedRemote(caller common.Address, chainID uint32, path []byte) error {
	if err := c.guard.RequireOwner(caller); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(path) == 0 {
		delete(c.trustedRemotes, chainID)
	} else {
		if !registry.ValidRemotePath(path) {
			return ErrInvalidPayload
		}
		stored := make([]byte, len(path))
		copy(stored, path)
		c.trustedRemotes[chainID] = stored
	}
	c.events.AddLog(&types.Log{
		Topics: []common.Hash{TrustedRemoteUpdatedTopic, chainTopic(chainID)},
		Data:   path,
	})
	return nil
}

// SetMinDestinationGas overrides the destination execution gas for
// chainID. Zero restores the default.
func (c *Controller) SetMinDestinationGas(caller common.Address, chainID uint32, gas uint64) error {
	if err := c.guard.RequireOwner(caller); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if gas == 0 {
		delete(c.minDestGas, chainID)
	} else {
		c.minDestGas[chainID] = gas
	}
	c.events.AddLog(&types.Log{
		Topics: []common.Hash{MinGasUpdatedTopic, chainTopic(chainID)},
		Data:   gasWord(gas),
	})
	return nil
}

// SetFeePool redirects outbound token fees to pool.
func (c *Controller) SetFeePool(caller common.Address, pool common.Address) error {
	if err := c.guard.RequireOwner(caller); err != nil {
		return err
	}
	if pool == (common.Address{}) {
		return ErrZeroAddress
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.feePool = pool
	return nil
}

// SetBridgeFee updates the outbound token fee, capped like the other
// fee rates.
func (c *Controller) SetBridgeFee(caller common.Address, fee uint32) error {
	if err := c.guard.RequireOwner(caller); err != nil {
		return err
	}
	if fee > token.MaxFeeBasisPoints {
		return ErrFeeTooHigh
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bridgeFee = fee
	return nil
}

func (c *Controller) destinationGas(chainID uint32) uint64 {
	if gas, ok := c.minDestGas[chainID]; ok {
		return gas
	}
	return DefaultMinDestinationGas
}

func (c *Controller) emit(topic common.Hash, who common.Address, amount *big.Int, chainID uint32) {
	data := make([]byte, 32)
	amount.FillBytes(data)
	c.events.AddLog(&types.Log{
		Topics: []common.Hash{topic, addressTopic(who), chainTopic(chainID)},
		Data:   data,
	})
}

func addressTopic(addr common.Address) common.Hash {
	return common.BytesToHash(addr.Bytes())
}

func chainTopic(chainID uint32) common.Hash {
	return common.BigToHash(new(big.Int).SetUint64(uint64(chainID)))
}

func gasWord(gas uint64) []byte {
	buf := make([]byte, 32)
	new(big.Int).SetUint64(gas).FillBytes(buf)
	return buf
}
