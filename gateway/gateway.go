// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package gateway is an in-process messaging fabric. A Hub routes
// payloads between per-chain endpoints, charges a deterministic native
// fee, and deduplicates deliveries by message digest so a replayed
// dispatch never reaches a receiver twice.
package gateway

import (
	"encoding/binary"
	"errors"
	"math/big"
	"sync"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"github.com/zeebo/blake3"
)

// Gateway errors
var (
	ErrUnderpaid       = errors.New("dispatch fee below quote")
	ErrBadPath         = errors.New("malformed remote path")
	ErrUnknownEndpoint = errors.New("no endpoint registered for chain")
	ErrNoReceiver      = errors.New("no receiver at destination address")
	ErrDuplicate       = errors.New("message already delivered")
	ErrEmptyQueue      = errors.New("no queued messages")
)

// Receiver handles a delivered cross-chain message. caller is the
// destination-chain endpoint address, srcAddress is the trusted-remote
// path as the receiver registered it.
type Receiver interface {
	OnMessage(caller common.Address, srcChain uint32, srcAddress []byte, nonce uint64, payload []byte) error
}

// Fee parameters for the hub. The quote for a message is
// base + perByte*len(payload) + gasPrice*destGas.
type FeeConfig struct {
	Base     *big.Int
	PerByte  *big.Int
	GasPrice *big.Int
}

// DefaultFeeConfig mirrors typical relayer pricing in wei.
func DefaultFeeConfig() FeeConfig {
	return FeeConfig{
		Base:     big.NewInt(1_000_000_000_000),
		PerByte:  big.NewInt(1_000_000_000),
		GasPrice: big.NewInt(1_000_000),
	}
}

type endpointKey struct {
	chain uint32
	addr  common.Address
}

type delivery struct {
	id        ids.ID
	srcChain  uint32
	destChain uint32
	path      []byte
	payload   []byte
	nonce     uint64
}

// Hub routes messages between registered endpoints. Deliveries are
// queued on dispatch and executed by Deliver or DeliverAll, so tests
// can interleave sends and receipts deterministically.
type Hub struct {
	fees      FeeConfig
	endpoints map[uint32]common.Address
	receivers map[endpointKey]Receiver
	nonces    map[uint64]uint64
	seen      map[ids.ID]bool
	refunds   map[common.Address]*big.Int
	queue     []delivery
	logger    log.Logger
	mu        sync.Mutex
}

// NewHub creates a hub with the given fee schedule.
func NewHub(fees FeeConfig, logger log.Logger) *Hub {
	return &Hub{
		fees:      fees,
		endpoints: make(map[uint32]common.Address),
		receivers: make(map[endpointKey]Receiver),
		nonces:    make(map[uint64]uint64),
		seen:      make(map[ids.ID]bool),
		refunds:   make(map[common.Address]*big.Int),
		logger:    logger,
	}
}

// Endpoint binds a chain-local dispatcher to the hub. addr becomes the
// caller identity the hub uses when delivering into that chain.
func (h *Hub) Endpoint(chainID uint32, addr common.Address) *Endpoint {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.endpoints[chainID] = addr
	return &Endpoint{hub: h, chainID: chainID, addr: addr}
}

// Register attaches a receiver at (chainID, addr) so dispatches whose
// path targets that address get delivered to it.
func (h *Hub) Register(chainID uint32, addr common.Address, r Receiver) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.receivers[endpointKey{chainID, addr}] = r
}

// Pending returns the number of queued deliveries.
func (h *Hub) Pending() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.queue)
}

// Refunded returns the total native value refunded to addr.
func (h *Hub) Refunded(addr common.Address) *big.Int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if v, ok := h.refunds[addr]; ok {
		return new(big.Int).Set(v)
	}
	return new(big.Int)
}

// Deliver pops the oldest queued message and hands it to the receiver
// at its destination. The delivered source address is the path as seen
// from the destination chain, remote contract first.
func (h *Hub) Deliver() error {
	h.mu.Lock()
	if len(h.queue) == 0 {
		h.mu.Unlock()
		return ErrEmptyQueue
	}
	d := h.queue[0]
	h.queue = h.queue[1:]

	destAddr := common.BytesToAddress(d.path[:20])
	receiver, ok := h.receivers[endpointKey{d.destChain, destAddr}]
	if !ok {
		h.mu.Unlock()
		return ErrNoReceiver
	}
	caller := h.endpoints[d.destChain]

	srcAddress := make([]byte, len(d.path))
	copy(srcAddress, d.path[20:])
	copy(srcAddress[20:], d.path[:20])
	h.mu.Unlock()

	err := receiver.OnMessage(caller, d.srcChain, srcAddress, d.nonce, d.payload)
	if h.logger != nil {
		h.logger.Debug("delivered", "id", d.id, "src", d.srcChain, "dest", d.destChain, "err", err)
	}
	return err
}

// DeliverAll drains the queue, stopping at the first receiver error.
func (h *Hub) DeliverAll() error {
	for {
		err := h.Deliver()
		if errors.Is(err, ErrEmptyQueue) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func (h *Hub) quote(payload []byte, destGas uint64) *big.Int {
	fee := new(big.Int).Set(h.fees.Base)
	fee.Add(fee, new(big.Int).Mul(h.fees.PerByte, big.NewInt(int64(len(payload)))))
	fee.Add(fee, new(big.Int).Mul(h.fees.GasPrice, new(big.Int).SetUint64(destGas)))
	return fee
}

func (h *Hub) route(srcChain, destChain uint32, path, payload []byte, destGas uint64, fee *big.Int, refundTo common.Address) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(path) != 40 {
		return ErrBadPath
	}
	if _, ok := h.endpoints[destChain]; !ok {
		return ErrUnknownEndpoint
	}
	quote := h.quote(payload, destGas)
	if fee == nil || fee.Cmp(quote) < 0 {
		return ErrUnderpaid
	}

	lane := laneKey(srcChain, destChain)
	nonce := h.nonces[lane]
	id := messageID(srcChain, destChain, path, payload, nonce)
	if h.seen[id] {
		return ErrDuplicate
	}
	h.seen[id] = true
	h.nonces[lane] = nonce + 1

	if excess := new(big.Int).Sub(fee, quote); excess.Sign() > 0 {
		prev, ok := h.refunds[refundTo]
		if !ok {
			prev = new(big.Int)
			h.refunds[refundTo] = prev
		}
		prev.Add(prev, excess)
	}

	stored := delivery{
		id:        id,
		srcChain:  srcChain,
		destChain: destChain,
		path:      append([]byte(nil), path...),
		payload:   append([]byte(nil), payload...),
		nonce:     nonce,
	}
	h.queue = append(h.queue, stored)
	if h.logger != nil {
		h.logger.Debug("queued", "id", id, "src", srcChain, "dest", destChain, "nonce", nonce)
	}
	return nil
}

// Endpoint is the chain-local face of the hub. It satisfies the
// bridge controller's Messenger interface.
type Endpoint struct {
	hub     *Hub
	chainID uint32
	addr    common.Address
}

// Address returns the endpoint's caller identity.
func (e *Endpoint) Address() common.Address { return e.addr }

// ChainID returns the chain the endpoint is bound to.
func (e *Endpoint) ChainID() uint32 { return e.chainID }

// EstimateFee quotes the native fee for delivering payload to
// destChain with destGas execution gas.
func (e *Endpoint) EstimateFee(destChain uint32, payload []byte, destGas uint64) (*big.Int, error) {
	e.hub.mu.Lock()
	defer e.hub.mu.Unlock()
	if _, ok := e.hub.endpoints[destChain]; !ok {
		return nil, ErrUnknownEndpoint
	}
	return e.hub.quote(payload, destGas), nil
}

// Dispatch queues payload for delivery on destChain. Overpayment
// beyond the quote is credited back to refundTo.
func (e *Endpoint) Dispatch(destChain uint32, path []byte, payload []byte, destGas uint64, fee *big.Int, refundTo common.Address) error {
	return e.hub.route(e.chainID, destChain, path, payload, destGas, fee, refundTo)
}

func laneKey(src, dest uint32) uint64 {
	return uint64(src)<<32 | uint64(dest)
}

func messageID(srcChain, destChain uint32, path, payload []byte, nonce uint64) ids.ID {
	h := blake3.New()
	var word [8]byte
	binary.BigEndian.PutUint32(word[:4], srcChain)
	binary.BigEndian.PutUint32(word[4:], destChain)
	h.Write(word[:])
	h.Write(path)
	h.Write(payload)
	binary.BigEndian.PutUint64(word[:], nonce)
	h.Write(word[:])
	var id ids.ID
	h.Sum(id[:0])
	return id
}
