// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package bridge

import (
	"encoding/binary"
	"errors"
	"math/big"

	"github.com/luxfi/crypto"
	"github.com/luxfi/geth/common"
	"github.com/zeebo/blake3"
)

// Bridge errors
var (
	ErrInvalidAmount         = errors.New("invalid amount")
	ErrInvalidDestination    = errors.New("destination chain not trusted")
	ErrInsufficientBridgeFee = errors.New("insufficient bridge fee")
	ErrUnauthorizedOrigin    = errors.New("caller is not the messaging gateway")
	ErrInvalidSource         = errors.New("source address is not the trusted remote")
	ErrInvalidPayload        = errors.New("malformed bridge payload")
	ErrReentrant             = errors.New("reentrancy detected")
	ErrZeroAddress           = errors.New("zero address")
	ErrFeeTooHigh            = errors.New("fee exceeds maximum")
	ErrNoGateway             = errors.New("messaging gateway not set")
)

// Event topics emitted by the controller.
var (
	BridgeInitiatedTopic      = common.BytesToHash(crypto.Keccak256([]byte("BridgeInitiated(address,uint256,uint32)")))
	BridgeCompletedTopic      = common.BytesToHash(crypto.Keccak256([]byte("BridgeCompleted(address,uint256,uint32)")))
	TrustedRemoteUpdatedTopic = common.BytesToHash(crypto.Keccak256([]byte("TrustedRemoteUpdated(uint32,bytes)")))
	MinGasUpdatedTopic        = common.BytesToHash(crypto.Keccak256([]byte("MinDestinationGasUpdated(uint32,uint64)")))
)

// DefaultBridgeFee is the default outbound token fee in basis points.
const DefaultBridgeFee uint32 = 50

// DefaultMinDestinationGas is the gas forwarded on the destination
// chain when no per-chain override is configured.
const DefaultMinDestinationGas uint64 = 200_000

// Messenger is the cross-chain transport the controller dispatches
// through. EstimateFee quotes the native fee for delivering payload to
// destChain with destGas execution gas; Dispatch queues the message
// and refunds any native overpayment to refundTo.
type Messenger interface {
	EstimateFee(destChain uint32, payload []byte, destGas uint64) (*big.Int, error)
	Dispatch(destChain uint32, path []byte, payload []byte, destGas uint64, fee *big.Int, refundTo common.Address) error
}

// payloadLength is a 20-byte recipient followed by a 32-byte
// big-endian amount.
const payloadLength = 20 + 32

// EncodePayload packs a recipient and amount into the wire payload.
func EncodePayload(recipient common.Address, amount *big.Int) []byte {
	buf := make([]byte, payloadLength)
	copy(buf[:20], recipient.Bytes())
	amount.FillBytes(buf[20:])
	return buf
}

// DecodePayload unpacks the wire payload produced by EncodePayload.
func DecodePayload(payload []byte) (common.Address, *big.Int, error) {
	if len(payload) != payloadLength {
		return common.Address{}, nil, ErrInvalidPayload
	}
	recipient := common.BytesToAddress(payload[:20])
	amount := new(big.Int).SetBytes(payload[20:])
	return recipient, amount, nil
}

// transferID derives a deterministic identifier for an outbound
// transfer, used for logging and gateway-side dedup.
func transferID(srcChain, destChain uint32, sender common.Address, payload []byte, nonce uint64) [32]byte {
	h := blake3.New()
	var word [8]byte
	binary.BigEndian.PutUint32(word[:4], srcChain)
	binary.BigEndian.PutUint32(word[4:], destChain)
	h.Write(word[:])
	h.Write(sender.Bytes())
	h.Write(payload)
	binary.BigEndian.PutUint64(word[:], nonce)
	h.Write(word[:])
	var id [32]byte
	h.Sum(id[:0])
	return id
}
