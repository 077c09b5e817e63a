// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package bridge

import (
	"math/big"
	"testing"
	"time"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/log"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/bondtoken/access"
	"github.com/luxfi/bondtoken/registry"
	"github.com/luxfi/bondtoken/token"
)

var (
	owner       = common.HexToAddress("0x0000000000000000000000000000000000000001")
	user        = common.HexToAddress("0x0000000000000000000000000000000000000002")
	feePool     = common.HexToAddress("0x0000000000000000000000000000000000000003")
	gatewayAddr = common.HexToAddress("0x0000000000000000000000000000000000000004")
	outsider    = common.HexToAddress("0x0000000000000000000000000000000000000005")
	localAddr   = common.HexToAddress("0x0000000000000000000000000000000000000010")
	remoteAddr  = common.HexToAddress("0x0000000000000000000000000000000000000020")
)

type dispatched struct {
	destChain uint32
	path      []byte
	payload   []byte
	destGas   uint64
	fee       *big.Int
	refundTo  common.Address
}

// mockMessenger records dispatches and quotes a flat fee.
type mockMessenger struct {
	quote        *big.Int
	dispatches   []dispatched
	failDispatch bool
}

func (m *mockMessenger) EstimateFee(destChain uint32, payload []byte, destGas uint64) (*big.Int, error) {
	return new(big.Int).Set(m.quote), nil
}

func (m *mockMessenger) Dispatch(destChain uint32, path, payload []byte, destGas uint64, fee *big.Int, refundTo common.Address) error {
	if m.failDispatch {
		return ErrNoGateway
	}
	m.dispatches = append(m.dispatches, dispatched{destChain, path, payload, destGas, fee, refundTo})
	return nil
}

func remotePath() []byte {
	path := make([]byte, registry.RemotePathLength)
	copy(path[:20], remoteAddr.Bytes())
	copy(path[20:], localAddr.Bytes())
	return path
}

func newController(t *testing.T) (*Controller, *token.Ledger, *mockMessenger) {
	t.Helper()
	ledger := token.NewLedger(0, feePool, nil)
	guard := access.NewController(owner)
	logger := log.NewTestLogger(log.InfoLevel)
	ctrl := NewController(ledger, guard, registry.ChainLux, feePool, nil, logger)

	messenger := &mockMessenger{quote: big.NewInt(1_000_000)}
	require.NoError(t, ctrl.SetGateway(owner, gatewayAddr, messenger))
	require.NoError(t, ctrl.SetTrustedRemote(owner, registry.ChainEthereum, remotePath()))
	return ctrl, ledger, messenger
}

func tokens(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), token.Scale)
}

func TestBridgeOut(t *testing.T) {
	ctrl, ledger, messenger := newController(t)
	require.NoError(t, ledger.Mint(user, tokens(1000)))

	id, err := ctrl.BridgeOut(user, tokens(100), registry.ChainEthereum, big.NewInt(1_000_000))
	require.NoError(t, err)
	require.NotEqual(t, [32]byte{}, id)

	// Gross burned from the caller, token fee minted to the fee pool.
	fee := new(big.Int).Mul(tokens(100), big.NewInt(int64(DefaultBridgeFee)))
	fee.Div(fee, big.NewInt(token.BasisPoints))
	net := new(big.Int).Sub(tokens(100), fee)

	require.Equal(t, tokens(900), ledger.BalanceOf(user))
	require.Equal(t, fee, ledger.BalanceOf(feePool))
	require.Equal(t, new(big.Int).Add(tokens(900), fee), ledger.TotalSupply())

	// Dispatch carried the net amount to the caller's own address.
	require.Len(t, messenger.dispatches, 1)
	d := messenger.dispatches[0]
	require.Equal(t, registry.ChainEthereum, d.destChain)
	require.Equal(t, remotePath(), d.path)
	require.Equal(t, DefaultMinDestinationGas, d.destGas)
	require.Equal(t, user, d.refundTo)

	recipient, amount, err := DecodePayload(d.payload)
	require.NoError(t, err)
	require.Equal(t, user, recipient)
	require.Equal(t, net, amount)
}

func TestBridgeOutUntrustedChain(t *testing.T) {
	ctrl, ledger, _ := newController(t)
	require.NoError(t, ledger.Mint(user, tokens(10)))

	_, err := ctrl.BridgeOut(user, tokens(1), registry.ChainPolygon, big.NewInt(1_000_000))
	require.ErrorIs(t, err, ErrInvalidDestination)
	require.Equal(t, tokens(10), ledger.BalanceOf(user))
}

func TestBridgeOutUnderpaid(t *testing.T) {
	ctrl, ledger, _ := newController(t)
	require.NoError(t, ledger.Mint(user, tokens(10)))

	_, err := ctrl.BridgeOut(user, tokens(1), registry.ChainEthereum, big.NewInt(999_999))
	require.ErrorIs(t, err, ErrInsufficientBridgeFee)
	require.Equal(t, tokens(10), ledger.BalanceOf(user))

	_, err = ctrl.BridgeOut(user, tokens(1), registry.ChainEthereum, nil)
	require.ErrorIs(t, err, ErrInsufficientBridgeFee)
}

func TestBridgeOutDispatchFailureUnwinds(t *testing.T) {
	ctrl, ledger, messenger := newController(t)
	require.NoError(t, ledger.Mint(user, tokens(10)))
	messenger.failDispatch = true

	_, err := ctrl.BridgeOut(user, tokens(10), registry.ChainEthereum, big.NewInt(1_000_000))
	require.Error(t, err)
	require.Equal(t, tokens(10), ledger.BalanceOf(user))
	require.Zero(t, ledger.BalanceOf(feePool).Sign())
	require.Equal(t, tokens(10), ledger.TotalSupply())
}

// reentrantMessenger re-enters the controller from inside Dispatch.
type reentrantMessenger struct {
	mockMessenger
	ctrl *Controller
	err  error
}

func (m *reentrantMessenger) Dispatch(destChain uint32, path, payload []byte, destGas uint64, fee *big.Int, refundTo common.Address) error {
	_, m.err = m.ctrl.BridgeOut(refundTo, tokens(1), destChain, fee)
	return m.mockMessenger.Dispatch(destChain, path, payload, destGas, fee, refundTo)
}

func TestReentrantDispatchRejected(t *testing.T) {
	ledger := token.NewLedger(0, feePool, nil)
	guard := access.NewController(owner)
	ctrl := NewController(ledger, guard, registry.ChainLux, feePool, nil, nil)

	messenger := &reentrantMessenger{mockMessenger: mockMessenger{quote: big.NewInt(1_000_000)}, ctrl: ctrl}
	require.NoError(t, ctrl.SetGateway(owner, gatewayAddr, messenger))
	require.NoError(t, ctrl.SetTrustedRemote(owner, registry.ChainEthereum, remotePath()))
	require.NoError(t, ledger.Mint(user, tokens(10)))

	done := make(chan struct{})
	var outerErr error
	go func() {
		defer close(done)
		_, outerErr = ctrl.BridgeOut(user, tokens(2), registry.ChainEthereum, big.NewInt(1_000_000))
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("BridgeOut blocked on re-entry from the messenger")
	}
	require.NoError(t, outerErr)
	require.ErrorIs(t, messenger.err, ErrReentrant)
	require.Len(t, messenger.dispatches, 1)
}

func TestBridgeOutRejectsBadAmounts(t *testing.T) {
	ctrl, _, _ := newController(t)

	_, err := ctrl.BridgeOut(user, big.NewInt(0), registry.ChainEthereum, big.NewInt(1_000_000))
	require.ErrorIs(t, err, ErrInvalidAmount)
	_, err = ctrl.BridgeOut(user, nil, registry.ChainEthereum, big.NewInt(1_000_000))
	require.ErrorIs(t, err, ErrInvalidAmount)
}

func TestBridgeOutPaused(t *testing.T) {
	ledger := token.NewLedger(0, feePool, nil)
	guard := access.NewController(owner)
	ctrl := NewController(ledger, guard, registry.ChainLux, feePool, nil, nil)
	require.NoError(t, guard.Pause(owner))

	_, err := ctrl.BridgeOut(user, tokens(1), registry.ChainEthereum, big.NewInt(1))
	require.ErrorIs(t, err, access.ErrPaused)
}

func TestOnMessageMints(t *testing.T) {
	ctrl, ledger, _ := newController(t)

	payload := EncodePayload(user, tokens(25))
	require.NoError(t, ctrl.OnMessage(gatewayAddr, registry.ChainEthereum, remotePath(), 0, payload))
	require.Equal(t, tokens(25), ledger.BalanceOf(user))
	require.Equal(t, tokens(25), ledger.TotalSupply())
}

func TestOnMessageRejectsUnknownCaller(t *testing.T) {
	ctrl, ledger, _ := newController(t)

	payload := EncodePayload(user, tokens(25))
	err := ctrl.OnMessage(outsider, registry.ChainEthereum, remotePath(), 0, payload)
	require.ErrorIs(t, err, ErrUnauthorizedOrigin)
	require.Zero(t, ledger.TotalSupply().Sign())
}

func TestOnMessageRejectsUnknownSource(t *testing.T) {
	ctrl, ledger, _ := newController(t)
	payload := EncodePayload(user, tokens(25))

	// Untrusted chain.
	err := ctrl.OnMessage(gatewayAddr, registry.ChainPolygon, remotePath(), 0, payload)
	require.ErrorIs(t, err, ErrInvalidSource)

	// Trusted chain, wrong path.
	wrong := remotePath()
	wrong[0] ^= 0xFF
	err = ctrl.OnMessage(gatewayAddr, registry.ChainEthereum, wrong, 0, payload)
	require.ErrorIs(t, err, ErrInvalidSource)
	require.Zero(t, ledger.TotalSupply().Sign())
}

func TestOnMessageRejectsBadPayload(t *testing.T) {
	ctrl, _, _ := newController(t)

	err := ctrl.OnMessage(gatewayAddr, registry.ChainEthereum, remotePath(), 0, []byte{0x01, 0x02})
	require.ErrorIs(t, err, ErrInvalidPayload)
}

func TestPayloadCodec(t *testing.T) {
	amount := new(big.Int).Sub(token.MaxSupply, big.NewInt(1))
	payload := EncodePayload(user, amount)
	require.Len(t, payload, 52)

	recipient, got, err := DecodePayload(payload)
	require.NoError(t, err)
	require.Equal(t, user, recipient)
	require.Equal(t, amount, got)

	_, _, err = DecodePayload(payload[:51])
	require.ErrorIs(t, err, ErrInvalidPayload)
}

func TestAdminGates(t *testing.T) {
	ctrl, _, messenger := newController(t)

	require.ErrorIs(t, ctrl.SetTrustedRemote(outsider, registry.ChainBase, remotePath()), access.ErrUnauthorized)
	require.ErrorIs(t, ctrl.SetGateway(outsider, gatewayAddr, messenger), access.ErrUnauthorized)
	require.ErrorIs(t, ctrl.SetMinDestinationGas(outsider, registry.ChainBase, 1), access.ErrUnauthorized)
	require.ErrorIs(t, ctrl.SetBridgeFee(outsider, 1), access.ErrUnauthorized)
	require.ErrorIs(t, ctrl.SetBridgeFee(owner, token.MaxFeeBasisPoints+1), ErrFeeTooHigh)

	// Short path rejected, empty path disables the chain.
	require.ErrorIs(t, ctrl.SetTrustedRemote(owner, registry.ChainBase, []byte{0x01}), ErrInvalidPayload)
	require.NoError(t, ctrl.SetTrustedRemote(owner, registry.ChainEthereum, nil))
	require.Nil(t, ctrl.TrustedRemote(registry.ChainEthereum))
}

func TestMinDestinationGasOverride(t *testing.T) {
	ctrl, ledger, messenger := newController(t)
	require.NoError(t, ledger.Mint(user, tokens(10)))
	require.NoError(t, ctrl.SetMinDestinationGas(owner, registry.ChainEthereum, 500_000))

	_, err := ctrl.BridgeOut(user, tokens(1), registry.ChainEthereum, big.NewInt(1_000_000))
	require.NoError(t, err)
	require.Equal(t, uint64(500_000), messenger.dispatches[0].destGas)
}

func BenchmarkBridgeOut(b *testing.B) {
	ledger := token.NewLedger(0, feePool, nil)
	guard := access.NewController(owner)
	ctrl := NewController(ledger, guard, registry.ChainLux, feePool, nil, nil)
	messenger := &mockMessenger{quote: big.NewInt(1)}
	ctrl.SetGateway(owner, gatewayAddr, messenger)
	ctrl.SetTrustedRemote(owner, registry.ChainEthereum, remotePath())
	ledger.Mint(user, token.MaxSupply)

	fee := big.NewInt(1)
	one := big.NewInt(10_000)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := ctrl.BridgeOut(user, one, registry.ChainEthereum, fee); err != nil {
			b.Fatal(err)
		}
	}
}
