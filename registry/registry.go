// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package registry holds the well-known chain identifiers the bridge
// ships tokens between, plus helpers for validating remote contract
// paths.
package registry

// Chain identifiers used by the messaging gateway.
const (
	ChainLux       uint32 = 96369 // Lux mainnet C-Chain
	ChainLuxTest   uint32 = 96368 // Lux testnet
	ChainEthereum  uint32 = 1     // Ethereum mainnet
	ChainArbitrum  uint32 = 42161 // Arbitrum One
	ChainOptimism  uint32 = 10    // Optimism
	ChainBase      uint32 = 8453  // Base
	ChainPolygon   uint32 = 137   // Polygon PoS
	ChainBSC       uint32 = 56    // BNB Smart Chain
	ChainAvalanche uint32 = 43114 // Avalanche C-Chain
)

var chainNames = map[uint32]string{
	ChainLux:       "lux",
	ChainLuxTest:   "lux-test",
	ChainEthereum:  "ethereum",
	ChainArbitrum:  "arbitrum",
	ChainOptimism:  "optimism",
	ChainBase:      "base",
	ChainPolygon:   "polygon",
	ChainBSC:       "bsc",
	ChainAvalanche: "avalanche",
}

// ChainName returns a display name for chainID, or "unknown".
func ChainName(chainID uint32) string {
	if name, ok := chainNames[chainID]; ok {
		return name
	}
	return "unknown"
}

// IsKnownChain reports whether chainID is a registered network.
func IsKnownChain(chainID uint32) bool {
	_, ok := chainNames[chainID]
	return ok
}

// RemotePathLength is the size of a trusted remote path: the 20-byte
// remote contract address followed by the 20-byte local address.
const RemotePathLength = 40

// ValidRemotePath reports whether path has the trusted-remote layout.
// An empty path means the chain is not enabled.
func ValidRemotePath(path []byte) bool {
	return len(path) == RemotePathLength
}
