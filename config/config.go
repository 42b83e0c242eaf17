// Package config contains the defaults shared by the node binaries.
package config

import "time"

// Version is the build version, set at build time with -ldflags.
var Version = "dev"

// Ledger kinds.
const (
	LedgerMemory = "memory"
	LedgerWeb3   = "web3"
)

// AvailableLedgers contains the ledger kinds a node can anchor on.
var AvailableLedgers = []string{
	LedgerMemory,
	LedgerWeb3,
}

// LedgerWeb3Config contains the defaults of an EVM ledger by network.
type LedgerWeb3Config struct {
	ChainID uint64
	Timeout time.Duration
}

// DefaultLedgerConfig contains the chain id expected for each known network
// shortname. A network not listed is accepted with any chain id.
var DefaultLedgerConfig = map[string]LedgerWeb3Config{
	"sep": {
		ChainID: 11155111,
		Timeout: 2 * time.Minute,
	},
	"dev": {
		ChainID: 1337,
		Timeout: 30 * time.Second,
	},
}

// LedgerIndexPrefix namespaces the local index of anchored transactions in
// the node database.
const LedgerIndexPrefix = "la/"
