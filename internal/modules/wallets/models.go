// Package wallets manages the tracked wallet addresses whose history feeds
// the tax reports.
package wallets

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// DefaultNetwork is the only chain the indexer currently serves.
const DefaultNetwork = "arbitrum-one"

var (
	// ErrNotFound is returned when a wallet does not exist
	ErrNotFound = errors.New("wallet not found")
	// ErrDuplicate is returned when the address is already tracked
	ErrDuplicate = errors.New("wallet already exists")
	// ErrInvalidInput is returned for malformed wallet fields
	ErrInvalidInput = errors.New("invalid wallet")
)

var addressPattern = regexp.MustCompile(`^0x[0-9a-f]{40}$`)

// Wallet is a tracked on-chain address
type Wallet struct {
	ID        string     `json:"id"`
	Address   string     `json:"address"`
	Label     string     `json:"label"`
	Network   string     `json:"network"`
	LastSync  *time.Time `json:"lastSync,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// NormalizeAddress trims and lowercases an address and checks its shape.
func NormalizeAddress(address string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(address))
	if !addressPattern.MatchString(normalized) {
		return "", fmt.Errorf("%w: address %q is not a 0x-prefixed 20-byte hex string", ErrInvalidInput, address)
	}
	return normalized, nil
}

// ValidateNetwork accepts an empty network (meaning DefaultNetwork) or a
// supported one.
func ValidateNetwork(network string) (string, error) {
	network = strings.TrimSpace(network)
	if network == "" {
		return DefaultNetwork, nil
	}
	if network != DefaultNetwork {
		return "", fmt.Errorf("%w: unsupported network %q", ErrInvalidInput, network)
	}
	return network, nil
}
