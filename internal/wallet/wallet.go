// Package wallet loads the operator's JWK keyfile and derives the ledger
// address the wallet signs as.
package wallet

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
)

// JWK is the subset of an RSA JSON web key the operator needs. The full
// key material stays in the struct so collaborators that sign uploads can
// consume it, but only the modulus participates in address derivation.
type JWK struct {
	KeyType string `json:"kty"`
	N       string `json:"n"`
	E       string `json:"e"`
	D       string `json:"d,omitempty"`
	P       string `json:"p,omitempty"`
	Q       string `json:"q,omitempty"`
	DP      string `json:"dp,omitempty"`
	DQ      string `json:"dq,omitempty"`
	QI      string `json:"qi,omitempty"`
}

// Wallet is a loaded keyfile plus its derived address.
type Wallet struct {
	Key     JWK
	Address string
}

// Load reads a JWK keyfile and derives its address.
func Load(path string) (*Wallet, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read wallet %s: %w", path, err)
	}
	var key JWK
	if err := json.Unmarshal(raw, &key); err != nil {
		return nil, fmt.Errorf("parse wallet %s: %w", path, err)
	}
	addr, err := Address(key)
	if err != nil {
		return nil, err
	}
	return &Wallet{Key: key, Address: addr}, nil
}

// Address derives the ledger address: the unpadded base64url SHA-256 of
// the decoded modulus.
func Address(key JWK) (string, error) {
	if key.N == "" {
		return "", fmt.Errorf("wallet key has no modulus")
	}
	modulus, err := base64.RawURLEncoding.DecodeString(key.N)
	if err != nil {
		return "", fmt.Errorf("decode wallet modulus: %w", err)
	}
	sum := sha256.Sum256(modulus)
	return base64.RawURLEncoding.EncodeToString(sum[:]), nil
}
