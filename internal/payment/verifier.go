// Package payment proves that a request's three-way inference fee was paid
// on the value-transfer contract before any work is dispatched.
package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/fair-protocol/operator/internal/gateway"
	"github.com/fair-protocol/operator/internal/protocol"
)

// requiredTransfers is the number of distinct transfers the split demands:
// marketplace, curator and creator. None is optional.
const requiredTransfers = 3

// transferInput mirrors the contract interaction payload. Field order
// matters: the serialized string must match the payer's byte-for-byte.
type transferInput struct {
	Function string `json:"function"`
	Target   string `json:"target"`
	Qty      string `json:"qty"`
}

// Split is the three-way division of an operator fee.
type Split struct {
	Marketplace float64
	Curator     float64
	Creator     float64
}

// ComputeSplit derives the fee split from the effective operator fee.
func ComputeSplit(operatorFee float64) Split {
	return Split{
		Marketplace: operatorFee * protocol.MarketplaceFeeShare,
		Curator:     operatorFee * protocol.CuratorFeeShare,
		Creator:     operatorFee * protocol.CreatorFeeShare,
	}
}

// Params carries the registration fields the verifier needs.
type Params struct {
	ScriptID       string
	CuratorAddress string
	CreatorAddress string
	// OperatorFee is the effective fee for this request, already scaled
	// by the image count where the payload format requires it.
	OperatorFee float64
}

// ProofSource queries the ledger for confirmed payment transactions.
type ProofSource interface {
	PaymentProofs(ctx context.Context, requestID, payerAddr, scriptID string, inputs []string) ([]gateway.Edge, error)
}

// Verifier checks inference payments against the ledger.
type Verifier struct {
	source ProofSource
}

// NewVerifier builds a Verifier over the given proof source.
func NewVerifier(source ProofSource) *Verifier {
	return &Verifier{source: source}
}

// ExpectedInputs returns the three canonical transfer payloads the payer
// must have submitted, in marketplace, curator, creator order. Quantities
// truncate toward zero; the on-chain amounts are integer strings.
func ExpectedInputs(p Params) ([]string, error) {
	split := ComputeSplit(p.OperatorFee)
	targets := []transferInput{
		{Function: "transfer", Target: protocol.VaultAddress, Qty: truncQty(split.Marketplace)},
		{Function: "transfer", Target: p.CuratorAddress, Qty: truncQty(split.Curator)},
		{Function: "transfer", Target: p.CreatorAddress, Qty: truncQty(split.Creator)},
	}
	inputs := make([]string, 0, len(targets))
	for _, t := range targets {
		raw, err := json.Marshal(t)
		if err != nil {
			return nil, fmt.Errorf("encode transfer input: %w", err)
		}
		inputs = append(inputs, string(raw))
	}
	return inputs, nil
}

// Verify reports whether the payer submitted all three expected transfers
// for the request. A returned error means the ledger could not be
// consulted and the check should be retried on a later poll; false with a
// nil error is a definitive missing payment.
func (v *Verifier) Verify(ctx context.Context, requestID, payerAddr string, p Params) (bool, error) {
	inputs, err := ExpectedInputs(p)
	if err != nil {
		return false, err
	}

	proofs, err := v.source.PaymentProofs(ctx, requestID, payerAddr, p.ScriptID, inputs)
	if err != nil {
		return false, fmt.Errorf("query payment proofs: %w", err)
	}
	if len(proofs) < requiredTransfers {
		return false, nil
	}

	// Every expected payload must match at least one returned transaction;
	// no partial credit.
	for _, input := range inputs {
		if !anyProofMatches(proofs, input) {
			return false, nil
		}
	}
	return true, nil
}

func anyProofMatches(proofs []gateway.Edge, input string) bool {
	for _, edge := range proofs {
		for _, tag := range edge.Node.Tags {
			if tag.Name == protocol.TagInput && tag.Value == input {
				return true
			}
		}
	}
	return false
}

// truncQty formats a fee share as the integer string the contract records,
// truncating toward zero rather than rounding.
func truncQty(share float64) string {
	return strconv.FormatInt(int64(share), 10)
}
