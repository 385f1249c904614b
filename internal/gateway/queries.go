package gateway

import (
	"context"
	"fmt"

	"github.com/fair-protocol/operator/internal/protocol"
)

const (
	requestPageSize   = 10
	paymentResultCap  = 3
	answeredResultCap = 1

	// registrationResultCap bounds registration discovery; one wallet
	// registers at most a handful of scripts.
	registrationResultCap = 100
)

// RequestsReceived returns one page of inference requests addressed to the
// operator for any of the given scripts.
func (c *Client) RequestsReceived(ctx context.Context, operatorAddr string, scriptIDs []string, after string) (Page, error) {
	tags := []TagFilter{
		{Name: protocol.TagProtocolName, Values: []string{protocol.ProtocolName}},
		{Name: protocol.TagOperationName, Values: []string{protocol.OperationInferenceRequest}},
		{Name: protocol.TagScriptTransaction, Values: scriptIDs},
		{Name: protocol.TagScriptOperator, Values: []string{operatorAddr}},
	}
	return c.QueryByTags(ctx, tags, requestPageSize, after)
}

// HasResponse reports whether the operator already answered the request.
func (c *Client) HasResponse(ctx context.Context, requestID, operatorAddr, scriptName, scriptCurator string) (bool, error) {
	tags := []TagFilter{
		{Name: protocol.TagProtocolName, Values: []string{protocol.ProtocolName}},
		{Name: protocol.TagOperationName, Values: []string{protocol.OperationInferenceResponse}},
		{Name: protocol.TagScriptName, Values: []string{scriptName}},
		{Name: protocol.TagScriptCurator, Values: []string{scriptCurator}},
		{Name: protocol.TagRequestTransaction, Values: []string{requestID}},
	}
	page, err := c.QueryByTagsOwned(ctx, tags, operatorAddr, answeredResultCap)
	if err != nil {
		return false, err
	}
	return len(page.Edges) > 0, nil
}

// PaymentProofs returns the confirmed value-transfer transactions for a
// request whose Input matches any of the expected transfer payloads. The
// result is capped at the three transfers the fee split requires.
func (c *Client) PaymentProofs(ctx context.Context, requestID, payerAddr, scriptID string, inputs []string) ([]Edge, error) {
	tags := []TagFilter{
		{Name: protocol.TagProtocolName, Values: []string{protocol.ProtocolName}},
		{Name: protocol.TagOperationName, Values: []string{protocol.OperationInferencePayment}},
		{Name: protocol.TagScriptTransaction, Values: []string{scriptID}},
		{Name: protocol.TagInferenceTransaction, Values: []string{requestID}},
		{Name: protocol.TagContract, Values: []string{protocol.UContractID}},
		{Name: protocol.TagSequencerOwner, Values: []string{payerAddr}},
		{Name: protocol.TagInput, Values: inputs},
	}
	page, err := c.QueryByTags(ctx, tags, paymentResultCap, "")
	if err != nil {
		return nil, err
	}
	return page.Edges, nil
}

// OperatorRegistrations lists the registration transactions the operator
// wallet has published.
func (c *Client) OperatorRegistrations(ctx context.Context, operatorAddr string) ([]Edge, error) {
	tags := []TagFilter{
		{Name: protocol.TagProtocolName, Values: []string{protocol.ProtocolName}},
		{Name: protocol.TagOperationName, Values: []string{protocol.OperationRegistration}},
	}
	page, err := c.QueryByTagsOwned(ctx, tags, operatorAddr, registrationResultCap)
	if err != nil {
		return nil, err
	}
	return page.Edges, nil
}

// RegistrationCancelled reports whether the operator later cancelled the
// given registration transaction.
func (c *Client) RegistrationCancelled(ctx context.Context, registrationTx, operatorAddr string) (bool, error) {
	tags := []TagFilter{
		{Name: protocol.TagProtocolName, Values: []string{protocol.ProtocolName}},
		{Name: protocol.TagOperationName, Values: []string{protocol.OperationCancel}},
		{Name: protocol.TagRegistrationTransaction, Values: []string{registrationTx}},
	}
	page, err := c.QueryByTagsOwned(ctx, tags, operatorAddr, answeredResultCap)
	if err != nil {
		return false, err
	}
	return len(page.Edges) > 0, nil
}

// ModelOwnerAndName resolves the model creator address and model name from
// the script's curation transaction.
func (c *Client) ModelOwnerAndName(ctx context.Context, scriptName, scriptCurator string) (owner, model string, err error) {
	tags := []TagFilter{
		{Name: protocol.TagProtocolName, Values: []string{protocol.ProtocolName}},
		{Name: protocol.TagScriptName, Values: []string{scriptName}},
	}
	page, err := c.QueryByTagsOwned(ctx, tags, scriptCurator, answeredResultCap)
	if err != nil {
		return "", "", err
	}
	if len(page.Edges) == 0 {
		return "", "", fmt.Errorf("no script transaction for %q curated by %s", scriptName, scriptCurator)
	}
	scriptTags := page.Edges[0].Node.Tags
	return scriptTags.Get("Model-Creator"), scriptTags.Get(protocol.TagModelName), nil
}
