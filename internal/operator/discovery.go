package operator

import (
	"context"
	"fmt"
	"strconv"

	"github.com/fair-protocol/operator/config"
	"github.com/fair-protocol/operator/internal/gateway"
	"github.com/fair-protocol/operator/internal/protocol"
	"github.com/fair-protocol/operator/pkg/logger"
)

// RegistrationSource reads the operator's registrations off the ledger.
type RegistrationSource interface {
	OperatorRegistrations(ctx context.Context, operatorAddr string) ([]gateway.Edge, error)
	RegistrationCancelled(ctx context.Context, registrationTx, operatorAddr string) (bool, error)
	ModelOwnerAndName(ctx context.Context, scriptName, scriptCurator string) (owner, model string, err error)
}

// Discover resolves the scripts this operator serves: every on-ledger
// registration that was not cancelled, is well formed, and has a backend
// mapping in the local configuration. Malformed or unmapped
// registrations are logged and dropped rather than failing startup.
func Discover(ctx context.Context, source RegistrationSource, operatorAddr string, urls map[string]config.ScriptConfig, log *logger.Logger) ([]Registration, error) {
	edges, err := source.OperatorRegistrations(ctx, operatorAddr)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}

	var regs []Registration
	seen := make(map[string]struct{})
	for _, edge := range edges {
		node := edge.Node
		reg, err := parseRegistration(node)
		if err != nil {
			log.Warn("ignoring malformed registration", "id", node.ID, "error", err)
			continue
		}
		if _, dup := seen[reg.ScriptID]; dup {
			// Results are newest first; keep only the latest
			// registration per script.
			continue
		}

		cancelled, err := source.RegistrationCancelled(ctx, reg.ID, operatorAddr)
		if err != nil {
			return nil, fmt.Errorf("check cancellation of %s: %w", reg.ID, err)
		}
		if cancelled {
			log.Info("registration cancelled, skipping", "id", reg.ID, "script", reg.ScriptName)
			seen[reg.ScriptID] = struct{}{}
			continue
		}

		sc, ok := urls[reg.ScriptID]
		if !ok {
			log.Warn("registration has no configured backend", "id", reg.ID, "script", reg.ScriptID)
			continue
		}
		reg.URL = sc.URL
		reg.PayloadFormat = sc.PayloadFormat
		reg.Settings = sc.Settings

		owner, model, err := source.ModelOwnerAndName(ctx, reg.ScriptName, reg.ScriptCurator)
		if err != nil {
			return nil, fmt.Errorf("resolve model for %s: %w", reg.ScriptName, err)
		}
		if owner == "" || model == "" {
			// Without a creator address the fee split cannot be
			// verified; serving this script would terminally skip
			// every paid request.
			log.Warn("registration script has no model owner or name", "id", reg.ID, "script", reg.ScriptName)
			continue
		}
		reg.ModelOwner = owner
		reg.ModelName = model

		seen[reg.ScriptID] = struct{}{}
		regs = append(regs, reg)
		log.Info("serving registration",
			"id", reg.ID, "script", reg.ScriptName, "fee", strconv.FormatFloat(reg.OperatorFee, 'f', -1, 64))
	}
	return regs, nil
}

func parseRegistration(node gateway.Transaction) (Registration, error) {
	name := node.Tags.Get(protocol.TagScriptName)
	curator := node.Tags.Get(protocol.TagScriptCurator)
	scriptID := node.Tags.Get(protocol.TagScriptTransaction)
	feeRaw := node.Tags.Get(protocol.TagOperatorFee)
	if name == "" || curator == "" || scriptID == "" || feeRaw == "" {
		return Registration{}, fmt.Errorf("missing registration tags")
	}
	fee, err := strconv.ParseFloat(feeRaw, 64)
	if err != nil || fee <= 0 {
		return Registration{}, fmt.Errorf("invalid operator fee %q", feeRaw)
	}
	return Registration{
		ID:            node.ID,
		ScriptID:      scriptID,
		ScriptName:    name,
		ScriptCurator: curator,
		OperatorFee:   fee,
	}, nil
}
