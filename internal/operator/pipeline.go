package operator

import (
	"context"
	"fmt"
	"strconv"

	"github.com/fair-protocol/operator/internal/bundlr"
	"github.com/fair-protocol/operator/internal/gateway"
	"github.com/fair-protocol/operator/internal/inference"
	"github.com/fair-protocol/operator/internal/metrics"
	"github.com/fair-protocol/operator/internal/payment"
	"github.com/fair-protocol/operator/internal/protocol"
	"github.com/fair-protocol/operator/internal/respond"
	"github.com/fair-protocol/operator/pkg/logger"
)

// Ledger is the slice of the gateway the pipeline consumes.
type Ledger interface {
	GetTransaction(ctx context.Context, id string) (*gateway.Transaction, error)
	HasResponse(ctx context.Context, requestID, operatorAddr, scriptName, scriptCurator string) (bool, error)
	FetchBody(ctx context.Context, id string) (string, error)
}

// PaymentChecker proves the three-way fee split was paid.
type PaymentChecker interface {
	Verify(ctx context.Context, requestID, payerAddr string, p payment.Params) (bool, error)
}

// Engine runs one inference call against the registration's backend.
type Engine interface {
	Run(ctx context.Context, url, format string, payload []byte, contentType, scriptID, text string) (inference.Result, error)
}

// Job is one dispatchable unit of work: a discovered request transaction
// bound to the registration that will serve it.
type Job struct {
	// RequestID is the inference transaction the response must reference.
	RequestID string
	// DiscoveredID is the ledger transaction the poller found the job
	// through; it keys the processed set.
	DiscoveredID string
	UserAddress  string
	Registration *Registration
}

// Pipeline executes a single request end to end:
//
//	Fetched -> Deduplicated -> PaymentChecked -> TagsValidated ->
//	Executed -> Published -> Recorded
//
// with early exits to Skipped at any gate before execution. Every error
// is contained here and folded into the Outcome; nothing propagates to
// sibling pipelines.
type Pipeline struct {
	ledger    Ledger
	payments  PaymentChecker
	engine    Engine
	uploader  bundlr.Uploader
	registrar bundlr.Registrar
	builder   *respond.Builder

	operatorAddr string
	maxImages    int
	log          *logger.Logger
}

// NewPipeline wires a pipeline from its collaborators.
func NewPipeline(ledger Ledger, payments PaymentChecker, engine Engine, uploader bundlr.Uploader, registrar bundlr.Registrar, operatorAddr string, maxImages int, log *logger.Logger) *Pipeline {
	return &Pipeline{
		ledger:       ledger,
		payments:     payments,
		engine:       engine,
		uploader:     uploader,
		registrar:    registrar,
		builder:      respond.NewBuilder(),
		operatorAddr: operatorAddr,
		maxImages:    maxImages,
		log:          log,
	}
}

// Run processes one job. The caller holds the registration lock.
func (p *Pipeline) Run(ctx context.Context, job Job) Outcome {
	reg := job.Registration

	tx, err := p.ledger.GetTransaction(ctx, job.RequestID)
	if err != nil {
		return failed(fmt.Errorf("fetch request %s: %w", job.RequestID, err))
	}
	if tx == nil {
		// The gateway may simply not have indexed the request yet;
		// leave it eligible for the next poll.
		return failed(fmt.Errorf("request %s not found on gateway", job.RequestID))
	}

	answered, err := p.ledger.HasResponse(ctx, job.RequestID, p.operatorAddr, reg.ScriptName, reg.ScriptCurator)
	if err != nil {
		return failed(fmt.Errorf("check existing response for %s: %w", job.RequestID, err))
	}
	if answered {
		return skipped(SkipAlreadyAnswered)
	}

	nImages := parseNImages(tx.Tags)
	paid, err := p.payments.Verify(ctx, job.RequestID, job.UserAddress, payment.Params{
		ScriptID:       reg.ScriptID,
		CuratorAddress: reg.ScriptCurator,
		CreatorAddress: reg.ModelOwner,
		OperatorFee:    reg.EffectiveFee(nImages, p.maxImages),
	})
	if err != nil {
		return failed(err)
	}
	if !paid {
		return skipped(SkipPaymentMissing)
	}

	protocolVersion := tx.Tags.Get(protocol.TagProtocolVersion)
	conversationID := tx.Tags.Get(protocol.TagConversationIdentifier)
	if protocolVersion == "" || conversationID == "" {
		return skipped(SkipMissingTags)
	}

	if err := p.serve(ctx, tx, reg, nImages, conversationID, job.UserAddress); err != nil {
		return failed(err)
	}
	return recorded()
}

// serve runs the request's inference calls and publishes each call's
// artifacts before the next call runs. The backend reuses output paths
// across calls, so an iteration's files must be uploaded before the next
// iteration overwrites them. Artifact indexes stay request-global so
// titles and seeds are distinct across iterations.
func (p *Pipeline) serve(ctx context.Context, tx *gateway.Transaction, reg *Registration, nImages int, conversationID, userAddr string) error {
	text, err := p.ledger.FetchBody(ctx, tx.ID)
	if err != nil {
		return fmt.Errorf("fetch prompt body: %w", err)
	}
	p.log.Debug("user prompt", "request", tx.ID, "prompt", text)

	negativePrompt := tx.Tags.Get(protocol.TagNegativePrompt)
	payload, contentType, err := inference.BuildPayload(reg.PayloadFormat, text, reg.Settings, negativePrompt)
	if err != nil {
		return err
	}

	req := respond.Request{
		ID:             tx.ID,
		Tags:           tx.Tags,
		UserAddress:    userAddr,
		ConversationID: conversationID,
	}
	script := respond.Script{
		ID:                     reg.ScriptID,
		Name:                   reg.ScriptName,
		Curator:                reg.ScriptCurator,
		ModelName:              reg.ModelName,
		SettingsPrompt:         reg.SettingsPrompt(),
		SettingsNegativePrompt: reg.SettingsNegativePrompt(),
	}

	merged := inference.Result{Prompt: text}
	iterations := reg.Iterations(nImages, p.maxImages)
	for i := 0; i < iterations; i++ {
		result, err := p.engine.Run(ctx, reg.URL, reg.PayloadFormat, payload, contentType, reg.ScriptID, text)
		if err != nil {
			return fmt.Errorf("inference iteration %d: %w", i, err)
		}
		for j, path := range result.ArtifactPaths {
			seed := ""
			if j < len(result.Seeds) {
				seed = result.Seeds[j]
			}
			merged.ArtifactPaths = append(merged.ArtifactPaths, path)
			merged.Seeds = append(merged.Seeds, seed)

			idx := len(merged.ArtifactPaths) - 1
			if err := p.publish(ctx, merged, req, script, path, idx); err != nil {
				return err
			}
		}
	}
	return nil
}

// publish uploads one artifact with its derived tag set. An upload failure
// aborts the remaining artifacts; a token-registration failure is logged
// and swallowed because the artifact is already on the ledger.
func (p *Pipeline) publish(ctx context.Context, result inference.Result, req respond.Request, script respond.Script, path string, idx int) error {
	tags := p.builder.Build(result, req, script, idx)
	artifactID, err := p.uploader.UploadFile(ctx, path, tags)
	if err != nil {
		return fmt.Errorf("upload artifact %d: %w", idx, err)
	}
	metrics.ArtifactsPublished.Inc()
	p.log.Info("artifact published", "request", req.ID, "artifact", artifactID)

	contractID, err := p.registrar.Register(ctx, artifactID)
	if err != nil {
		metrics.TokenRegistrations.WithLabelValues("error").Inc()
		p.log.Error("token registration failed", "artifact", artifactID, "error", err)
		return nil
	}
	metrics.TokenRegistrations.WithLabelValues("ok").Inc()
	p.log.Info("token registered", "artifact", artifactID, "contract", contractID)
	return nil
}

// parseNImages reads the requested image count; zero means unspecified.
func parseNImages(tags protocol.TagSet) int {
	raw, ok := tags.Find(protocol.TagNImages)
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
