package operator

import (
	"context"
	"time"

	"github.com/fair-protocol/operator/internal/gateway"
	"github.com/fair-protocol/operator/internal/metrics"
	"github.com/fair-protocol/operator/internal/protocol"
	"github.com/fair-protocol/operator/pkg/logger"
)

// RequestSource lists inference requests addressed to this operator.
type RequestSource interface {
	RequestsReceived(ctx context.Context, operatorAddr string, scriptIDs []string, after string) (gateway.Page, error)
}

// Submitter accepts jobs for execution.
type Submitter interface {
	Submit(job Job)
}

// Poller drives the main loop: it pages through new requests on the
// ledger, filters out ones already handled or out of scope, and hands
// the remainder to the dispatcher.
type Poller struct {
	source      RequestSource
	dispatcher  Submitter
	state       *State
	operator    string
	startHeight int64
	sleep       time.Duration
	log         *logger.Logger
}

func NewPoller(source RequestSource, dispatcher Submitter, state *State, operatorAddr string, startHeight int64, sleep time.Duration, log *logger.Logger) *Poller {
	return &Poller{
		source:      source,
		dispatcher:  dispatcher,
		state:       state,
		operator:    operatorAddr,
		startHeight: startHeight,
		sleep:       sleep,
		log:         log,
	}
}

// Run polls until the context is cancelled. The first cycle fires
// immediately so a restart picks up backlog without waiting a full
// sleep interval.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.sleep)
	defer ticker.Stop()
	for {
		if err := p.cycle(ctx); err != nil {
			metrics.PollCycles.WithLabelValues("error").Inc()
			p.log.Error("poll cycle failed", "error", err)
		} else {
			metrics.PollCycles.WithLabelValues("ok").Inc()
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// cycle pages through every pending request once.
func (p *Poller) cycle(ctx context.Context) error {
	scriptIDs := p.state.ScriptIDs()
	if len(scriptIDs) == 0 {
		return nil
	}

	after := ""
	for {
		page, err := p.source.RequestsReceived(ctx, p.operator, scriptIDs, after)
		if err != nil {
			return err
		}
		for _, edge := range page.Edges {
			p.consider(edge.Node)
		}
		if !page.HasNextPage || len(page.Edges) == 0 {
			return nil
		}
		after = page.Edges[len(page.Edges)-1].Cursor
	}
}

// consider decides whether one discovered transaction becomes a job.
func (p *Poller) consider(tx gateway.Transaction) {
	processed := p.state.Processed()
	if processed.IsProcessed(tx.ID) {
		return
	}

	if tx.Block != nil && tx.Block.Height < p.startHeight {
		processed.MarkSkipped(tx.ID)
		metrics.SkipsTotal.WithLabelValues(string(SkipBelowStartHeight)).Inc()
		p.log.Debug("request below start height", "id", tx.ID, "height", tx.Block.Height)
		return
	}

	scriptID := tx.Tags.Get(protocol.TagScriptTransaction)
	reg, ok := p.state.RegistrationFor(scriptID)
	if !ok {
		// Not one of ours despite matching the query; a stale
		// registration could produce this. Never serve it.
		processed.MarkSkipped(tx.ID)
		metrics.SkipsTotal.WithLabelValues(string(SkipMissingTags)).Inc()
		p.log.Warn("request references unknown script", "id", tx.ID, "script", scriptID)
		return
	}

	requestID := tx.Tags.Get(protocol.TagInferenceTransaction)
	if requestID == "" {
		// Without the request reference there is nothing to verify a
		// payment against or answer to; the edge is malformed.
		processed.MarkSkipped(tx.ID)
		metrics.SkipsTotal.WithLabelValues(string(SkipMissingTags)).Inc()
		p.log.Warn("request edge has no inference transaction", "id", tx.ID)
		return
	}
	userAddr := tx.Tags.Get(protocol.TagSequencerOwner)
	if userAddr == "" {
		userAddr = tx.Owner.Address
	}

	p.log.Info("request discovered", "id", tx.ID, "request", requestID, "script", reg.ScriptName)
	p.dispatcher.Submit(Job{
		RequestID:    requestID,
		DiscoveredID: tx.ID,
		UserAddress:  userAddr,
		Registration: reg,
	})
}

// ConsumeEvents logs and counts pipeline outcomes until the channel
// closes. Run it on its own goroutine alongside the dispatcher.
func ConsumeEvents(events <-chan Event, log *logger.Logger) {
	for ev := range events {
		metrics.RequestsTotal.WithLabelValues(string(ev.Outcome.Status)).Inc()
		switch ev.Outcome.Status {
		case StatusRecorded:
			log.Info("request served", "job", ev.JobID, "request", ev.RequestID, "registration", ev.RegistrationID)
		case StatusSkipped:
			metrics.SkipsTotal.WithLabelValues(string(ev.Outcome.Reason)).Inc()
			log.Info("request skipped", "job", ev.JobID, "request", ev.RequestID, "reason", string(ev.Outcome.Reason))
		case StatusFailed:
			log.Error("request failed, will retry", "job", ev.JobID, "request", ev.RequestID, "error", ev.Outcome.Err)
		}
	}
}
