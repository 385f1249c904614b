package operator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fair-protocol/operator/internal/gateway"
	"github.com/fair-protocol/operator/internal/protocol"
	"github.com/fair-protocol/operator/pkg/logger"
)

type fakeSource struct {
	pages []gateway.Page
	calls int
	after []string
}

func (f *fakeSource) RequestsReceived(ctx context.Context, operatorAddr string, scriptIDs []string, after string) (gateway.Page, error) {
	f.after = append(f.after, after)
	if f.calls >= len(f.pages) {
		return gateway.Page{}, nil
	}
	page := f.pages[f.calls]
	f.calls++
	return page, nil
}

type collectingSubmitter struct {
	jobs []Job
}

func (c *collectingSubmitter) Submit(job Job) { c.jobs = append(c.jobs, job) }

func requestNode(id, scriptID string) gateway.Transaction {
	return gateway.Transaction{
		ID:    id,
		Owner: gateway.Owner{Address: "SIGNER"},
		Tags: protocol.TagSet{
			{Name: protocol.TagScriptTransaction, Value: scriptID},
			{Name: protocol.TagInferenceTransaction, Value: id},
			{Name: protocol.TagSequencerOwner, Value: "USER"},
		},
		Block: &gateway.Block{Height: 500},
	}
}

func newTestPoller(source RequestSource, sub Submitter, state *State, startHeight int64) *Poller {
	return NewPoller(source, sub, state, "OPERATOR", startHeight, time.Minute, logger.New("test"))
}

func TestPollerSubmitsDiscoveredRequests(t *testing.T) {
	state := NewState([]Registration{{ID: "reg-1", ScriptID: "script-a"}})
	source := &fakeSource{pages: []gateway.Page{
		{Edges: []gateway.Edge{
			{Cursor: "c1", Node: requestNode("req-1", "script-a")},
			{Cursor: "c2", Node: requestNode("req-2", "script-a")},
		}},
	}}
	sub := &collectingSubmitter{}

	require.NoError(t, newTestPoller(source, sub, state, 0).cycle(context.Background()))

	require.Len(t, sub.jobs, 2)
	assert.Equal(t, "req-1", sub.jobs[0].RequestID)
	assert.Equal(t, "USER", sub.jobs[0].UserAddress)
	assert.Equal(t, "reg-1", sub.jobs[0].Registration.ID)
}

func TestPollerFollowsPagination(t *testing.T) {
	state := NewState([]Registration{{ID: "reg-1", ScriptID: "script-a"}})
	source := &fakeSource{pages: []gateway.Page{
		{
			Edges:       []gateway.Edge{{Cursor: "c1", Node: requestNode("req-1", "script-a")}},
			HasNextPage: true,
		},
		{
			Edges: []gateway.Edge{{Cursor: "c2", Node: requestNode("req-2", "script-a")}},
		},
	}}
	sub := &collectingSubmitter{}

	require.NoError(t, newTestPoller(source, sub, state, 0).cycle(context.Background()))

	assert.Equal(t, []string{"", "c1"}, source.after)
	assert.Len(t, sub.jobs, 2)
}

func TestPollerFiltersProcessed(t *testing.T) {
	state := NewState([]Registration{{ID: "reg-1", ScriptID: "script-a"}})
	state.Processed().MarkProcessed("req-1")
	source := &fakeSource{pages: []gateway.Page{
		{Edges: []gateway.Edge{{Node: requestNode("req-1", "script-a")}}},
	}}
	sub := &collectingSubmitter{}

	require.NoError(t, newTestPoller(source, sub, state, 0).cycle(context.Background()))
	assert.Empty(t, sub.jobs)
}

func TestPollerSkipsBelowStartHeight(t *testing.T) {
	state := NewState([]Registration{{ID: "reg-1", ScriptID: "script-a"}})
	old := requestNode("req-old", "script-a")
	old.Block = &gateway.Block{Height: 99}
	source := &fakeSource{pages: []gateway.Page{
		{Edges: []gateway.Edge{{Node: old}}},
	}}
	sub := &collectingSubmitter{}

	require.NoError(t, newTestPoller(source, sub, state, 100).cycle(context.Background()))

	assert.Empty(t, sub.jobs)
	assert.True(t, state.Processed().IsProcessed("req-old"), "old requests are settled, not retried")
}

func TestPollerUnconfirmedRequestIsEligible(t *testing.T) {
	state := NewState([]Registration{{ID: "reg-1", ScriptID: "script-a"}})
	pending := requestNode("req-pending", "script-a")
	pending.Block = nil
	source := &fakeSource{pages: []gateway.Page{
		{Edges: []gateway.Edge{{Node: pending}}},
	}}
	sub := &collectingSubmitter{}

	require.NoError(t, newTestPoller(source, sub, state, 100).cycle(context.Background()))
	assert.Len(t, sub.jobs, 1)
}

func TestPollerSkipsUnknownScript(t *testing.T) {
	state := NewState([]Registration{{ID: "reg-1", ScriptID: "script-a"}})
	source := &fakeSource{pages: []gateway.Page{
		{Edges: []gateway.Edge{{Node: requestNode("req-x", "script-unknown")}}},
	}}
	sub := &collectingSubmitter{}

	require.NoError(t, newTestPoller(source, sub, state, 0).cycle(context.Background()))

	assert.Empty(t, sub.jobs)
	assert.True(t, state.Processed().IsProcessed("req-x"))
}

func TestPollerSkipsEdgeWithoutRequestReference(t *testing.T) {
	// No Inference-Transaction tag means there is nothing to verify a
	// payment against; dispatching under a guessed id would terminally
	// mark a request that was never identified.
	state := NewState([]Registration{{ID: "reg-1", ScriptID: "script-a"}})
	node := gateway.Transaction{
		ID:    "edge-1",
		Owner: gateway.Owner{Address: "SIGNER"},
		Tags: protocol.TagSet{
			{Name: protocol.TagScriptTransaction, Value: "script-a"},
		},
	}
	source := &fakeSource{pages: []gateway.Page{
		{Edges: []gateway.Edge{{Node: node}}},
	}}
	sub := &collectingSubmitter{}

	require.NoError(t, newTestPoller(source, sub, state, 0).cycle(context.Background()))

	assert.Empty(t, sub.jobs)
	assert.True(t, state.Processed().IsProcessed("edge-1"))
}

func TestPollerOwnerFallback(t *testing.T) {
	state := NewState([]Registration{{ID: "reg-1", ScriptID: "script-a"}})
	node := gateway.Transaction{
		ID:    "edge-1",
		Owner: gateway.Owner{Address: "SIGNER"},
		Tags: protocol.TagSet{
			{Name: protocol.TagScriptTransaction, Value: "script-a"},
			{Name: protocol.TagInferenceTransaction, Value: "req-1"},
		},
	}
	source := &fakeSource{pages: []gateway.Page{
		{Edges: []gateway.Edge{{Node: node}}},
	}}
	sub := &collectingSubmitter{}

	require.NoError(t, newTestPoller(source, sub, state, 0).cycle(context.Background()))

	require.Len(t, sub.jobs, 1)
	assert.Equal(t, "req-1", sub.jobs[0].RequestID)
	assert.Equal(t, "SIGNER", sub.jobs[0].UserAddress, "falls back to the signing owner")
}

func TestPollerNoRegistrationsIsNoop(t *testing.T) {
	state := NewState(nil)
	source := &fakeSource{}
	sub := &collectingSubmitter{}

	require.NoError(t, newTestPoller(source, sub, state, 0).cycle(context.Background()))
	assert.Zero(t, source.calls)
	assert.Empty(t, sub.jobs)
}
