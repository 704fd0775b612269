package workflow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"labtriage/internal/analysis"
	"labtriage/internal/queue"
	"labtriage/internal/testsupport"
)

func TestShouldContinue(t *testing.T) {
	assert.Equal(t, PhaseEnd, shouldContinue(State{}))
	assert.Equal(t, PhaseAnalyzing, shouldContinue(State{Queue: []*queue.Item{{ID: "a"}}}))
}

func TestApplyAppendsMessagesAndReplacesTheRest(t *testing.T) {
	a := &queue.Item{ID: "a"}
	b := &queue.Item{ID: "b"}
	result := analysis.Sentinel("timeout", "slow")

	state := State{Phase: PhaseFetching}.Apply(Update{
		Phase:        PhaseDeciding,
		Queue:        []*queue.Item{a, b},
		ReplaceQueue: true,
		Fetched:      true,
		Messages:     []string{"fetched 2 work items"},
	})
	state = state.Apply(Update{Phase: PhaseDrafting, Current: a, Result: &result, ReplaceCurrent: true})
	require.Same(t, a, state.Current)
	require.NotNil(t, state.Result)

	state = state.Apply(dequeue(state.Queue[1:], StatusUnknown, "a: "+StatusUnknown))

	assert.Equal(t, PhaseDeciding, state.Phase)
	assert.Equal(t, []*queue.Item{b}, state.Queue)
	assert.Nil(t, state.Current)
	assert.Nil(t, state.Result)
	assert.True(t, state.Fetched)
	assert.Equal(t, StatusUnknown, state.FinalStatus)
	assert.Equal(t, []string{"fetched 2 work items", "a: " + StatusUnknown}, state.Messages)

	unchanged := state.Apply(Update{})
	assert.Equal(t, state, unchanged)
}

func TestApplyDoesNotAliasQueue(t *testing.T) {
	items := []*queue.Item{{ID: "a"}, {ID: "b"}}
	state := State{}.Apply(Update{Queue: items, ReplaceQueue: true})
	items[0] = &queue.Item{ID: "z"}
	assert.Equal(t, "a", state.Queue[0].ID)
}

func TestFetchIsIdempotentWithinAPass(t *testing.T) {
	env := newTestEnv(t, scriptedReasoner(criticalAnalysis, nil))
	ctx := context.Background()
	testsupport.NewItem(t, env.store, "a", queue.StatusPending, anemia())
	fetch := func(ctx context.Context) ([]*queue.Item, error) { return env.store.ListActionable(ctx) }

	update, err := env.engine.fetch(ctx, State{Phase: PhaseFetching}, fetch)
	require.NoError(t, err)
	state := State{Phase: PhaseFetching}.Apply(update)
	require.Len(t, state.Queue, 1)
	first := state.Queue[0]

	testsupport.NewItem(t, env.store, "b", queue.StatusPending, anemia())
	update, err = env.engine.fetch(ctx, state, fetch)
	require.NoError(t, err)
	again := state.Apply(update)

	require.Len(t, again.Queue, 1)
	assert.Same(t, first, again.Queue[0])
	assert.Equal(t, state.Messages, again.Messages)
}
