package workflow

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"labtriage/internal/analysis"
	"labtriage/internal/notifications"
	"labtriage/internal/queue"
	"labtriage/internal/services"
	"labtriage/internal/testsupport"
)

func TestRunProcessesEveryItemInArrivalOrder(t *testing.T) {
	reasoner := scriptedReasoner(criticalAnalysis, nil)
	env := newTestEnv(t, reasoner)
	testsupport.NewItem(t, env.store, "a", queue.StatusPending, anemia())
	testsupport.NewItem(t, env.store, "b", queue.StatusInProgress, anemia())

	summary, err := env.engine.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Processed)
	assert.Zero(t, summary.Failed)
	assert.Zero(t, summary.Remaining)
	require.Len(t, summary.Outcomes, 2)
	assert.Equal(t, "a", summary.Outcomes[0].ItemID)
	assert.Equal(t, "b", summary.Outcomes[1].ItemID)
	assert.NotEmpty(t, summary.PassID)
	assert.Contains(t, summary.Messages, "fetched 2 work items")
	assert.Equal(t, 4, reasoner.Calls())

	for _, id := range []string{"a", "b"} {
		item := testsupport.MustGet(t, env.store, id)
		assert.Equal(t, queue.StatusProcessed, item.Status, id)
		assert.Equal(t, "Processed (Critical)", item.FinalStatus, id)
		assert.Equal(t, "Severe anemia", item.Summary, id)
		assert.False(t, item.Claimed(), id)
		require.NotEmpty(t, item.NotePath, id)
		_, statErr := os.Stat(item.NotePath)
		assert.NoError(t, statErr, id)
	}

	remaining, err := env.store.ListActionable(context.Background())
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

func TestRunCriticalResultCitesPolicyAndAlerts(t *testing.T) {
	env := newTestEnv(t, scriptedReasoner(criticalAnalysis, nil))
	testsupport.NewItem(t, env.store, "blood-test-1", queue.StatusPending, anemia())

	_, err := env.engine.Run(context.Background())
	require.NoError(t, err)

	item := testsupport.MustGet(t, env.store, "blood-test-1")
	result, err := analysis.FromJSON(item.AnalysisJSON)
	require.NoError(t, err)
	assert.Equal(t, analysis.RiskCritical, result.RiskLevel)
	assert.Contains(t, testsupport.DefaultPolicy, result.Citation)
	assert.True(t, result.CitationVerified)
	assert.Equal(t, "Level 5", item.PolicyTier)

	assert.Equal(t, []notifications.Event{notifications.EventCriticalResult, notifications.EventPassCompleted}, env.notifier.Events())
}

func TestRunRoutineResultDoesNotAlert(t *testing.T) {
	env := newTestEnv(t, scriptedReasoner(routineAnalysis, nil))
	testsupport.NewItem(t, env.store, "usg-pelvis-01", queue.StatusPending, nil)

	_, err := env.engine.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "Processed (Routine)", testsupport.MustGet(t, env.store, "usg-pelvis-01").FinalStatus)
	assert.Equal(t, []notifications.Event{notifications.EventPassCompleted}, env.notifier.Events())
}

func TestRunMalformedAnalysisFailsItemWithoutDrafting(t *testing.T) {
	reasoner := scriptedReasoner("the patient looks fine to me", nil)
	env := newTestEnv(t, reasoner)
	testsupport.NewItem(t, env.store, "a", queue.StatusPending, anemia())

	summary, err := env.engine.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 1, reasoner.Calls())

	item := testsupport.MustGet(t, env.store, "a")
	assert.Equal(t, queue.StatusFailed, item.Status)
	assert.Equal(t, StatusUnknown, item.FinalStatus)
	assert.Equal(t, analysis.FailureSummary, item.Summary)
	assert.Equal(t, string(analysis.RiskUnknown), item.RiskLevel)
	assert.Empty(t, item.NotePath)
	assert.False(t, item.Claimed())
}

func TestRunNoteFailureStillDequeuesOnce(t *testing.T) {
	reasoner := scriptedReasoner(criticalAnalysis, errServiceDown)
	env := newTestEnv(t, reasoner)
	testsupport.NewItem(t, env.store, "a", queue.StatusPending, anemia())
	testsupport.NewItem(t, env.store, "b", queue.StatusPending, anemia())

	summary, err := env.engine.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Processed)
	assert.Zero(t, summary.Remaining)
	assert.Equal(t, 4, reasoner.Calls())
	for _, id := range []string{"a", "b"} {
		item := testsupport.MustGet(t, env.store, id)
		assert.Equal(t, queue.StatusProcessed, item.Status)
		assert.Equal(t, StatusNoteFailed, item.FinalStatus)
		assert.Contains(t, item.ErrorMessage, "503")
		assert.Equal(t, "Severe anemia", item.Summary)
	}
}

func TestRunTerminatesWhenReasonerAlwaysFails(t *testing.T) {
	reasoner := &testsupport.Reasoner{Respond: func(context.Context, int, string) (string, error) {
		return "", errServiceDown
	}}
	env := newTestEnv(t, reasoner)
	for _, id := range []string{"a", "b", "c"} {
		testsupport.NewItem(t, env.store, id, queue.StatusPending, anemia())
	}

	done := make(chan Summary, 1)
	go func() {
		summary, err := env.engine.Run(context.Background())
		assert.NoError(t, err)
		done <- summary
	}()

	select {
	case summary := <-done:
		assert.Equal(t, 3, summary.Failed)
		assert.Zero(t, summary.Remaining)
	case <-time.After(10 * time.Second):
		t.Fatal("pass did not terminate")
	}

	failed, err := env.store.List(context.Background(), queue.StatusFailed)
	require.NoError(t, err)
	assert.Len(t, failed, 3)
}

func TestRunPolicyUnavailableFailsEveryItemAndContinues(t *testing.T) {
	reasoner := scriptedReasoner(criticalAnalysis, nil)
	env := newTestEnv(t, reasoner)
	require.NoError(t, os.Remove(env.cfg.Paths.PolicyFile))
	testsupport.NewItem(t, env.store, "a", queue.StatusPending, anemia())
	testsupport.NewItem(t, env.store, "b", queue.StatusPending, anemia())

	summary, err := env.engine.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Failed)
	assert.Zero(t, reasoner.Calls())
	assert.Equal(t, queue.StatusFailed, testsupport.MustGet(t, env.store, "b").Status)
}

func TestRunSkipsItemsClaimedByAnotherPass(t *testing.T) {
	reasoner := scriptedReasoner(criticalAnalysis, nil)
	env := newTestEnv(t, reasoner)
	ctx := context.Background()
	testsupport.NewItem(t, env.store, "a", queue.StatusPending, anemia())
	testsupport.NewItem(t, env.store, "b", queue.StatusPending, anemia())
	ok, err := env.store.Claim(ctx, "b", "other-pass", time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.True(t, ok)

	summary, err := env.engine.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Processed)
	assert.Equal(t, 1, summary.Skipped)
	assert.Zero(t, summary.Remaining)
	assert.Equal(t, 2, reasoner.Calls())
	assert.Equal(t, StatusSkipped, summary.Outcomes[1].FinalStatus)

	b := testsupport.MustGet(t, env.store, "b")
	assert.Equal(t, queue.StatusPending, b.Status)
	assert.Equal(t, "other-pass", b.ClaimToken)
}

// takeOver hands item id to another pass as if this pass's heartbeat had expired.
func takeOver(t *testing.T, store *queue.Store, id string) {
	t.Helper()
	ctx := context.Background()
	future := time.Now().Add(time.Hour)
	_, err := store.ReclaimStale(ctx, future)
	require.NoError(t, err)
	ok, err := store.Claim(ctx, id, "other-pass", future)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestRunClaimLostDuringAnalysisSkipsItem(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	reasoner := &testsupport.Reasoner{Respond: func(_ context.Context, _ int, prompt string) (string, error) {
		if isNotePrompt(prompt) {
			return noteBody, nil
		}
		takeOver(t, store, "a")
		return criticalAnalysis, nil
	}}
	notifier := &recordingNotifier{}
	engine := NewEngine(cfg, store, reasoner, nil, WithNotifier(notifier))
	testsupport.NewItem(t, store, "a", queue.StatusPending, anemia())

	summary, err := engine.Run(context.Background())
	require.NoError(t, err)

	assert.Zero(t, summary.Processed)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, StatusClaimLost, summary.Outcomes[0].FinalStatus)
	assert.Equal(t, 1, reasoner.Calls())
	assert.NotContains(t, notifier.Events(), notifications.EventCriticalResult)

	item := testsupport.MustGet(t, store, "a")
	assert.Equal(t, queue.StatusPending, item.Status)
	assert.Equal(t, "other-pass", item.ClaimToken)
	assert.Empty(t, item.AnalysisJSON)
}

func TestRunClaimLostBeforeCompletionIsNotCountedProcessed(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	reasoner := &testsupport.Reasoner{Respond: func(_ context.Context, _ int, prompt string) (string, error) {
		if isNotePrompt(prompt) {
			takeOver(t, store, "a")
			return noteBody, nil
		}
		return criticalAnalysis, nil
	}}
	notifier := &recordingNotifier{}
	engine := NewEngine(cfg, store, reasoner, nil, WithNotifier(notifier))
	testsupport.NewItem(t, store, "a", queue.StatusPending, anemia())

	summary, err := engine.Run(context.Background())
	require.NoError(t, err)

	assert.Zero(t, summary.Processed)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, StatusClaimLost, summary.Outcomes[0].FinalStatus)
	assert.NotContains(t, notifier.Events(), notifications.EventCriticalResult)

	item := testsupport.MustGet(t, store, "a")
	assert.Equal(t, queue.StatusInProgress, item.Status)
	assert.Equal(t, "other-pass", item.ClaimToken)
}

func TestRunDefersItemsArrivingMidPass(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	inserted := false
	reasoner := &testsupport.Reasoner{Respond: func(_ context.Context, _ int, prompt string) (string, error) {
		if !inserted {
			inserted = true
			testsupport.NewItem(t, store, "late", queue.StatusPending, anemia())
		}
		if isNotePrompt(prompt) {
			return noteBody, nil
		}
		return criticalAnalysis, nil
	}}
	engine := NewEngine(cfg, store, reasoner, nil, WithNotifier(&recordingNotifier{}))
	testsupport.NewItem(t, store, "a", queue.StatusPending, anemia())

	summary, err := engine.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Total())
	assert.Equal(t, queue.StatusPending, testsupport.MustGet(t, store, "late").Status)

	summary, err = engine.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Total())
	assert.Equal(t, "late", summary.Outcomes[0].ItemID)
}

func TestRunReturnsErrPassInProgress(t *testing.T) {
	env := newTestEnv(t, scriptedReasoner(criticalAnalysis, nil))
	testsupport.NewItem(t, env.store, "a", queue.StatusPending, anemia())

	other := NewPassLock(env.cfg.PassLockPath())
	require.NoError(t, other.Acquire())

	_, err := env.engine.Run(context.Background())
	assert.ErrorIs(t, err, ErrPassInProgress)
	assert.Equal(t, queue.StatusPending, testsupport.MustGet(t, env.store, "a").Status)

	require.NoError(t, other.Release())
	summary, err := env.engine.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Processed)
}

func TestRunItemsUsesOnlyRequestedItems(t *testing.T) {
	reasoner := scriptedReasoner(criticalAnalysis, nil)
	env := newTestEnv(t, reasoner)
	ctx := context.Background()
	testsupport.NewItem(t, env.store, "a", queue.StatusPending, anemia())
	testsupport.NewItem(t, env.store, "b", queue.StatusPending, anemia())

	summary, err := env.engine.RunItems(ctx, "b")
	require.NoError(t, err)
	require.Len(t, summary.Outcomes, 1)
	assert.Equal(t, "b", summary.Outcomes[0].ItemID)
	assert.Equal(t, queue.StatusPending, testsupport.MustGet(t, env.store, "a").Status)

	_, err = env.engine.RunItems(ctx, "missing")
	assert.ErrorIs(t, err, services.ErrNotFound)

	_, err = env.engine.RunItems(ctx, "b")
	assert.ErrorIs(t, err, services.ErrValidation)
}

func TestRunItemsAnalyzesRepeatedIDsOnce(t *testing.T) {
	reasoner := scriptedReasoner(routineAnalysis, nil)
	env := newTestEnv(t, reasoner)
	testsupport.NewItem(t, env.store, "a", queue.StatusPending, anemia())
	testsupport.NewItem(t, env.store, "b", queue.StatusPending, anemia())

	summary, err := env.engine.RunItems(context.Background(), "b", "a", "b", " a ")
	require.NoError(t, err)

	require.Len(t, summary.Outcomes, 2)
	assert.Equal(t, "b", summary.Outcomes[0].ItemID)
	assert.Equal(t, "a", summary.Outcomes[1].ItemID)
	assert.Equal(t, 2, summary.Processed)
	assert.Equal(t, 4, reasoner.Calls())
	assert.NotContains(t, env.notifier.Events(), notifications.EventError)
}

func TestRunCancelledMidItemReleasesClaim(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reasoner := &testsupport.Reasoner{Respond: func(callCtx context.Context, _ int, _ string) (string, error) {
		cancel()
		<-callCtx.Done()
		return "", callCtx.Err()
	}}
	env := newTestEnv(t, reasoner)
	testsupport.NewItem(t, env.store, "a", queue.StatusPending, anemia())

	_, err := env.engine.Run(ctx)
	assert.True(t, errors.Is(err, context.Canceled), "got %v", err)

	item := testsupport.MustGet(t, env.store, "a")
	assert.Equal(t, queue.StatusPending, item.Status)
	assert.False(t, item.Claimed())
	assert.Empty(t, item.AnalysisJSON)
}

func TestRunPassStopsWhenAnItemRepeats(t *testing.T) {
	reasoner := scriptedReasoner(criticalAnalysis, nil)
	env := newTestEnv(t, reasoner)
	item := testsupport.NewItem(t, env.store, "a", queue.StatusPending, anemia())

	duplicate := func(context.Context) ([]*queue.Item, error) {
		copyItem := *item
		return []*queue.Item{item, &copyItem}, nil
	}
	summary, err := env.engine.runPass(context.Background(), "pass-dup", duplicate)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvariant)
	assert.Equal(t, 1, summary.Processed)
	assert.Equal(t, 1, summary.Remaining)
	assert.Equal(t, 2, reasoner.Calls())
}

func TestWatchRunsUntilCancelled(t *testing.T) {
	env := newTestEnv(t, scriptedReasoner(criticalAnalysis, nil))
	testsupport.NewItem(t, env.store, "a", queue.StatusPending, anemia())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var passes []Summary
	err := env.engine.Watch(ctx, 10*time.Millisecond, func(summary Summary) {
		passes = append(passes, summary)
		cancel()
	})

	require.NoError(t, err)
	require.Len(t, passes, 1)
	assert.Equal(t, 1, passes[0].Processed)
}
