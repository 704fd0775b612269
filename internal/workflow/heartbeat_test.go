package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"labtriage/internal/logging"
	"labtriage/internal/queue"
	"labtriage/internal/testsupport"
)

func TestHeartbeatKeepRefreshesClaim(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	testsupport.NewItem(t, store, "a", queue.StatusPending, nil)

	ok, err := store.Claim(ctx, "a", "pass-1", time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.True(t, ok)
	claimedAt := *testsupport.MustGet(t, store, "a").LastHeartbeat

	monitor := NewHeartbeatMonitor(store, logging.NewNop(), 5*time.Millisecond, time.Minute)
	stop := monitor.Keep(ctx, "a", "pass-1")
	require.Eventually(t, func() bool {
		hb := testsupport.MustGet(t, store, "a").LastHeartbeat
		return hb != nil && hb.After(claimedAt)
	}, 2*time.Second, 5*time.Millisecond)
	stop()
}

func TestReclaimStaleItemsReleasesExpiredClaims(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	testsupport.NewItem(t, store, "a", queue.StatusPending, nil)
	ok, err := store.Claim(ctx, "a", "crashed-pass", time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.True(t, ok)

	monitor := NewHeartbeatMonitor(store, logging.NewNop(), time.Second, time.Minute)
	monitor.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	require.NoError(t, monitor.ReclaimStaleItems(ctx))

	assert.False(t, testsupport.MustGet(t, store, "a").Claimed())
}

func TestStaleBeforeDisabledWithoutTimeout(t *testing.T) {
	monitor := NewHeartbeatMonitor(nil, logging.NewNop(), time.Second, 0)
	assert.True(t, monitor.StaleBefore().IsZero())
	assert.NoError(t, monitor.ReclaimStaleItems(context.Background()))
}
