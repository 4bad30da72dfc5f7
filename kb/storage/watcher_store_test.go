package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	doxatest "github.com/teranos/doxa/internal/testing"
	"github.com/teranos/doxa/kb/truth"
)

func TestWatcherCreateGet(t *testing.T) {
	ws := NewWatcherStore(doxatest.CreateTestDB(t))
	ctx := context.Background()

	wanted := truth.StateTrue
	w := &Watcher{
		Name:          "socrates-teaches",
		Pattern:       Pattern{Subject: "SOCRATES", Type: "TEACHES", State: &wanted},
		Action:        ActionLog,
		RatePerMinute: 10,
		Enabled:       true,
	}
	require.NoError(t, ws.Create(ctx, w))
	require.NotEmpty(t, w.ID, "create assigns an id")

	got, err := ws.Get(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, "socrates-teaches", got.Name)
	assert.Equal(t, "SOCRATES", got.Pattern.Subject)
	require.NotNil(t, got.Pattern.State)
	assert.Equal(t, truth.StateTrue, *got.Pattern.State)
	assert.Equal(t, ActionLog, got.Action)
	assert.Equal(t, 10, got.RatePerMinute)
	assert.True(t, got.Enabled)
	assert.Nil(t, got.LastFiredAt)
	assert.Zero(t, got.FireCount)
}

func TestWatcherCreateValidation(t *testing.T) {
	ws := NewWatcherStore(doxatest.CreateTestDB(t))
	ctx := context.Background()

	err := ws.Create(ctx, &Watcher{Action: ActionLog})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "needs a name")

	err = ws.Create(ctx, &Watcher{Name: "w", Action: "teleport"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown watcher action "teleport"`)

	err = ws.Create(ctx, &Watcher{Name: "w", Action: ActionWebhook})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "needs a target URL")

	err = ws.Create(ctx, &Watcher{Name: "w", Action: ActionLog, RatePerMinute: -1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate_per_minute")
}

func TestWatcherListEnabledOnly(t *testing.T) {
	ws := NewWatcherStore(doxatest.CreateTestDB(t))
	ctx := context.Background()

	require.NoError(t, ws.Create(ctx, &Watcher{Name: "on", Action: ActionLog, Enabled: true}))
	require.NoError(t, ws.Create(ctx, &Watcher{Name: "off", Action: ActionLog, Enabled: false}))

	all, err := ws.List(ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	enabled, err := ws.List(ctx, true)
	require.NoError(t, err)
	require.Len(t, enabled, 1)
	assert.Equal(t, "on", enabled[0].Name)
}

func TestWatcherUpdate(t *testing.T) {
	ws := NewWatcherStore(doxatest.CreateTestDB(t))
	ctx := context.Background()

	w := &Watcher{Name: "w", Action: ActionLog, Enabled: true}
	require.NoError(t, ws.Create(ctx, w))

	w.Action = ActionWebhook
	w.Target = "https://example.com/hook"
	w.Enabled = false
	require.NoError(t, ws.Update(ctx, w))

	got, err := ws.Get(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, ActionWebhook, got.Action)
	assert.Equal(t, "https://example.com/hook", got.Target)
	assert.False(t, got.Enabled)

	err = ws.Update(ctx, &Watcher{ID: "missing", Name: "x", Action: ActionLog})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestWatcherDelete(t *testing.T) {
	ws := NewWatcherStore(doxatest.CreateTestDB(t))
	ctx := context.Background()

	w := &Watcher{Name: "w", Action: ActionLog}
	require.NoError(t, ws.Create(ctx, w))
	require.NoError(t, ws.Delete(ctx, w.ID))

	_, err := ws.Get(ctx, w.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestWatcherRecordFireAndError(t *testing.T) {
	ws := NewWatcherStore(doxatest.CreateTestDB(t))
	ctx := context.Background()

	w := &Watcher{Name: "w", Action: ActionLog, Enabled: true}
	require.NoError(t, ws.Create(ctx, w))

	require.NoError(t, ws.RecordFire(ctx, w.ID))
	require.NoError(t, ws.RecordFire(ctx, w.ID))
	require.NoError(t, ws.RecordError(ctx, w.ID, "connection refused"))

	got, err := ws.Get(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.FireCount)
	assert.Equal(t, int64(1), got.ErrorCount)
	assert.Equal(t, "connection refused", got.LastError)
	require.NotNil(t, got.LastFiredAt)
}
