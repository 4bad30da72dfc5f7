package watch

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/teranos/doxa/internal/httpclient"
	doxatest "github.com/teranos/doxa/internal/testing"
	"github.com/teranos/doxa/kb/inference"
	"github.com/teranos/doxa/kb/ontology"
	"github.com/teranos/doxa/kb/storage"
	"github.com/teranos/doxa/kb/temporal"
	"github.com/teranos/doxa/kb/truth"
)

func truthEvent(subj, typ, obj string, v truth.Value) ontology.Event {
	return ontology.Event{
		Kind: ontology.EventTruthAsserted,
		Relation: ontology.RelationKey{
			Subject: ontology.EntityID(subj),
			Type:    ontology.RelationType(typ),
			Object:  ontology.EntityID(obj),
		},
		Interval: temporal.Span(
			time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		),
		Value: v,
	}
}

func TestMatches(t *testing.T) {
	wantTrue := truth.StateTrue

	tests := []struct {
		name    string
		pattern storage.Pattern
		event   ontology.Event
		want    bool
	}{
		{
			name:    "empty pattern matches anything",
			pattern: storage.Pattern{},
			event:   truthEvent("JOHN", "LIKES", "MARY", truth.True),
			want:    true,
		},
		{
			name:    "exact fields",
			pattern: storage.Pattern{Subject: "JOHN", Type: "LIKES", Object: "MARY"},
			event:   truthEvent("JOHN", "LIKES", "MARY", truth.True),
			want:    true,
		},
		{
			name:    "subject mismatch",
			pattern: storage.Pattern{Subject: "ALICE"},
			event:   truthEvent("JOHN", "LIKES", "MARY", truth.True),
			want:    false,
		},
		{
			name:    "glob on type",
			pattern: storage.Pattern{Type: "LIKE*"},
			event:   truthEvent("JOHN", "LIKES", "MARY", truth.True),
			want:    true,
		},
		{
			name:    "single char glob",
			pattern: storage.Pattern{Subject: "JOH?"},
			event:   truthEvent("JOHN", "LIKES", "MARY", truth.True),
			want:    true,
		},
		{
			name:    "lower case pattern still matches normalized names",
			pattern: storage.Pattern{Subject: "john"},
			event:   truthEvent("JOHN", "LIKES", "MARY", truth.True),
			want:    true,
		},
		{
			name:    "state filter hit",
			pattern: storage.Pattern{State: &wantTrue},
			event:   truthEvent("JOHN", "LIKES", "MARY", truth.True),
			want:    true,
		},
		{
			name:    "state filter miss",
			pattern: storage.Pattern{State: &wantTrue},
			event:   truthEvent("JOHN", "LIKES", "MARY", truth.Superposed(0.5)),
			want:    false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Matches(tt.pattern, tt.event))
		})
	}
}

func TestBackoffDoublesAndCaps(t *testing.T) {
	assert.Equal(t, 1*time.Second, backoffFor(1))
	assert.Equal(t, 2*time.Second, backoffFor(2))
	assert.Equal(t, 4*time.Second, backoffFor(3))
	assert.Equal(t, 60*time.Second, backoffFor(10))
	assert.Equal(t, 60*time.Second, backoffFor(100), "large attempts stay capped")
}

func startEngine(t *testing.T, inferrer Inferrer, watchers ...*storage.Watcher) *Engine {
	t.Helper()

	e := NewEngine(doxatest.CreateTestDB(t), inferrer, zap.NewNop().Sugar())
	// Webhook targets in tests are loopback httptest servers, which the
	// default hardened client refuses.
	e.client = httpclient.New(deliveryTimeout, httpclient.Options{AllowPrivate: true})
	for _, w := range watchers {
		require.NoError(t, e.Store().Create(t.Context(), w))
	}
	require.NoError(t, e.Start())
	t.Cleanup(e.Stop)
	return e
}

func TestEngineLogActionRecordsFire(t *testing.T) {
	w := &storage.Watcher{
		Name:          "log-likes",
		Pattern:       storage.Pattern{Type: "LIKES"},
		Action:        storage.ActionLog,
		RatePerMinute: 60,
		Enabled:       true,
	}
	e := startEngine(t, nil, w)

	e.OnEvent(truthEvent("JOHN", "LIKES", "MARY", truth.True))

	require.Eventually(t, func() bool {
		got, err := e.Store().Get(t.Context(), w.ID)
		return err == nil && got.FireCount == 1
	}, 2*time.Second, 10*time.Millisecond)

	got, err := e.Store().Get(t.Context(), w.ID)
	require.NoError(t, err)
	assert.NotNil(t, got.LastFiredAt)
	assert.Zero(t, got.ErrorCount)
}

func TestEngineIgnoresNonTruthEvents(t *testing.T) {
	w := &storage.Watcher{
		Name:          "log-all",
		Action:        storage.ActionLog,
		RatePerMinute: 60,
		Enabled:       true,
	}
	e := startEngine(t, nil, w)

	e.OnEvent(ontology.Event{Kind: ontology.EventEntityCreated, Entity: "JOHN"})
	e.OnEvent(ontology.Event{
		Kind:     ontology.EventRelationRemoved,
		Relation: ontology.RelationKey{Subject: "JOHN", Type: "LIKES", Object: "MARY"},
	})

	time.Sleep(100 * time.Millisecond)
	got, err := e.Store().Get(t.Context(), w.ID)
	require.NoError(t, err)
	assert.Zero(t, got.FireCount)
}

func TestEngineZeroRateNeverFires(t *testing.T) {
	w := &storage.Watcher{
		Name:          "muted",
		Action:        storage.ActionLog,
		RatePerMinute: 0,
		Enabled:       true,
	}
	e := startEngine(t, nil, w)

	for i := 0; i < 5; i++ {
		e.OnEvent(truthEvent("JOHN", "LIKES", "MARY", truth.True))
	}

	time.Sleep(100 * time.Millisecond)
	got, err := e.Store().Get(t.Context(), w.ID)
	require.NoError(t, err)
	assert.Zero(t, got.FireCount)
}

func TestEngineWebhookDelivery(t *testing.T) {
	type payload struct {
		WatcherID string `json:"watcher_id"`
		Watcher   string `json:"watcher"`
		Change    Change `json:"change"`
	}

	received := make(chan payload, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		var p payload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&p))
		received <- p
	}))
	defer srv.Close()

	w := &storage.Watcher{
		Name:          "notify-likes",
		Pattern:       storage.Pattern{Type: "LIKES"},
		Action:        storage.ActionWebhook,
		Target:        srv.URL,
		RatePerMinute: 60,
		Enabled:       true,
	}
	e := startEngine(t, nil, w)

	e.OnEvent(truthEvent("JOHN", "LIKES", "MARY", truth.Superposed(0.7)))

	select {
	case p := <-received:
		assert.Equal(t, w.ID, p.WatcherID)
		assert.Equal(t, "notify-likes", p.Watcher)
		assert.Equal(t, "JOHN", p.Change.Subject)
		assert.Equal(t, "LIKES", p.Change.Type)
		assert.Equal(t, "MARY", p.Change.Object)
		assert.NotEmpty(t, p.Change.Interval)
	case <-time.After(2 * time.Second):
		t.Fatal("webhook never delivered")
	}

	require.Eventually(t, func() bool {
		got, err := e.Store().Get(t.Context(), w.ID)
		return err == nil && got.FireCount == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestEngineWebhookFailureQueuesRetry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		http.Error(rw, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	w := &storage.Watcher{
		Name:          "flaky",
		Action:        storage.ActionWebhook,
		Target:        srv.URL,
		RatePerMinute: 60,
		Enabled:       true,
	}
	e := startEngine(t, nil, w)

	e.OnEvent(truthEvent("JOHN", "LIKES", "MARY", truth.True))

	require.Eventually(t, func() bool {
		e.retryMu.Lock()
		defer e.retryMu.Unlock()
		return len(e.retryQueue) > 0
	}, 2*time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		got, err := e.Store().Get(t.Context(), w.ID)
		return err == nil && got.ErrorCount >= 1
	}, 2*time.Second, 10*time.Millisecond)

	got, err := e.Store().Get(t.Context(), w.ID)
	require.NoError(t, err)
	assert.Contains(t, got.LastError, "status 500")
}

type countingInferrer struct {
	calls atomic.Int64
}

func (c *countingInferrer) Infer() (inference.Report, error) {
	c.calls.Add(1)
	return inference.Report{Rounds: 1}, nil
}

func TestEngineInferAction(t *testing.T) {
	inf := &countingInferrer{}
	w := &storage.Watcher{
		Name:          "auto-infer",
		Pattern:       storage.Pattern{Type: "HAS_PARENT"},
		Action:        storage.ActionInfer,
		RatePerMinute: 60,
		Enabled:       true,
	}
	e := startEngine(t, inf, w)

	e.OnEvent(truthEvent("FIDO", "HAS_PARENT", "DOG", truth.True))

	require.Eventually(t, func() bool {
		return inf.calls.Load() == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestEngineReloadDropsDisabled(t *testing.T) {
	w := &storage.Watcher{
		Name:          "toggled",
		Action:        storage.ActionLog,
		RatePerMinute: 60,
		Enabled:       true,
	}
	e := startEngine(t, nil, w)

	w.Enabled = false
	require.NoError(t, e.Store().Update(t.Context(), w))
	require.NoError(t, e.Reload())

	e.OnEvent(truthEvent("JOHN", "LIKES", "MARY", truth.True))

	time.Sleep(100 * time.Millisecond)
	got, err := e.Store().Get(t.Context(), w.ID)
	require.NoError(t, err)
	assert.Zero(t, got.FireCount)
}
