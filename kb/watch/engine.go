// Package watch runs standing watchers over knowledge base mutations.
// A watcher pairs a relation pattern with an action; when a committed
// truth change matches, the action fires through a per-watcher rate
// limiter. Failed webhook deliveries go through a retry queue with
// exponential backoff.
package watch

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"path"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/teranos/doxa/errors"
	"github.com/teranos/doxa/internal/httpclient"
	"github.com/teranos/doxa/kb/inference"
	"github.com/teranos/doxa/kb/ontology"
	"github.com/teranos/doxa/kb/storage"
	"github.com/teranos/doxa/logger"
)

// Inferrer runs one inference pass. *kb.Session satisfies this.
type Inferrer interface {
	Infer() (inference.Report, error)
}

// Engine holds the loaded watchers and dispatches matching changes.
// It is wired to a session as a sink; OnEvent runs on the mutating
// goroutine and must stay cheap, so actions execute asynchronously.
type Engine struct {
	store    *storage.WatcherStore
	inferrer Inferrer
	log      *zap.SugaredLogger

	mu       sync.RWMutex
	watchers map[string]*storage.Watcher
	limiters map[string]*rate.Limiter

	retryMu    sync.Mutex
	retryQueue []*pendingDelivery

	client *http.Client

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Change is the payload a firing watcher sees: the relation endpoints,
// the value that was committed, and when the window applies.
type Change struct {
	Subject  string `json:"subject"`
	Type     string `json:"type"`
	Object   string `json:"object"`
	Value    string `json:"value"`
	Interval string `json:"interval,omitempty"`
	Kind     string `json:"kind"`
}

type pendingDelivery struct {
	watcherID   string
	change      Change
	attempt     int
	nextRetryAt time.Time
}

const (
	maxRetries          = 5
	initialBackoff      = 1 * time.Second
	maxBackoff          = 60 * time.Second
	retryTickerInterval = 1 * time.Second
	deliveryTimeout     = 10 * time.Second
)

// NewEngine builds an engine over the watcher table in db. The inferrer
// backs the infer action and may be nil, in which case infer watchers
// log and do nothing else.
func NewEngine(db *sql.DB, inferrer Inferrer, log *zap.SugaredLogger) *Engine {
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		store:    storage.NewWatcherStore(db),
		inferrer: inferrer,
		log:      log,
		watchers: make(map[string]*storage.Watcher),
		limiters: make(map[string]*rate.Limiter),
		client:   httpclient.New(deliveryTimeout, httpclient.Options{}),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start loads enabled watchers and begins processing retries.
func (e *Engine) Start() error {
	if err := e.Reload(); err != nil {
		return errors.Wrap(err, "loading watchers")
	}

	e.wg.Add(1)
	go e.retryLoop()

	e.log.Infow("Watch engine started", logger.FieldCount, len(e.watchers))
	return nil
}

// Stop cancels in-flight work and waits for the retry loop to exit.
func (e *Engine) Stop() {
	e.cancel()
	e.wg.Wait()
	e.log.Info("Watch engine stopped")
}

// Reload re-reads the enabled watcher list. Call after CRUD through
// Store so the running engine picks changes up.
func (e *Engine) Reload() error {
	watchers, err := e.store.List(e.ctx, true)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.watchers = make(map[string]*storage.Watcher, len(watchers))
	for _, w := range watchers {
		e.watchers[w.ID] = w
		// Zero burst makes a zero-rate watcher match without ever firing.
		burst := 1
		if w.RatePerMinute == 0 {
			burst = 0
		}
		e.limiters[w.ID] = rate.NewLimiter(rate.Limit(float64(w.RatePerMinute)/60.0), burst)
	}
	return nil
}

// Store exposes the watcher table for CRUD.
func (e *Engine) Store() *storage.WatcherStore {
	return e.store
}

// OnEvent receives one arena mutation. Only events that commit a truth
// value are considered; structural events (entity churn, removals) pass
// through unmatched.
func (e *Engine) OnEvent(ev ontology.Event) {
	switch ev.Kind {
	case ontology.EventTruthAsserted, ontology.EventDefaultChanged:
	default:
		return
	}

	change := changeFromEvent(ev)

	e.mu.RLock()
	defer e.mu.RUnlock()

	for _, w := range e.watchers {
		if !w.Enabled || !Matches(w.Pattern, ev) {
			continue
		}

		limiter := e.limiters[w.ID]
		if limiter != nil && !limiter.Allow() {
			e.log.Debugw("Watcher rate limited",
				logger.FieldWatcher, w.ID,
				logger.FieldRelation, ev.Relation.String())
			continue
		}

		go e.execute(w, change, 1)
	}
}

// OnInference satisfies the session sink interface; inference reports
// do not trigger watchers themselves (the derived assertions already
// arrive as truth events).
func (e *Engine) OnInference(inference.Report) {}

// Matches reports whether a committed change satisfies the pattern.
// Subject, type, and object accept * and ? globs; comparison is against
// the arena's normalized upper-case names. A set State requires the
// committed value's truth state.
func Matches(p storage.Pattern, ev ontology.Event) bool {
	if !matchGlob(p.Subject, string(ev.Relation.Subject)) {
		return false
	}
	if !matchGlob(p.Type, string(ev.Relation.Type)) {
		return false
	}
	if !matchGlob(p.Object, string(ev.Relation.Object)) {
		return false
	}
	if p.State != nil && ev.Value.State != *p.State {
		return false
	}
	return true
}

func matchGlob(pattern, name string) bool {
	if pattern == "" {
		return true
	}
	ok, err := path.Match(strings.ToUpper(pattern), name)
	return err == nil && ok
}

func changeFromEvent(ev ontology.Event) Change {
	c := Change{
		Subject: string(ev.Relation.Subject),
		Type:    string(ev.Relation.Type),
		Object:  string(ev.Relation.Object),
		Value:   ev.Value.String(),
		Kind:    ev.Kind.String(),
	}
	if !ev.Interval.UnboundedStart() || !ev.Interval.UnboundedEnd() {
		c.Interval = ev.Interval.String()
	}
	return c
}

func (e *Engine) execute(w *storage.Watcher, change Change, attempt int) {
	var err error
	switch w.Action {
	case storage.ActionLog:
		e.log.Infow("Watcher matched",
			logger.FieldWatcher, w.Name,
			logger.FieldSubject, change.Subject,
			logger.FieldType, change.Type,
			logger.FieldObject, change.Object,
			logger.FieldTruth, change.Value)
	case storage.ActionInfer:
		err = e.runInference(w)
	case storage.ActionWebhook:
		err = e.deliver(w, change)
	default:
		err = errors.Newf("unknown watcher action %q", w.Action)
	}

	if err != nil {
		e.log.Errorw("Watcher action failed",
			logger.FieldWatcher, w.ID,
			logger.FieldError, err)
		if recErr := e.store.RecordError(e.ctx, w.ID, err.Error()); recErr != nil {
			e.log.Warnw("Watcher bookkeeping failed", logger.FieldError, recErr)
		}
		if w.Action == storage.ActionWebhook {
			e.queueRetry(w.ID, change, attempt+1)
		}
		return
	}

	if recErr := e.store.RecordFire(e.ctx, w.ID); recErr != nil {
		e.log.Warnw("Watcher bookkeeping failed", logger.FieldError, recErr)
	}
}

func (e *Engine) runInference(w *storage.Watcher) error {
	if e.inferrer == nil {
		e.log.Warnw("Infer watcher fired without an inferrer attached",
			logger.FieldWatcher, w.ID)
		return nil
	}
	report, err := e.inferrer.Infer()
	if err != nil {
		return errors.Wrap(err, "watcher-triggered inference")
	}
	e.log.Infow("Watcher-triggered inference",
		logger.FieldWatcher, w.Name,
		logger.FieldRounds, report.Rounds,
		logger.FieldDerived, len(report.Derived))
	return nil
}

// deliver POSTs the change to the watcher's target URL.
func (e *Engine) deliver(w *storage.Watcher, change Change) error {
	body, err := json.Marshal(map[string]any{
		"watcher_id": w.ID,
		"watcher":    w.Name,
		"change":     change,
		"fired_at":   time.Now().UTC(),
	})
	if err != nil {
		return errors.Wrap(err, "marshaling webhook body")
	}

	req, err := http.NewRequestWithContext(e.ctx, http.MethodPost, w.Target, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "building webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "webhook request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return errors.Newf("webhook returned status %d: %s", resp.StatusCode, string(msg))
	}
	return nil
}

func (e *Engine) queueRetry(watcherID string, change Change, attempt int) {
	if attempt > maxRetries {
		e.log.Warnw("Max retries exceeded, dropping delivery",
			logger.FieldWatcher, watcherID,
			"attempts", attempt)
		return
	}

	e.retryMu.Lock()
	defer e.retryMu.Unlock()

	e.retryQueue = append(e.retryQueue, &pendingDelivery{
		watcherID:   watcherID,
		change:      change,
		attempt:     attempt,
		nextRetryAt: time.Now().Add(backoffFor(attempt)),
	})
}

// backoffFor doubles per attempt, 1s, 2s, 4s, ... capped at maxBackoff.
func backoffFor(attempt int) time.Duration {
	if attempt < 2 {
		return initialBackoff
	}
	backoff := initialBackoff << (attempt - 2)
	if backoff > maxBackoff || backoff <= 0 {
		return maxBackoff
	}
	return backoff
}

func (e *Engine) retryLoop() {
	defer e.wg.Done()

	ticker := time.NewTicker(retryTickerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.ctx.Done():
			return
		case <-ticker.C:
			e.processRetryQueue()
		}
	}
}

func (e *Engine) processRetryQueue() {
	now := time.Now()

	e.retryMu.Lock()
	var due, remaining []*pendingDelivery
	for _, pd := range e.retryQueue {
		if !pd.nextRetryAt.After(now) {
			due = append(due, pd)
		} else {
			remaining = append(remaining, pd)
		}
	}
	e.retryQueue = remaining
	e.retryMu.Unlock()

	for _, pd := range due {
		e.mu.RLock()
		w, ok := e.watchers[pd.watcherID]
		e.mu.RUnlock()

		if !ok || !w.Enabled {
			continue
		}
		go e.execute(w, pd.change, pd.attempt)
	}
}
