package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/mr-tron/base58"

	"github.com/teranos/doxa/errors"
	"github.com/teranos/doxa/kb/truth"
)

// ActionType is what a watcher does when a committed change matches.
type ActionType string

const (
	// ActionLog writes the match to the engine's log.
	ActionLog ActionType = "log"
	// ActionWebhook POSTs the change to the watcher's target URL.
	ActionWebhook ActionType = "webhook"
	// ActionInfer schedules an inference run over the session.
	ActionInfer ActionType = "infer"
)

// Pattern selects committed changes. Empty fields match anything;
// Subject, Type, and Object accept * and ? globs. State, when set,
// requires the asserted value's truth state.
type Pattern struct {
	Subject string       `json:"subject,omitempty"`
	Type    string       `json:"type,omitempty"`
	Object  string       `json:"object,omitempty"`
	State   *truth.State `json:"state,omitempty"`
}

// Watcher is a standing pattern with an action and a rate cap.
type Watcher struct {
	ID      string     `json:"id"`
	Name    string     `json:"name"`
	Pattern Pattern    `json:"pattern"`
	Action  ActionType `json:"action"`

	// Target is the URL for ActionWebhook; unused otherwise.
	Target string `json:"target,omitempty"`

	// RatePerMinute caps action firing. Zero means the watcher matches
	// but never fires.
	RatePerMinute int  `json:"rate_per_minute"`
	Enabled       bool `json:"enabled"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	LastFiredAt *time.Time `json:"last_fired_at,omitempty"`
	FireCount   int64      `json:"fire_count"`
	ErrorCount  int64      `json:"error_count"`
	LastError   string     `json:"last_error,omitempty"`
}

// WatcherStore handles watcher CRUD and fire bookkeeping.
type WatcherStore struct {
	db *sql.DB
}

// NewWatcherStore wraps an open database.
func NewWatcherStore(db *sql.DB) *WatcherStore {
	return &WatcherStore{db: db}
}

// NewWatcherID returns a fresh base58 watcher id.
func NewWatcherID() string {
	u := uuid.New()
	return base58.Encode(u[:])
}

const watcherColumns = `id, name, pattern, action, target, rate_per_minute, enabled,
	created_at, updated_at, last_fired_at, fire_count, error_count, last_error`

// Create stores a new watcher. A missing ID is generated.
func (ws *WatcherStore) Create(ctx context.Context, w *Watcher) error {
	if w.Name == "" {
		return errors.NewStructural("watcher needs a name")
	}
	switch w.Action {
	case ActionLog, ActionWebhook, ActionInfer:
	default:
		return errors.NewStructural("unknown watcher action %q", w.Action)
	}
	if w.Action == ActionWebhook && w.Target == "" {
		return errors.NewStructural("webhook watcher %s needs a target URL", w.Name)
	}
	if w.RatePerMinute < 0 {
		return errors.NewStructural("rate_per_minute must be >= 0, got %d", w.RatePerMinute)
	}
	if w.ID == "" {
		w.ID = NewWatcherID()
	}

	now := time.Now().UTC()
	w.CreatedAt = now
	w.UpdatedAt = now

	patternJSON, err := json.Marshal(w.Pattern)
	if err != nil {
		return errors.Wrap(err, "failed to marshal pattern")
	}

	_, err = ws.db.ExecContext(ctx, `
		INSERT INTO watchers (`+watcherColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		w.ID, w.Name,
		string(patternJSON), string(w.Action), w.Target,
		w.RatePerMinute, w.Enabled,
		now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano),
		nil, 0, 0, nil,
	)
	if err != nil {
		return errors.Wrapf(err, "failed to create watcher %s", w.Name)
	}
	return nil
}

// Get retrieves a watcher by ID.
func (ws *WatcherStore) Get(ctx context.Context, id string) (*Watcher, error) {
	row := ws.db.QueryRowContext(ctx,
		`SELECT `+watcherColumns+` FROM watchers WHERE id = ?`, id)
	w, err := scanWatcher(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Newf("watcher %s not found", id)
	}
	return w, err
}

// List returns watchers in creation order, optionally enabled only.
func (ws *WatcherStore) List(ctx context.Context, enabledOnly bool) ([]*Watcher, error) {
	query := `SELECT ` + watcherColumns + ` FROM watchers`
	if enabledOnly {
		query += ` WHERE enabled = 1`
	}
	query += ` ORDER BY created_at, id`

	rows, err := ws.db.QueryContext(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list watchers")
	}
	defer rows.Close()

	var watchers []*Watcher
	for rows.Next() {
		w, err := scanWatcher(rows)
		if err != nil {
			return nil, err
		}
		watchers = append(watchers, w)
	}
	return watchers, rows.Err()
}

// Update rewrites a watcher's mutable fields.
func (ws *WatcherStore) Update(ctx context.Context, w *Watcher) error {
	if w.RatePerMinute < 0 {
		return errors.NewStructural("rate_per_minute must be >= 0, got %d", w.RatePerMinute)
	}
	w.UpdatedAt = time.Now().UTC()

	patternJSON, err := json.Marshal(w.Pattern)
	if err != nil {
		return errors.Wrap(err, "failed to marshal pattern")
	}

	res, err := ws.db.ExecContext(ctx, `
		UPDATE watchers SET
			name = ?, pattern = ?, action = ?, target = ?,
			rate_per_minute = ?, enabled = ?, updated_at = ?
		WHERE id = ?`,
		w.Name, string(patternJSON), string(w.Action), w.Target,
		w.RatePerMinute, w.Enabled, w.UpdatedAt.Format(time.RFC3339Nano),
		w.ID,
	)
	if err != nil {
		return errors.Wrapf(err, "failed to update watcher %s", w.ID)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.Newf("watcher %s not found", w.ID)
	}
	return nil
}

// Delete removes a watcher.
func (ws *WatcherStore) Delete(ctx context.Context, id string) error {
	if _, err := ws.db.ExecContext(ctx, `DELETE FROM watchers WHERE id = ?`, id); err != nil {
		return errors.Wrapf(err, "failed to delete watcher %s", id)
	}
	return nil
}

// RecordFire bumps the fire counter and stamps the fire time.
func (ws *WatcherStore) RecordFire(ctx context.Context, id string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := ws.db.ExecContext(ctx, `
		UPDATE watchers SET
			fire_count = fire_count + 1,
			last_fired_at = ?,
			updated_at = ?
		WHERE id = ?`, now, now, id)
	if err != nil {
		return errors.Wrapf(err, "failed to record fire for %s", id)
	}
	return nil
}

// RecordError bumps the error counter and keeps the latest message.
func (ws *WatcherStore) RecordError(ctx context.Context, id, msg string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := ws.db.ExecContext(ctx, `
		UPDATE watchers SET
			error_count = error_count + 1,
			last_error = ?,
			updated_at = ?
		WHERE id = ?`, msg, now, id)
	if err != nil {
		return errors.Wrapf(err, "failed to record error for %s", id)
	}
	return nil
}

func scanWatcher(row interface{ Scan(...any) error }) (*Watcher, error) {
	var w Watcher
	var patternJSON, action, createdAt, updatedAt string
	var lastFiredAt, lastError sql.NullString
	err := row.Scan(
		&w.ID, &w.Name,
		&patternJSON, &action, &w.Target,
		&w.RatePerMinute, &w.Enabled,
		&createdAt, &updatedAt,
		&lastFiredAt, &w.FireCount, &w.ErrorCount, &lastError,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, errors.Wrap(err, "failed to scan watcher")
	}

	if err := json.Unmarshal([]byte(patternJSON), &w.Pattern); err != nil {
		return nil, errors.Wrapf(err, "stored watcher %s pattern", w.ID)
	}
	w.Action = ActionType(action)
	if w.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, errors.Wrapf(err, "stored watcher %s created_at", w.ID)
	}
	if w.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, errors.Wrapf(err, "stored watcher %s updated_at", w.ID)
	}
	if lastFiredAt.Valid {
		t, err := time.Parse(time.RFC3339Nano, lastFiredAt.String)
		if err != nil {
			return nil, errors.Wrapf(err, "stored watcher %s last_fired_at", w.ID)
		}
		w.LastFiredAt = &t
	}
	if lastError.Valid {
		w.LastError = lastError.String
	}
	return &w, nil
}
