// Package cloudsync stores the user's budgeting records (bills and
// savings goals) remotely, keyed by the signed-in identity.
package cloudsync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"session-service/internal/logger"

	"github.com/redis/go-redis/v9"
)

type Kind string

const (
	KindBill        Kind = "bill"
	KindSavingsGoal Kind = "savings_goal"
)

var (
	ErrSyncDisabled  = errors.New("cloudsync: no syncable identity")
	ErrInvalidRecord = errors.New("cloudsync: invalid record")
)

// Record is one synced item. Payload is opaque to the engine.
type Record struct {
	ID        string          `json:"id"`
	Kind      Kind            `json:"kind"`
	Payload   json.RawMessage `json:"payload"`
	Version   int64           `json:"version"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Engine syncs records for at most one identity at a time.
type Engine struct {
	client redis.Cmdable

	mu       sync.RWMutex
	identity string
}

func NewEngine(client redis.Cmdable) *Engine {
	return &Engine{client: client}
}

func recordsKey(id string) string { return "sync:" + id + ":records" }
func versionKey(id string) string { return "sync:" + id + ":version" }
func metaKey(id string) string    { return "sync:" + id + ":meta" }

// SetIdentity resumes syncing for identityID, or pauses when it is empty.
// The previous identity is dropped first, so a failed resume leaves the
// engine paused.
func (e *Engine) SetIdentity(ctx context.Context, identityID string) error {
	e.mu.Lock()
	e.identity = ""
	e.mu.Unlock()

	if identityID == "" {
		logger.Info("cloud sync paused", nil)
		return nil
	}

	err := e.client.HSet(ctx, metaKey(identityID),
		"last_resumed_at", time.Now().UTC().Format(time.RFC3339),
	).Err()
	if err != nil {
		return fmt.Errorf("cloudsync: resume: %w", err)
	}

	e.mu.Lock()
	e.identity = identityID
	e.mu.Unlock()

	logger.Info("cloud sync resumed", nil)
	return nil
}

// Identity returns the identity currently synced, or "".
func (e *Engine) Identity() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.identity
}

func (e *Engine) active() (string, error) {
	id := e.Identity()
	if id == "" {
		return "", ErrSyncDisabled
	}
	return id, nil
}

// Put creates or replaces a record and returns it with its new version.
func (e *Engine) Put(ctx context.Context, rec Record) (Record, error) {
	id, err := e.active()
	if err != nil {
		return Record{}, err
	}

	if rec.ID == "" {
		return Record{}, fmt.Errorf("%w: missing id", ErrInvalidRecord)
	}
	if rec.Kind != KindBill && rec.Kind != KindSavingsGoal {
		return Record{}, fmt.Errorf("%w: unknown kind %q", ErrInvalidRecord, rec.Kind)
	}
	if len(rec.Payload) == 0 || !json.Valid(rec.Payload) {
		return Record{}, fmt.Errorf("%w: payload must be JSON", ErrInvalidRecord)
	}

	version, err := e.client.Incr(ctx, versionKey(id)).Result()
	if err != nil {
		return Record{}, fmt.Errorf("cloudsync: bump version: %w", err)
	}

	rec.Version = version
	rec.UpdatedAt = time.Now().UTC()

	data, err := json.Marshal(rec)
	if err != nil {
		return Record{}, fmt.Errorf("cloudsync: marshal: %w", err)
	}

	if err := e.client.HSet(ctx, recordsKey(id), rec.ID, data).Err(); err != nil {
		return Record{}, fmt.Errorf("cloudsync: store record: %w", err)
	}

	return rec, nil
}

// List returns all records of the synced identity ordered by id.
func (e *Engine) List(ctx context.Context) ([]Record, error) {
	id, err := e.active()
	if err != nil {
		return nil, err
	}

	raw, err := e.client.HGetAll(ctx, recordsKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("cloudsync: list: %w", err)
	}

	out := make([]Record, 0, len(raw))
	for key, val := range raw {
		var rec Record
		if err := json.Unmarshal([]byte(val), &rec); err != nil {
			return nil, fmt.Errorf("cloudsync: decode %s: %w", key, err)
		}
		out = append(out, rec)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Delete removes a record. Deleting a missing record is not an error.
func (e *Engine) Delete(ctx context.Context, recordID string) error {
	id, err := e.active()
	if err != nil {
		return err
	}

	n, err := e.client.HDel(ctx, recordsKey(id), recordID).Result()
	if err != nil {
		return fmt.Errorf("cloudsync: delete: %w", err)
	}
	if n > 0 {
		if err := e.client.Incr(ctx, versionKey(id)).Err(); err != nil {
			return fmt.Errorf("cloudsync: bump version: %w", err)
		}
	}
	return nil
}

// Version is the dataset version; it grows on every change.
func (e *Engine) Version(ctx context.Context) (int64, error) {
	id, err := e.active()
	if err != nil {
		return 0, err
	}

	v, err := e.client.Get(ctx, versionKey(id)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("cloudsync: version: %w", err)
	}
	return v, nil
}
