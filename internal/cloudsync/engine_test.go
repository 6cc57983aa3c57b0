package cloudsync

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T) (*Engine, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewEngine(client), mr
}

func bill(id string) Record {
	return Record{
		ID:      id,
		Kind:    KindBill,
		Payload: json.RawMessage(`{"name":"Rent","amount":"1200.00","due_day":1}`),
	}
}

func TestEngine_DisabledWithoutIdentity(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := e.Put(ctx, bill("b1"))
	assert.ErrorIs(t, err, ErrSyncDisabled)

	_, err = e.List(ctx)
	assert.ErrorIs(t, err, ErrSyncDisabled)

	assert.ErrorIs(t, e.Delete(ctx, "b1"), ErrSyncDisabled)

	_, err = e.Version(ctx)
	assert.ErrorIs(t, err, ErrSyncDisabled)
}

func TestEngine_PutListDelete(t *testing.T) {
	e, mr := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, e.SetIdentity(ctx, "user-1"))
	assert.Equal(t, "user-1", e.Identity())
	assert.True(t, mr.Exists("sync:user-1:meta"))

	first, err := e.Put(ctx, bill("b2"))
	require.NoError(t, err)
	assert.EqualValues(t, 1, first.Version)
	assert.False(t, first.UpdatedAt.IsZero())

	_, err = e.Put(ctx, Record{
		ID:      "g1",
		Kind:    KindSavingsGoal,
		Payload: json.RawMessage(`{"target":"5000.00"}`),
	})
	require.NoError(t, err)

	_, err = e.Put(ctx, bill("b1"))
	require.NoError(t, err)

	recs, err := e.List(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, []string{"b1", "b2", "g1"}, []string{recs[0].ID, recs[1].ID, recs[2].ID})

	v, err := e.Version(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, v)

	require.NoError(t, e.Delete(ctx, "b2"))
	require.NoError(t, e.Delete(ctx, "missing"))

	recs, err = e.List(ctx)
	require.NoError(t, err)
	assert.Len(t, recs, 2)

	v, err = e.Version(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 4, v)
}

func TestEngine_DatasetsAreKeyedByIdentity(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, e.SetIdentity(ctx, "user-1"))
	_, err := e.Put(ctx, bill("b1"))
	require.NoError(t, err)

	require.NoError(t, e.SetIdentity(ctx, "user-2"))
	recs, err := e.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, recs)

	require.NoError(t, e.SetIdentity(ctx, ""))
	assert.Empty(t, e.Identity())

	require.NoError(t, e.SetIdentity(ctx, "user-1"))
	recs, err = e.List(ctx)
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestEngine_RejectsInvalidRecords(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	require.NoError(t, e.SetIdentity(ctx, "user-1"))

	tests := []struct {
		name string
		rec  Record
	}{
		{"missing id", Record{Kind: KindBill, Payload: json.RawMessage(`{}`)}},
		{"unknown kind", Record{ID: "x", Kind: "loan", Payload: json.RawMessage(`{}`)}},
		{"empty payload", Record{ID: "x", Kind: KindBill}},
		{"bad payload", Record{ID: "x", Kind: KindBill, Payload: json.RawMessage(`{nope`)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Put(ctx, tt.rec)
			assert.ErrorIs(t, err, ErrInvalidRecord)
		})
	}
}

func TestEngine_ResumeFailsWhenRedisDown(t *testing.T) {
	e, mr := newTestEngine(t)
	mr.Close()

	assert.Error(t, e.SetIdentity(context.Background(), "user-1"))
	assert.Empty(t, e.Identity())
}

func TestEngine_FailedSwitchDropsPreviousIdentity(t *testing.T) {
	e, mr := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, e.SetIdentity(ctx, "alice"))
	_, err := e.Put(ctx, bill("b1"))
	require.NoError(t, err)

	mr.SetError("transient")
	assert.Error(t, e.SetIdentity(ctx, "bob"))
	mr.SetError("")

	assert.Empty(t, e.Identity())
	_, err = e.List(ctx)
	assert.ErrorIs(t, err, ErrSyncDisabled)

	require.NoError(t, e.SetIdentity(ctx, "bob"))
	records, err := e.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)
}
