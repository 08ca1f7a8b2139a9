package syncstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alijeyrad/consultorio_backend/pkg/docstore"
)

func setupJournal(t *testing.T) (*miniredis.Miniredis, *RedisJournal) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return mr, NewRedisJournal(rdb, "test", "n1")
}

func TestRedisJournalLifecycle(t *testing.T) {
	mr, j := setupJournal(t)
	ctx := context.Background()

	first := &Entry{WriteID: "w1", Account: "u1", Op: docstore.OpSet, Parent: patients, DocID: "p1",
		Fields: map[string]any{"name": "Ana"}, IssuedAt: time.Now().UTC()}
	second := &Entry{WriteID: "w2", Account: "u1", Op: docstore.OpDelete, Parent: patients, DocID: "p1",
		IssuedAt: time.Now().UTC()}
	require.NoError(t, j.Append(ctx, first))
	require.NoError(t, j.Append(ctx, second))
	assert.NotEmpty(t, first.Seq)

	pending, err := j.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "w1", pending[0].WriteID)
	assert.Equal(t, "Ana", pending[0].Fields["name"])
	assert.Equal(t, first.Seq, pending[0].Seq)

	st, err := j.Status(ctx, "w1")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, st.Status)

	require.NoError(t, j.Ack(ctx, pending[0]))
	require.NoError(t, j.Reject(ctx, pending[1], "permission denied"))

	pending, err = j.Pending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	depth, err := j.Depth(ctx)
	require.NoError(t, err)
	assert.Zero(t, depth)

	st, err = j.Status(ctx, "w1")
	require.NoError(t, err)
	assert.Equal(t, StatusDelivered, st.Status)

	st, err = j.Status(ctx, "w2")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, st.Status)
	assert.Equal(t, "permission denied", st.Reason)

	assert.True(t, mr.Exists("test:write:w1"))
	assert.Greater(t, mr.TTL("test:write:w1"), time.Duration(0))

	_, err = j.Status(ctx, "nope")
	assert.ErrorIs(t, err, ErrUnknownWrite)
}

func TestRedisJournalAppendFailsWhenRedisIsDown(t *testing.T) {
	mr, j := setupJournal(t)
	mr.Close()

	err := j.Append(context.Background(), &Entry{WriteID: "w1", Parent: patients, DocID: "p1", Op: docstore.OpDelete})
	assert.Error(t, err)
}

func TestStoreOverRedisJournal(t *testing.T) {
	_, j := setupJournal(t)
	backend := docstore.NewMemory()
	backend.SetOnline(false)
	s := New(Options{NodeID: "n1", Journal: j, Backend: backend})
	defer s.Close()

	res, err := s.Write(context.Background(), scope, patients, "", patient("Ana", time.Now()), Merge)
	require.NoError(t, err)

	restarted := New(Options{NodeID: "n1", Journal: j, Backend: backend})
	defer restarted.Close()
	require.NoError(t, restarted.Recover(context.Background()))
	assert.Equal(t, 1, restarted.Pending())

	st, err := restarted.Status(context.Background(), res.WriteID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, st.Status)
}
