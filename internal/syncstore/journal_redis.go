package syncstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	entryField  = "entry"
	statusTTL   = 24 * time.Hour
	statusField = "status"
	reasonField = "reason"
)

// RedisJournal keeps queued writes in a Redis stream per node and the outcome
// of each write in a short-lived hash.
//
//	<prefix>:journal:<node>   stream, one message per write
//	<prefix>:write:<writeID>  hash {status, reason}
type RedisJournal struct {
	rdb    *redis.Client
	prefix string
	node   string
}

func NewRedisJournal(rdb *redis.Client, prefix, node string) *RedisJournal {
	if prefix == "" {
		prefix = "consultorio"
	}
	if node == "" {
		node = "local"
	}
	return &RedisJournal{rdb: rdb, prefix: prefix, node: node}
}

func (j *RedisJournal) streamKey() string {
	return j.prefix + ":journal:" + j.node
}

func (j *RedisJournal) statusKey(writeID string) string {
	return j.prefix + ":write:" + writeID
}

func (j *RedisJournal) Append(ctx context.Context, e *Entry) error {
	raw, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode entry: %w", err)
	}

	var add *redis.StringCmd
	_, err = j.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		add = pipe.XAdd(ctx, &redis.XAddArgs{
			Stream: j.streamKey(),
			Values: map[string]any{entryField: string(raw)},
		})
		j.setStatus(ctx, pipe, e.WriteID, StatusPending, "")
		return nil
	})
	if err != nil {
		return fmt.Errorf("journal append: %w", err)
	}
	e.Seq = add.Val()
	return nil
}

func (j *RedisJournal) Pending(ctx context.Context) ([]Entry, error) {
	msgs, err := j.rdb.XRange(ctx, j.streamKey(), "-", "+").Result()
	if err != nil {
		return nil, fmt.Errorf("journal read: %w", err)
	}
	out := make([]Entry, 0, len(msgs))
	for _, msg := range msgs {
		raw, _ := msg.Values[entryField].(string)
		var e Entry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			return nil, fmt.Errorf("journal decode %s: %w", msg.ID, err)
		}
		e.Seq = msg.ID
		out = append(out, e)
	}
	return out, nil
}

func (j *RedisJournal) Ack(ctx context.Context, e Entry) error {
	return j.settle(ctx, e, StatusDelivered, "")
}

func (j *RedisJournal) Reject(ctx context.Context, e Entry, reason string) error {
	return j.settle(ctx, e, StatusFailed, reason)
}

func (j *RedisJournal) settle(ctx context.Context, e Entry, status WriteStatus, reason string) error {
	_, err := j.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.XDel(ctx, j.streamKey(), e.Seq)
		j.setStatus(ctx, pipe, e.WriteID, status, reason)
		return nil
	})
	if err != nil {
		return fmt.Errorf("journal %s %s: %w", status, e.WriteID, err)
	}
	return nil
}

func (j *RedisJournal) setStatus(ctx context.Context, pipe redis.Pipeliner, writeID string, status WriteStatus, reason string) {
	key := j.statusKey(writeID)
	pipe.HSet(ctx, key, statusField, string(status), reasonField, reason)
	pipe.Expire(ctx, key, statusTTL)
}

func (j *RedisJournal) Status(ctx context.Context, writeID string) (WriteState, error) {
	vals, err := j.rdb.HGetAll(ctx, j.statusKey(writeID)).Result()
	if err != nil {
		return WriteState{}, fmt.Errorf("journal status: %w", err)
	}
	if len(vals) == 0 {
		return WriteState{}, ErrUnknownWrite
	}
	return WriteState{
		WriteID: writeID,
		Status:  WriteStatus(vals[statusField]),
		Reason:  vals[reasonField],
	}, nil
}

// Depth returns the number of undelivered entries.
func (j *RedisJournal) Depth(ctx context.Context) (int64, error) {
	return j.rdb.XLen(ctx, j.streamKey()).Result()
}
