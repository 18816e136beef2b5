package queue

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// Queue names
const (
	StylizeImageQueue = "stylize-image"
)

var ErrEmpty = errors.New("queue empty")

// Envelope wraps a job payload with its identity and enqueue time
type Envelope struct {
	JobID      string          `json:"jobId"`
	Name       string          `json:"name"`
	Payload    json.RawMessage `json:"payload"`
	EnqueuedAt time.Time       `json:"enqueuedAt"`
}

// RedisQueue is a Redis-list job queue. Delivery is at-least-once; callers
// that need at-most-once side effects must guard them at the consumer (the
// request store's compare-and-transition does this for stylize jobs).
type RedisQueue struct {
	client *goredis.Client
}

func NewRedisQueue(client *goredis.Client) *RedisQueue {
	return &RedisQueue{client: client}
}

func queueKey(name string) string {
	return "queue:" + name
}

// Enqueue pushes a job and returns its assigned id
func (q *RedisQueue) Enqueue(ctx context.Context, name string, payload interface{}) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	env := Envelope{
		JobID:      uuid.New().String(),
		Name:       name,
		Payload:    raw,
		EnqueuedAt: time.Now().UTC(),
	}
	data, err := json.Marshal(env)
	if err != nil {
		return "", err
	}

	if err := q.client.LPush(ctx, queueKey(name), data).Err(); err != nil {
		return "", err
	}
	return env.JobID, nil
}

// Dequeue blocks up to timeout for the next job. Returns ErrEmpty when the
// wait expires with nothing to do.
func (q *RedisQueue) Dequeue(ctx context.Context, name string, timeout time.Duration) (*Envelope, error) {
	res, err := q.client.BRPop(ctx, timeout, queueKey(name)).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, ErrEmpty
		}
		return nil, err
	}
	// BRPop returns [key, value]
	if len(res) != 2 {
		return nil, errors.New("unexpected brpop reply")
	}

	var env Envelope
	if err := json.Unmarshal([]byte(res[1]), &env); err != nil {
		return nil, err
	}
	return &env, nil
}

// Len reports the number of waiting jobs
func (q *RedisQueue) Len(ctx context.Context, name string) (int64, error) {
	return q.client.LLen(ctx, queueKey(name)).Result()
}
