package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	DefaultKeyPrefix = "smobilpay:order:"

	maxWatchRetries = 5
)

// RedisStore keeps orders as JSON documents in Redis. Updates use WATCH/MULTI so that only one of two racing
// transitions is applied.
type RedisStore struct {
	client    redis.UniversalClient
	keyPrefix string
	now       func() time.Time
}

// NewRedisStore creates a RedisStore on top of an existing client.
func NewRedisStore(client redis.UniversalClient, keyPrefix string) *RedisStore {
	if keyPrefix == "" {
		keyPrefix = DefaultKeyPrefix
	}

	return &RedisStore{
		client:    client,
		keyPrefix: keyPrefix,
		now:       time.Now,
	}
}

// NewRedisClient connects to Redis at addr and checks the connection.
func NewRedisClient(ctx context.Context, addr string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
		MaxRetries:   1,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("order.NewRedisClient.Ping:: %v", err)
	}

	return rdb, nil
}

func (s *RedisStore) key(id int64) string {
	return s.keyPrefix + strconv.FormatInt(id, 10)
}

func (s *RedisStore) Get(ctx context.Context, id int64) (*Order, error) {
	raw, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("order.RedisStore.Get:: %v", err)
	}

	var o Order
	if err := json.Unmarshal(raw, &o); err != nil {
		return nil, fmt.Errorf("order.RedisStore.Get.Unmarshal:: %v", err)
	}

	return &o, nil
}

func (s *RedisStore) Put(ctx context.Context, o *Order) error {
	data, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("order.RedisStore.Put.Marshal:: %v", err)
	}

	if err := s.client.Set(ctx, s.key(o.ID), data, 0).Err(); err != nil {
		return fmt.Errorf("order.RedisStore.Put:: %v", err)
	}

	return nil
}

func (s *RedisStore) BeginAttempt(ctx context.Context, id int64, phoneNumber string) error {
	_, err := s.update(ctx, id, beginAttempt(phoneNumber))
	return err
}

func (s *RedisStore) SaveAttempt(ctx context.Context, id int64, a Attempt) error {
	_, err := s.update(ctx, id, saveAttempt(a))
	return err
}

func (s *RedisStore) AddNote(ctx context.Context, id int64, note string) error {
	_, err := s.update(ctx, id, addNote(note))
	return err
}

func (s *RedisStore) UpdateStatus(ctx context.Context, id int64, status Status, note string) (bool, error) {
	return s.update(ctx, id, updateStatus(status, note))
}

func (s *RedisStore) MarkPaid(ctx context.Context, id int64, transactionRef, note string) (bool, error) {
	return s.update(ctx, id, markPaid(transactionRef, note))
}

// update runs fn inside an optimistic transaction and retries when the key changed under us.
func (s *RedisStore) update(ctx context.Context, id int64, fn mutation) (bool, error) {
	key := s.key(id)

	var changed bool

	txf := func(tx *redis.Tx) error {
		changed = false

		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}

		if err != nil {
			return err
		}

		var o Order
		if err := json.Unmarshal(raw, &o); err != nil {
			return err
		}

		ok, err := fn(&o, s.now())
		if err != nil || !ok {
			return err
		}

		data, err := json.Marshal(&o)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return nil
		})

		if err == nil {
			changed = true
		}

		return err
	}

	for i := 0; i < maxWatchRetries; i++ {
		err := s.client.Watch(ctx, txf, key)

		switch {
		case err == nil:
			return changed, nil
		case errors.Is(err, redis.TxFailedErr):
			continue
		case errors.Is(err, ErrNotFound), errors.Is(err, ErrAttemptRegressed):
			return false, err
		default:
			return false, fmt.Errorf("order.RedisStore.Update:: %v", err)
		}
	}

	return false, ErrConflict
}
