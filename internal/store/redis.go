// Package store provides storage backends for Clario assessment state.
//
// This file implements the Redis-backed store. Records are JSON blobs keyed
// by user id; SETNX provides atomic creation and WATCH transactions provide
// atomic partial updates.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/clarioapp/clario/internal/models"
	"github.com/go-redis/redis/v8"
)

const (
	redisKeyPrefix = "assessment:"
	// redisTxRetries bounds optimistic-lock retries when a concurrent writer
	// touches the same key between WATCH and EXEC.
	redisTxRetries = 5
)

// RedisStore persists assessment state in Redis.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a new Redis store. The DSN is a redis:// URL or a
// plain host:port address.
func NewRedisStore(opts ...Option) (*RedisStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewRedisStore invoked", "DSN_set", cfg.DSN != "")

	if cfg.DSN == "" {
		slog.Error("RedisStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	ropts, err := redis.ParseURL(cfg.DSN)
	if err != nil {
		// Accept bare host:port addresses as well as redis:// URLs.
		ropts = &redis.Options{Addr: cfg.DSN}
	}
	client := redis.NewClient(ropts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		slog.Error("Redis ping failed", "error", err)
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &RedisStore{client: client}, nil
}

func redisKey(userID string) string {
	return redisKeyPrefix + userID
}

// GetAssessment returns the user's assessment state. SETNX ensures only one
// of any number of concurrent first accesses creates the default record.
func (s *RedisStore) GetAssessment(ctx context.Context, userID string) (models.AssessmentState, error) {
	if userID == "" {
		return models.AssessmentState{}, models.ErrEmptyUserID
	}
	def := models.NewAssessmentState(userID)
	defJSON, err := json.Marshal(def)
	if err != nil {
		return models.AssessmentState{}, fmt.Errorf("failed to marshal default assessment: %w", err)
	}

	created, err := s.client.SetNX(ctx, redisKey(userID), defJSON, 0).Result()
	if err != nil {
		slog.Error("RedisStore GetAssessment SETNX failed", "error", err, "userID", userID)
		return models.AssessmentState{}, fmt.Errorf("failed to ensure assessment for %s: %w", userID, err)
	}
	if created {
		slog.Debug("RedisStore GetAssessment created default record", "userID", userID)
		return def, nil
	}

	data, err := s.client.Get(ctx, redisKey(userID)).Result()
	if err != nil {
		slog.Error("RedisStore GetAssessment read failed", "error", err, "userID", userID)
		return models.AssessmentState{}, fmt.Errorf("failed to read assessment for %s: %w", userID, err)
	}
	var state models.AssessmentState
	if err := json.Unmarshal([]byte(data), &state); err != nil {
		slog.Error("RedisStore GetAssessment unmarshal failed", "error", err, "userID", userID)
		return models.AssessmentState{}, fmt.Errorf("failed to decode assessment for %s: %w", userID, err)
	}
	if state.Answers == nil {
		state.Answers = make(map[string]string)
	}
	slog.Debug("RedisStore GetAssessment succeeded", "userID", userID, "index", state.CurrentQuestionIndex, "status", state.Status)
	return state, nil
}

// UpdateAssessment merges only the supplied fields into the stored record
// inside an optimistic WATCH transaction.
func (s *RedisStore) UpdateAssessment(ctx context.Context, userID string, update models.AssessmentUpdate) error {
	if userID == "" {
		return models.ErrEmptyUserID
	}
	key := redisKey(userID)

	txn := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			return models.ErrAssessmentNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to read assessment for %s: %w", userID, err)
		}

		var state models.AssessmentState
		if err := json.Unmarshal([]byte(data), &state); err != nil {
			return fmt.Errorf("failed to decode assessment for %s: %w", userID, err)
		}
		update.Apply(&state)

		out, err := json.Marshal(state)
		if err != nil {
			return fmt.Errorf("failed to encode assessment for %s: %w", userID, err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, out, 0)
			return nil
		})
		return err
	}

	for attempt := 0; attempt < redisTxRetries; attempt++ {
		err := s.client.Watch(ctx, txn, key)
		if err == nil {
			slog.Debug("RedisStore UpdateAssessment succeeded", "userID", userID, "attempt", attempt)
			return nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			slog.Debug("RedisStore UpdateAssessment tx conflict, retrying", "userID", userID, "attempt", attempt)
			continue
		}
		slog.Error("RedisStore UpdateAssessment failed", "error", err, "userID", userID)
		return err
	}
	return fmt.Errorf("failed to update assessment for %s: too many concurrent writers", userID)
}

// Close closes the Redis client.
func (s *RedisStore) Close() error {
	slog.Debug("Closing Redis client")
	return s.client.Close()
}
