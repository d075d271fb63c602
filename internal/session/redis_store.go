package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const defaultTTL = 4 * time.Hour

// RedisStore keeps call sessions in Redis as one JSON blob per call id.
type RedisStore struct {
	redis  *redis.Client
	ttl    time.Duration
	tracer trace.Tracer
}

// NewRedisStore builds a store with the given session TTL (<=0 uses 4h).
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if client == nil {
		panic("session: redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &RedisStore{
		redis:  client,
		ttl:    ttl,
		tracer: otel.Tracer("orderstatus.internal.session"),
	}
}

func (s *RedisStore) Get(ctx context.Context, callSID string) (*Session, error) {
	ctx, span := s.tracer.Start(ctx, "session.get")
	defer span.End()

	data, err := s.redis.Get(ctx, sessionKey(callSID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrNotFound
		}
		span.RecordError(err)
		return nil, fmt.Errorf("session: load: %w", err)
	}
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("session: decode: %w", err)
	}
	return &sess, nil
}

func (s *RedisStore) Save(ctx context.Context, sess *Session) error {
	ctx, span := s.tracer.Start(ctx, "session.save")
	defer span.End()

	sess.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(sess)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("session: marshal: %w", err)
	}
	if err := s.redis.Set(ctx, sessionKey(sess.CallSID), data, s.ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("session: persist: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, callSID string) error {
	ctx, span := s.tracer.Start(ctx, "session.delete")
	defer span.End()

	if err := s.redis.Del(ctx, sessionKey(callSID)).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("session: delete: %w", err)
	}
	return nil
}

// MarkEmailAttempt is an atomic SET NX with the cooldown as expiry: the first
// caller in the window wins, later callers are told to back off.
func (s *RedisStore) MarkEmailAttempt(ctx context.Context, callSID string, cooldown time.Duration) (bool, error) {
	ctx, span := s.tracer.Start(ctx, "session.mark_email_attempt")
	defer span.End()

	if cooldown <= 0 {
		cooldown = time.Minute
	}
	ok, err := s.redis.SetNX(ctx, emailAttemptKey(callSID), time.Now().UTC().Format(time.RFC3339), cooldown).Result()
	if err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("session: mark email attempt: %w", err)
	}
	return ok, nil
}

// EmailSent reports whether the sent flag is set for this call.
func (s *RedisStore) EmailSent(ctx context.Context, callSID string) (bool, error) {
	ctx, span := s.tracer.Start(ctx, "session.email_sent")
	defer span.End()

	n, err := s.redis.Exists(ctx, emailSentKey(callSID)).Result()
	if err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("session: email sent check: %w", err)
	}
	return n > 0, nil
}

// MarkEmailSent flips the sent flag once per call; the flag outlives the
// session record so duplicate transcription callbacks stay suppressed.
func (s *RedisStore) MarkEmailSent(ctx context.Context, callSID string) (bool, error) {
	ctx, span := s.tracer.Start(ctx, "session.mark_email_sent")
	defer span.End()

	ok, err := s.redis.SetNX(ctx, emailSentKey(callSID), time.Now().UTC().Format(time.RFC3339), 2*s.ttl).Result()
	if err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("session: mark email sent: %w", err)
	}
	return ok, nil
}

func sessionKey(callSID string) string {
	return fmt.Sprintf("call_session:%s", callSID)
}

func emailAttemptKey(callSID string) string {
	return fmt.Sprintf("call_email_attempt:%s", callSID)
}

func emailSentKey(callSID string) string {
	return fmt.Sprintf("call_email_sent:%s", callSID)
}
