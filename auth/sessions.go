package auth

import (
	"conference-webapp/database"
	"conference-webapp/model"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrSessionNotFound = stderrors.New("session not found")

// SessionStore persists UserSession records. Touch overwrites an existing
// record; Get and Delete report ErrSessionNotFound for unknown ids.
type SessionStore interface {
	Create(ctx context.Context, session model.UserSession) error
	Get(ctx context.Context, id string) (model.UserSession, error)
	Touch(ctx context.Context, session model.UserSession) error
	Delete(ctx context.Context, id string) error
}

// DocumentSessions keeps sessions in the entity store next to the users.
type DocumentSessions struct {
	store database.Store
}

func NewDocumentSessions(store database.Store) *DocumentSessions {
	return &DocumentSessions{store: store}
}

type ttlIndexer interface {
	EnsureTTL(ctx context.Context, kind model.Kind, field string) error
}

// EnsureIndexes asks the store to expire idle sessions on its own when it
// can. Sessions are expired on lookup either way.
func (d *DocumentSessions) EnsureIndexes(ctx context.Context) error {
	if indexer, ok := d.store.(ttlIndexer); ok {
		return indexer.EnsureTTL(ctx, model.KindUserSession, "expires_at")
	}
	return nil
}

func (d *DocumentSessions) Create(ctx context.Context, session model.UserSession) error {
	return d.store.Insert(ctx, model.KindUserSession, session)
}

func (d *DocumentSessions) Get(ctx context.Context, id string) (model.UserSession, error) {
	var session model.UserSession
	err := d.store.FindByID(ctx, model.KindUserSession, id, &session)
	if stderrors.Is(err, database.ErrNoDocuments) {
		return model.UserSession{}, ErrSessionNotFound
	}
	return session, err
}

func (d *DocumentSessions) Touch(ctx context.Context, session model.UserSession) error {
	err := d.store.Replace(ctx, model.KindUserSession, session.Id, session)
	if stderrors.Is(err, database.ErrNoDocuments) {
		return ErrSessionNotFound
	}
	return err
}

func (d *DocumentSessions) Delete(ctx context.Context, id string) error {
	err := d.store.Delete(ctx, model.KindUserSession, id)
	if stderrors.Is(err, database.ErrNoDocuments) {
		return ErrSessionNotFound
	}
	return err
}

// RedisSessions keeps each session under its own key and lets redis expire
// it after ExpireAfter without a touch.
type RedisSessions struct {
	client *redis.Client
	prefix string
}

func NewRedisSessions(client *redis.Client) *RedisSessions {
	return &RedisSessions{client: client, prefix: "session:"}
}

func (r *RedisSessions) key(id string) string { return r.prefix + id }

// sessionTTL is the key lifetime of session as of its last touch, measured
// with the engine's clock.
func sessionTTL(session model.UserSession) time.Duration {
	if ttl := session.ExpiresAt.Sub(session.LastTouch); ttl > 0 {
		return ttl
	}
	return session.ExpireAfter
}

func (r *RedisSessions) Create(ctx context.Context, session model.UserSession) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.key(session.Id), payload, sessionTTL(session)).Err()
}

func (r *RedisSessions) Get(ctx context.Context, id string) (model.UserSession, error) {
	payload, err := r.client.Get(ctx, r.key(id)).Bytes()
	if stderrors.Is(err, redis.Nil) {
		return model.UserSession{}, ErrSessionNotFound
	}
	if err != nil {
		return model.UserSession{}, fmt.Errorf("redis get session: %w", err)
	}
	var session model.UserSession
	if err := json.Unmarshal(payload, &session); err != nil {
		return model.UserSession{}, fmt.Errorf("decode session: %w", err)
	}
	return session, nil
}

// Touch rewrites the session only while its key still exists, so a touch
// racing with Delete cannot bring the session back.
func (r *RedisSessions) Touch(ctx context.Context, session model.UserSession) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return err
	}
	ok, err := r.client.SetXX(ctx, r.key(session.Id), payload, sessionTTL(session)).Result()
	if stderrors.Is(err, redis.Nil) {
		return ErrSessionNotFound
	}
	if err != nil {
		return fmt.Errorf("redis touch session: %w", err)
	}
	if !ok {
		return ErrSessionNotFound
	}
	return nil
}

func (r *RedisSessions) Delete(ctx context.Context, id string) error {
	n, err := r.client.Del(ctx, r.key(id)).Result()
	if err != nil {
		return fmt.Errorf("redis delete session: %w", err)
	}
	if n == 0 {
		return ErrSessionNotFound
	}
	return nil
}
