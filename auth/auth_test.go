package auth

import (
	"conference-webapp/database"
	"conference-webapp/errors"
	"conference-webapp/logger"
	"conference-webapp/model"
	"context"
	stderrors "errors"
	"os"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const signingKey = "test-signing-key"

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }
func (c *clock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func setup(t *testing.T, opts Options) (*Engine, *database.LocalStore, *clock) {
	t.Helper()
	store, err := database.NewLocalStore("")
	require.NoError(t, err)

	opts.SigningKey = signingKey
	clk := &clock{now: time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)}
	engine := New(store, NewDocumentSessions(store), opts, logger.Nop()).WithClock(clk.Now)
	require.NoError(t, engine.EnsureIndexes(context.Background()))
	return engine, store, clk
}

func sessionCount(t *testing.T, store database.Store) int64 {
	t.Helper()
	n, err := store.Count(context.Background(), model.KindUserSession, nil)
	require.NoError(t, err)
	return n
}

func TestRegister(t *testing.T) {
	ctx := context.Background()
	engine, _, _ := setup(t, Options{})

	user, err := engine.Register(ctx, " Ada ", "Ada@Example.com", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, "Ada", user.Name)
	assert.Equal(t, "ada@example.com", user.Email)
	assert.Equal(t, model.DefaultProfileImage, user.ProfileImage)
	assert.NotEqual(t, "s3cret", user.HashedPassword)

	_, err = engine.Register(ctx, "Imposter", "ADA@example.com", "other")
	assert.True(t, errors.IsConflict(err))

	_, err = engine.Register(ctx, "", "bob@example.com", "")
	var ve *errors.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, []string{"name", "password"}, ve.Fields)
}

func TestLoginWithWrongPasswordCreatesNoSession(t *testing.T) {
	ctx := context.Background()
	engine, store, _ := setup(t, Options{})
	_, err := engine.Register(ctx, "Ada", "ada@example.com", "s3cret")
	require.NoError(t, err)

	tests := []struct {
		description string
		email       string
		password    string
	}{
		{"wrong password", "ada@example.com", "guess"},
		{"unknown email", "bob@example.com", "s3cret"},
		{"empty password", "ada@example.com", ""},
	}
	for _, test := range tests {
		token, identity, err := engine.Login(ctx, test.email, test.password)
		assert.ErrorIsf(t, err, errors.ErrUnauthorized, test.description)
		assert.Emptyf(t, token, test.description)
		assert.Nilf(t, identity, test.description)
	}
	assert.Zero(t, sessionCount(t, store))
}

func TestLoginAndAuthenticate(t *testing.T) {
	ctx := context.Background()
	engine, store, _ := setup(t, Options{})
	user, err := engine.Register(ctx, "Ada", "ada@example.com", "s3cret")
	require.NoError(t, err)

	token, identity, err := engine.Login(ctx, "ADA@example.com", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, user.Id, identity.User.Id)
	assert.Equal(t, DefaultSessionTTL, identity.Session.ExpireAfter)
	assert.EqualValues(t, 1, sessionCount(t, store))

	resumed, err := engine.Authenticate(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, identity.Session.Id, resumed.Session.Id)
	assert.Equal(t, "ada@example.com", resumed.User.Email)

	_, err = engine.Authenticate(ctx, token+"x")
	assert.ErrorIs(t, err, errors.ErrUnauthorized)

	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sid": identity.Session.Id}).SignedString([]byte("other-key"))
	require.NoError(t, err)
	_, err = engine.Authenticate(ctx, forged)
	assert.ErrorIs(t, err, errors.ErrUnauthorized)
}

func TestSessionExpiresAfterInactivity(t *testing.T) {
	ctx := context.Background()
	engine, store, clk := setup(t, Options{TTL: time.Hour})
	_, err := engine.Register(ctx, "Ada", "ada@example.com", "s3cret")
	require.NoError(t, err)
	token, _, err := engine.Login(ctx, "ada@example.com", "s3cret")
	require.NoError(t, err)

	// Each touch pushes expiry out by another hour.
	for i := 0; i < 3; i++ {
		clk.Advance(50 * time.Minute)
		_, err = engine.Authenticate(ctx, token)
		require.NoError(t, err)
	}

	clk.Advance(time.Hour)
	_, err = engine.Authenticate(ctx, token)
	assert.ErrorIs(t, err, errors.ErrUnauthorized)
	assert.Zero(t, sessionCount(t, store), "expired sessions are dropped")
}

func TestTouchIsThrottled(t *testing.T) {
	ctx := context.Background()
	engine, _, clk := setup(t, Options{TTL: time.Hour, TouchAfter: time.Minute})
	_, err := engine.Register(ctx, "Ada", "ada@example.com", "s3cret")
	require.NoError(t, err)
	_, identity, err := engine.Login(ctx, "ada@example.com", "s3cret")
	require.NoError(t, err)
	opened := identity.Session.LastTouch

	clk.Advance(30 * time.Second)
	resumed, err := engine.Resume(ctx, identity.Session.Id)
	require.NoError(t, err)
	assert.Equal(t, opened, resumed.Session.LastTouch)

	clk.Advance(30 * time.Second)
	resumed, err = engine.Resume(ctx, identity.Session.Id)
	require.NoError(t, err)
	assert.Equal(t, clk.Now(), resumed.Session.LastTouch)
	assert.Equal(t, clk.Now().Add(time.Hour), resumed.Session.ExpiresAt)
}

func TestLogout(t *testing.T) {
	ctx := context.Background()
	engine, store, _ := setup(t, Options{})
	_, err := engine.Register(ctx, "Ada", "ada@example.com", "s3cret")
	require.NoError(t, err)
	token, identity, err := engine.Login(ctx, "ada@example.com", "s3cret")
	require.NoError(t, err)

	require.NoError(t, engine.Logout(ctx, identity.Session.Id))
	assert.Zero(t, sessionCount(t, store))

	_, err = engine.Authenticate(ctx, token)
	assert.ErrorIs(t, err, errors.ErrUnauthorized)
	assert.ErrorIs(t, engine.Logout(ctx, identity.Session.Id), errors.ErrUnauthorized)
}

func TestRedisSessions(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(ctx).Err())

	sessions := NewRedisSessions(client)
	now := time.Now().UTC().Truncate(time.Millisecond)
	session := model.UserSession{Id: "test-" + now.Format("150405.000"), CreatedAt: now, LastTouch: now, ExpireAfter: time.Minute, ExpiresAt: now.Add(time.Minute)}

	require.NoError(t, sessions.Create(ctx, session))
	stored, err := sessions.Get(ctx, session.Id)
	require.NoError(t, err)
	assert.Equal(t, session.Id, stored.Id)
	assert.True(t, session.LastTouch.Equal(stored.LastTouch))

	ttl, err := client.TTL(ctx, sessions.key(session.Id)).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	require.NoError(t, sessions.Touch(ctx, session))
	require.NoError(t, sessions.Delete(ctx, session.Id))
	assert.ErrorIs(t, sessions.Delete(ctx, session.Id), ErrSessionNotFound)
	assert.ErrorIs(t, sessions.Touch(ctx, session), ErrSessionNotFound)
	_, err = sessions.Get(ctx, session.Id)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessionTTLFollowsLastTouch(t *testing.T) {
	touched := time.Date(2020, 1, 1, 9, 0, 0, 0, time.UTC)
	session := model.UserSession{LastTouch: touched, ExpireAfter: time.Hour, ExpiresAt: touched.Add(time.Hour)}
	assert.Equal(t, time.Hour, sessionTTL(session), "a touch far in the past still gets its full lifetime")

	session.ExpiresAt = time.Time{}
	assert.Equal(t, time.Hour, sessionTTL(session))
}

// stuckSessions cannot delete anything.
type stuckSessions struct {
	*DocumentSessions
}

func (stuckSessions) Delete(ctx context.Context, id string) error {
	return stderrors.New("store unavailable")
}

func TestResumeLogsFailedDropOfRemovedUsersSession(t *testing.T) {
	ctx := context.Background()
	store, err := database.NewLocalStore("")
	require.NoError(t, err)
	core, logs := observer.New(zapcore.WarnLevel)
	log := &logger.Logger{SugaredLogger: zap.New(core).Sugar()}
	engine := New(store, stuckSessions{NewDocumentSessions(store)}, Options{SigningKey: signingKey}, log)

	user, err := engine.Register(ctx, "Ada", "ada@example.com", "s3cret")
	require.NoError(t, err)
	_, identity, err := engine.Login(ctx, "ada@example.com", "s3cret")
	require.NoError(t, err)
	require.NoError(t, store.Delete(ctx, model.KindUser, user.Id))

	_, err = engine.Resume(ctx, identity.Session.Id)
	assert.ErrorIs(t, err, errors.ErrUnauthorized)
	require.Equal(t, 1, logs.FilterMessage("failed to drop session of removed user").Len())
	assert.Equal(t, identity.Session.Id, logs.All()[0].ContextMap()["session"])
}
