// Package auth registers users, checks their credentials and keeps the server
// side sessions that gate every write to the conference graph.
//
// A session moves from anonymous to authenticated on Login and back on Logout
// or once it stays untouched for longer than its TTL. The caller receives a
// signed token carrying only the session id; the session record itself is the
// source of truth.
package auth

import (
	"conference-webapp/database"
	"conference-webapp/errors"
	"conference-webapp/logger"
	"conference-webapp/model"
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"
)

const (
	DefaultSessionTTL = 24 * time.Hour

	sessionClaim = "sid"
)

type Options struct {
	SigningKey string
	// TTL is the allowed inactivity before a session expires.
	TTL time.Duration
	// TouchAfter throttles last-touch writes: a session is only written back
	// when its last touch is at least this old.
	TouchAfter time.Duration
}

// Identity is the acting user of an authenticated request.
type Identity struct {
	User    model.User
	Session model.UserSession
}

type Engine struct {
	users    database.Store
	sessions SessionStore
	opts     Options
	clock    func() time.Time
	log      *logger.Logger
}

func New(users database.Store, sessions SessionStore, opts Options, log *logger.Logger) *Engine {
	if opts.TTL <= 0 {
		opts.TTL = DefaultSessionTTL
	}
	return &Engine{
		users:    users,
		sessions: sessions,
		opts:     opts,
		clock:    time.Now,
		log:      log.With("component", "auth"),
	}
}

func (e *Engine) WithClock(clock func() time.Time) *Engine {
	e.clock = clock
	return e
}

func (e *Engine) now() time.Time {
	return e.clock().UTC().Truncate(time.Millisecond)
}

func (e *Engine) EnsureIndexes(ctx context.Context) error {
	if err := e.users.EnsureUnique(ctx, model.KindUser, "email"); err != nil {
		return err
	}
	if indexed, ok := e.sessions.(interface{ EnsureIndexes(context.Context) error }); ok {
		return indexed.EnsureIndexes(ctx)
	}
	return nil
}

// Register creates a user with a bcrypt hash of password. Emails are unique
// ignoring case.
func (e *Engine) Register(ctx context.Context, name, email, password string) (*model.User, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))

	var missing []string
	if name == "" {
		missing = append(missing, "name")
	}
	if email == "" {
		missing = append(missing, "email")
	}
	if password == "" {
		missing = append(missing, "password")
	}
	if err := errors.Missing(missing...); err != nil {
		return nil, err
	}

	var existing model.User
	err := database.FindOne(ctx, e.users, model.KindUser, bson.M{"email": email}, &existing)
	if err == nil {
		return nil, &errors.ConflictError{Field: "email", Value: email}
	}
	if !stderrors.Is(err, database.ErrNoDocuments) {
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user := &model.User{
		Id:             primitive.NewObjectID(),
		Name:           name,
		Email:          email,
		HashedPassword: string(hash),
		ProfileImage:   model.DefaultProfileImage,
		CreatedAt:      e.now(),
	}
	if err := e.users.Insert(ctx, model.KindUser, user); err != nil {
		if stderrors.Is(err, database.ErrDuplicateKey) {
			return nil, &errors.ConflictError{Field: "email", Value: email}
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	e.log.Info("user registered", "user", user.Id.Hex())
	return user, nil
}

// VerifyCredentials returns the user owning email when password matches its
// hash, errors.ErrUnauthorized otherwise.
func (e *Engine) VerifyCredentials(ctx context.Context, email, password string) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, fmt.Errorf("%w: invalid email or password", errors.ErrUnauthorized)
	}

	var user model.User
	err := database.FindOne(ctx, e.users, model.KindUser, bson.M{"email": email}, &user)
	if stderrors.Is(err, database.ErrNoDocuments) {
		return nil, fmt.Errorf("%w: invalid email or password", errors.ErrUnauthorized)
	}
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(password)) != nil {
		return nil, fmt.Errorf("%w: invalid email or password", errors.ErrUnauthorized)
	}
	return &user, nil
}

// Login checks the credentials, opens a session and returns its signed token.
// Nothing is stored when the credentials do not match.
func (e *Engine) Login(ctx context.Context, email, password string) (string, *Identity, error) {
	user, err := e.VerifyCredentials(ctx, email, password)
	if err != nil {
		return "", nil, err
	}

	now := e.now()
	session := model.UserSession{
		Id:          uuid.NewString(),
		UserId:      user.Id,
		CreatedAt:   now,
		LastTouch:   now,
		ExpireAfter: e.opts.TTL,
		ExpiresAt:   now.Add(e.opts.TTL),
	}
	token, err := e.sign(session)
	if err != nil {
		return "", nil, err
	}
	if err := e.sessions.Create(ctx, session); err != nil {
		return "", nil, fmt.Errorf("create session: %w", err)
	}
	e.log.Debug("session opened", "user", user.Id.Hex(), "session", session.Id)
	return token, &Identity{User: *user, Session: session}, nil
}

func (e *Engine) sign(session model.UserSession) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		sessionClaim: session.Id,
		"sub":        session.UserId.Hex(),
		"iat":        session.CreatedAt.Unix(),
	})
	signed, err := token.SignedString([]byte(e.opts.SigningKey))
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

// SessionID checks the signature of token and returns the session id it
// carries.
func (e *Engine) SessionID(token string) (string, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(e.opts.SigningKey), nil
	})
	if err != nil || !parsed.Valid {
		return "", fmt.Errorf("%w: invalid session token", errors.ErrUnauthorized)
	}
	return SessionIDFromClaims(parsed.Claims)
}

// SessionIDFromClaims extracts the session id from already verified claims.
func SessionIDFromClaims(claims jwt.Claims) (string, error) {
	mapClaims, ok := claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("%w: invalid session token", errors.ErrUnauthorized)
	}
	id, _ := mapClaims[sessionClaim].(string)
	if id == "" {
		return "", fmt.Errorf("%w: session token carries no session", errors.ErrUnauthorized)
	}
	return id, nil
}

// Authenticate resolves a signed token to the acting user.
func (e *Engine) Authenticate(ctx context.Context, token string) (*Identity, error) {
	id, err := e.SessionID(token)
	if err != nil {
		return nil, err
	}
	return e.Resume(ctx, id)
}

// Resume loads the session with id, expires it when idle for too long and
// records the touch otherwise.
func (e *Engine) Resume(ctx context.Context, id string) (*Identity, error) {
	session, err := e.sessions.Get(ctx, id)
	if stderrors.Is(err, ErrSessionNotFound) {
		return nil, fmt.Errorf("%w: no such session", errors.ErrUnauthorized)
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	now := e.now()
	if session.Expired(now) {
		if err := e.sessions.Delete(ctx, id); err != nil && !stderrors.Is(err, ErrSessionNotFound) {
			e.log.Warn("failed to drop expired session", "session", id, "error", err)
		}
		return nil, fmt.Errorf("%w: session expired", errors.ErrUnauthorized)
	}

	var user model.User
	err = e.users.FindByID(ctx, model.KindUser, session.UserId, &user)
	if stderrors.Is(err, database.ErrNoDocuments) {
		if err := e.sessions.Delete(ctx, id); err != nil && !stderrors.Is(err, ErrSessionNotFound) {
			e.log.Warn("failed to drop session of removed user", "session", id, "error", err)
		}
		return nil, fmt.Errorf("%w: user no longer exists", errors.ErrUnauthorized)
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}

	if now.Sub(session.LastTouch) >= e.opts.TouchAfter {
		session.LastTouch = now
		session.ExpiresAt = now.Add(session.ExpireAfter)
		if err := e.sessions.Touch(ctx, session); err != nil {
			if stderrors.Is(err, ErrSessionNotFound) {
				return nil, fmt.Errorf("%w: no such session", errors.ErrUnauthorized)
			}
			return nil, fmt.Errorf("touch session: %w", err)
		}
	}
	return &Identity{User: user, Session: session}, nil
}

// Logout destroys the session with id.
func (e *Engine) Logout(ctx context.Context, id string) error {
	err := e.sessions.Delete(ctx, id)
	if stderrors.Is(err, ErrSessionNotFound) {
		return fmt.Errorf("%w: no such session", errors.ErrUnauthorized)
	}
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
