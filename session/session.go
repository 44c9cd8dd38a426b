package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Session is the in-memory view of the stored credential.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - Listeners run synchronously after the change, outside the session lock.
type Session struct {
	store Store
	now   func() time.Time

	mu        sync.Mutex
	cred      *Credential
	listeners map[uint64]func(present bool)
	seq       uint64
}

// Option configures a Session.
type Option func(*Session)

// WithClock replaces time.Now for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates a session and loads any stored credential.
func New(ctx context.Context, store Store, opts ...Option) (*Session, error) {
	s := &Session{
		store:     store,
		now:       time.Now,
		listeners: make(map[uint64]func(bool)),
	}
	for _, opt := range opts {
		opt(s)
	}
	c, err := store.Load(ctx)
	switch {
	case errors.Is(err, ErrNoCredential):
	case err != nil:
		return nil, err
	default:
		s.cred = &c
	}
	return s, nil
}

// Credential returns the current credential.
func (s *Session) Credential() (Credential, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cred == nil {
		return Credential{}, false
	}
	return *s.cred, true
}

// Present reports whether a usable credential is held.
func (s *Session) Present() bool {
	_, err := s.Identity()
	return err == nil
}

// Identity decodes the credential. It returns ErrNoCredential when signed
// out and ErrCredentialExpired when the token's exp claim has passed.
func (s *Session) Identity() (*Identity, error) {
	c, ok := s.Credential()
	if !ok {
		return nil, ErrNoCredential
	}
	id, err := decode(c)
	if err != nil {
		return nil, err
	}
	if id.IsExpired(s.now()) {
		return nil, ErrCredentialExpired
	}
	return id, nil
}

// AuthorizationHeader returns the bearer header value for the credential.
func (s *Session) AuthorizationHeader() (string, error) {
	c, ok := s.Credential()
	if !ok {
		return "", ErrNoCredential
	}
	return "Bearer " + c.Token, nil
}

// SignIn stores c and notifies listeners.
func (s *Session) SignIn(ctx context.Context, c Credential) error {
	if c.Token == "" {
		return ErrNoCredential
	}
	if err := s.store.Save(ctx, c); err != nil {
		return err
	}
	s.mu.Lock()
	s.cred = &c
	s.mu.Unlock()
	s.changed(true)
	return nil
}

// SignOut clears the credential and notifies listeners.
func (s *Session) SignOut(ctx context.Context) error {
	if err := s.store.Clear(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	had := s.cred != nil
	s.cred = nil
	s.mu.Unlock()
	if had {
		s.changed(false)
	}
	return nil
}

// OnChange registers fn to be told when the credential appears or goes
// away. The returned function unregisters it.
func (s *Session) OnChange(fn func(present bool)) func() {
	s.mu.Lock()
	s.seq++
	seq := s.seq
	s.listeners[seq] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, seq)
		s.mu.Unlock()
	}
}

func (s *Session) changed(present bool) {
	s.mu.Lock()
	fns := make([]func(bool), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(present)
	}
}

// decode reads the subject and time claims of a JWT token without verifying
// it. Tokens that are not JWTs yield an identity built from the user id.
func decode(c Credential) (*Identity, error) {
	id := &Identity{
		UserID: c.UserID,
		Claims: make(map[string]any),
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(c.Token, claims); err != nil {
		if errors.Is(err, jwt.ErrTokenMalformed) {
			id.Principal = strconv.Itoa(c.UserID)
			return id, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	}

	for k, v := range claims {
		id.Claims[k] = v
	}
	if sub, err := claims.GetSubject(); err == nil && sub != "" {
		id.Principal = sub
	} else {
		id.Principal = strconv.Itoa(c.UserID)
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		id.ExpiresAt = exp.Time
	}
	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		id.IssuedAt = iat.Time
	}
	return id, nil
}
