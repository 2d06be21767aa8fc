package console

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/maraudr/console/internal/appstate"
	"github.com/maraudr/console/internal/auth"
	"github.com/maraudr/console/internal/flow"
	"github.com/maraudr/console/internal/inventory"
	"github.com/maraudr/console/internal/metrics"
	"github.com/maraudr/console/internal/model"
	"github.com/maraudr/console/internal/scanner"
	"github.com/maraudr/console/internal/stockapi"
	"github.com/maraudr/console/internal/store"
)

// ErrSessionNotFound is returned for unknown, expired or revoked sessions.
var ErrSessionNotFound = errors.New("console session not found")

// Directory is the association backend: it signs operators in and lists
// their memberships.
type Directory interface {
	Login(ctx context.Context, email, password string) (string, error)
	Memberships(ctx context.Context, token string) ([]model.Association, error)
}

// Options configures a Registry.
type Options struct {
	DB            *sql.DB
	JWTSecret     string
	TokenKey      *[32]byte
	Directory     Directory
	Routes        stockapi.Routes
	QuantityRoute stockapi.QuantityRoute
	StockTimeout  time.Duration
	StockHTTP     *http.Client // optional, shared by all sessions when set
	SessionTTL    time.Duration
	Metrics       *metrics.Collector
	Logger        *slog.Logger

	// AfterFunc replaces time.AfterFunc in the flows, for tests.
	AfterFunc flow.AfterFunc
}

// Registry owns the live sessions. Sessions survive a restart through the
// sessions table and are rebuilt on first use.
type Registry struct {
	opts Options
	log  *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
	loading  singleflight.Group
}

// NewRegistry creates an empty registry.
func NewRegistry(opts Options) (*Registry, error) {
	if opts.DB == nil || opts.TokenKey == nil || opts.Directory == nil {
		return nil, errors.New("console: database, token key and directory are required")
	}
	if opts.JWTSecret == "" {
		return nil, errors.New("console: jwt secret required")
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = auth.TokenExpiry
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{opts: opts, log: logger, sessions: make(map[string]*Session)}, nil
}

// Login signs an operator in against the association backend and opens a
// session. The returned string is the signed session cookie value.
func (r *Registry) Login(ctx context.Context, email, password string) (*Session, string, error) {
	backendToken, err := r.opts.Directory.Login(ctx, email, password)
	if err != nil {
		return nil, "", err
	}
	memberships, err := r.opts.Directory.Memberships(ctx, backendToken)
	if err != nil {
		return nil, "", fmt.Errorf("listing memberships: %w", err)
	}

	expires := time.Now().Add(r.opts.SessionTTL)
	if exp, ok := auth.BackendTokenExpiry(backendToken); ok && exp.Before(expires) {
		expires = exp
	}

	id := uuid.NewString()
	err = store.CreateSession(ctx, r.opts.DB, r.opts.TokenKey, store.Session{
		ID:           id,
		Email:        email,
		BackendToken: backendToken,
		ExpiresAt:    expires,
	})
	if err != nil {
		return nil, "", err
	}

	cookie, err := auth.GenerateToken(r.opts.JWTSecret, id, email, time.Until(expires))
	if err != nil {
		return nil, "", err
	}

	s, err := r.build(ctx, id, email, backendToken, expires, memberships)
	if err != nil {
		return nil, "", err
	}

	r.mu.Lock()
	r.sessions[id] = s
	r.mu.Unlock()

	r.log.Info("operator signed in", "email", email, "session", id, "associations", len(memberships))
	return s, cookie, nil
}

// Authenticate validates a session cookie or bearer value and returns its
// session.
func (r *Registry) Authenticate(ctx context.Context, token string) (*Session, *auth.Claims, error) {
	claims, err := auth.ValidateToken(r.opts.JWTSecret, token)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrSessionNotFound, err)
	}

	revoked, err := store.IsTokenRevoked(ctx, r.opts.DB, claims.ID)
	if err != nil {
		return nil, nil, err
	}
	if revoked {
		return nil, nil, ErrSessionNotFound
	}

	s, err := r.resume(ctx, claims.SessionID)
	if err != nil {
		return nil, nil, err
	}
	return s, claims, nil
}

func (r *Registry) resume(ctx context.Context, id string) (*Session, error) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	r.mu.Unlock()
	if ok {
		if !s.expired(time.Now()) {
			return s, nil
		}
		r.drop(id)
		return nil, ErrSessionNotFound
	}

	v, err, _ := r.loading.Do(id, func() (any, error) {
		row, err := store.GetSession(ctx, r.opts.DB, r.opts.TokenKey, id)
		if err != nil {
			return nil, err
		}
		if row == nil {
			return nil, ErrSessionNotFound
		}

		memberships, err := r.opts.Directory.Memberships(ctx, row.BackendToken)
		if err != nil {
			return nil, fmt.Errorf("listing memberships: %w", err)
		}

		s, err := r.build(ctx, row.ID, row.Email, row.BackendToken, row.ExpiresAt, memberships)
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		r.sessions[id] = s
		r.mu.Unlock()
		r.log.Info("session restored", "email", row.Email, "session", id)
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Session), nil
}

// build assembles a session's components.
func (r *Registry) build(ctx context.Context, id, email, backendToken string, expires time.Time, memberships []model.Association) (*Session, error) {
	preferred, err := store.GetSelection(ctx, r.opts.DB, email)
	if err != nil {
		r.log.Warn("failed to load association selection", "email", email, "error", err)
	}

	logger := r.log.With("session", id)
	s := &Session{
		ID:           id,
		Email:        email,
		ExpiresAt:    expires,
		State:        appstate.New(appstate.State{}),
		Camera:       scanner.NewFeedCamera(),
		reg:          r,
		log:          logger,
		backendToken: backendToken,
	}

	stock, err := stockapi.New(stockapi.Options{
		Routes:        r.opts.Routes,
		Tokens:        stockapi.TokenFunc(s.token),
		QuantityRoute: r.opts.QuantityRoute,
		HTTPClient:    r.opts.StockHTTP,
		Timeout:       r.opts.StockTimeout,
		Metrics:       r.opts.Metrics,
		Logger:        logger,
	})
	if err != nil {
		return nil, err
	}
	s.Stock = stock
	s.Items = inventory.New(stock)

	s.AddItem = flow.NewAddItem(flow.AddItemConfig{
		Creator:     stock,
		Association: s.AssociationID,
		OnAdded:     s.added,
		Metrics:     r.opts.Metrics,
		AfterFunc:   r.opts.AfterFunc,
	})
	s.EditItem = flow.NewEditItem(flow.EditItemConfig{
		Save:      s.SaveItem,
		AfterFunc: r.opts.AfterFunc,
	})
	s.Scanner = scanner.New(scanner.Options{
		Camera:  s.Camera,
		Decoder: scanner.NewZXingDecoder(),
		OnScan:  s.scanned,
		Metrics: r.opts.Metrics,
		Logger:  logger,
	})

	s.wire()
	s.State.Update(appstate.SignIn(email, memberships, preferred))
	return s, nil
}

func (r *Registry) rememberSelection(ctx context.Context, email, associationID string) error {
	return store.SaveSelection(ctx, r.opts.DB, email, associationID)
}

// Logout revokes the session cookie and ends the session.
func (r *Registry) Logout(ctx context.Context, claims *auth.Claims) error {
	if claims == nil {
		return nil
	}
	if claims.ID != "" && claims.ExpiresAt != nil {
		if err := store.RevokeToken(ctx, r.opts.DB, claims.ID, claims.ExpiresAt.Time); err != nil {
			return err
		}
	}
	if err := store.DeleteSession(ctx, r.opts.DB, claims.SessionID); err != nil {
		return err
	}
	if s := r.drop(claims.SessionID); s != nil {
		s.State.Update(appstate.SignOut)
	}
	r.log.Info("operator signed out", "email", claims.Email, "session", claims.SessionID)
	return nil
}

// drop removes a live session and releases its resources.
func (r *Registry) drop(id string) *Session {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if !ok {
		return nil
	}
	s.close()
	return s
}

// Sweep ends expired sessions, live and stored.
func (r *Registry) Sweep(ctx context.Context) (int64, error) {
	now := time.Now()
	r.mu.Lock()
	var expired []string
	for id, s := range r.sessions {
		if s.expired(now) {
			expired = append(expired, id)
		}
	}
	r.mu.Unlock()

	for _, id := range expired {
		r.drop(id)
	}
	if _, err := store.PurgeRevokedTokens(ctx, r.opts.DB, now); err != nil {
		return 0, err
	}
	return store.DeleteExpiredSessions(ctx, r.opts.DB)
}

// RunSweeper calls Sweep every interval until ctx is done.
func (r *Registry) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := r.Sweep(ctx)
			if err != nil {
				r.log.Error("failed to sweep sessions", "error", err)
				continue
			}
			if n > 0 {
				r.log.Info("expired sessions removed", "count", n)
			}
		}
	}
}

// Close ends every live session. Stored sessions are kept.
func (r *Registry) Close() {
	r.mu.Lock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	for _, id := range ids {
		r.drop(id)
	}
}
