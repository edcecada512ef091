package auth

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/rampart-ai/rampart/internal/engine"
)

// ClientStore abstracts DB queries for testability.
type ClientStore interface {
	LookupByPrefix(ctx context.Context, prefix string) (*clientRow, error)
}

type clientRow struct {
	ClientID       string
	Name           string
	APIKeyHash     string
	Mode           string
	DetectorConfig sql.NullString // JSONB (NULL when never configured)
}

// sqlClientStore is the real implementation using *sql.DB.
type sqlClientStore struct {
	db *sql.DB
}

func (s *sqlClientStore) LookupByPrefix(ctx context.Context, prefix string) (*clientRow, error) {
	row := &clientRow{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, api_key_hash, mode, detector_config
		 FROM clients
		 WHERE api_key_prefix = $1`,
		prefix,
	).Scan(&row.ClientID, &row.Name, &row.APIKeyHash, &row.Mode, &row.DetectorConfig)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrInvalidAPIKey // No client with this prefix. Reject, don't fail open.
		}
		return nil, fmt.Errorf("sqlClientStore.LookupByPrefix: %w", err)
	}
	return row, nil
}

// PostgresAuthenticator validates API keys against the clients table.
// Uses AuthCache with stale-while-revalidate to avoid DB + bcrypt on the
// hot path. Auth failures always return an error; no detectors run
// without valid auth.
type PostgresAuthenticator struct {
	store  ClientStore
	cache  *AuthCache
	logger *zap.Logger
}

// PostgresAuthConfig configures the PostgresAuthenticator.
type PostgresAuthConfig struct {
	DB       *sql.DB
	CacheTTL time.Duration // Default: 30s
	Logger   *zap.Logger
}

// NewPostgresAuthenticator creates a new authenticator backed by PostgreSQL.
func NewPostgresAuthenticator(cfg PostgresAuthConfig) *PostgresAuthenticator {
	ttl := cfg.CacheTTL
	if ttl == 0 {
		ttl = 30 * time.Second
	}
	return &PostgresAuthenticator{
		store:  &sqlClientStore{db: cfg.DB},
		cache:  NewAuthCache(ttl),
		logger: cfg.Logger,
	}
}

// newPostgresAuthenticatorWithStore creates an authenticator with an injected store (for testing).
func newPostgresAuthenticatorWithStore(store ClientStore, cache *AuthCache, logger *zap.Logger) *PostgresAuthenticator {
	return &PostgresAuthenticator{
		store:  store,
		cache:  cache,
		logger: logger,
	}
}

// Authenticate validates the API key against the database.
//
// Flow:
//  1. Cache lookup (stale-while-revalidate):
//     - Fresh hit: return immediately (sub-microsecond)
//     - Stale hit: return stale client, spawn background refresh
//     - Miss: do full DB + bcrypt lookup synchronously
//  2. On DB error: return ErrAuthUnavailable
func (a *PostgresAuthenticator) Authenticate(ctx context.Context, apiKey string) (*ClientContext, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	result := a.cache.Get(apiKey)

	if result.Hit {
		// Stale hit: kick off background refresh, return stale value immediately.
		if result.NeedsRefresh {
			go a.backgroundRefresh(apiKey)
		}
		return result.Client, nil
	}

	client, err := a.lookupAndVerify(ctx, apiKey)
	if err != nil {
		return a.handleLookupError(err)
	}

	a.cache.Set(apiKey, client)
	return client, nil
}

// backgroundRefresh performs the DB + bcrypt lookup in a background goroutine.
// Errors are logged but don't affect the caller (they already got the stale value).
func (a *PostgresAuthenticator) backgroundRefresh(apiKey string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := a.lookupAndVerify(ctx, apiKey)
	if err != nil {
		a.logger.Warn("background cache refresh failed",
			zap.Error(err),
		)
		// Don't update cache. Stale entry remains and the next stale
		// read will retry once its refreshing flag is cleared.
		a.cache.Delete(apiKey)
		return
	}

	a.cache.Set(apiKey, client)
}

// lookupAndVerify does the full DB prefix lookup + bcrypt verification + policy parsing.
func (a *PostgresAuthenticator) lookupAndVerify(ctx context.Context, apiKey string) (*ClientContext, error) {
	// api_key_prefix is the first 8 chars (e.g. "rk_abcde")
	if len(apiKey) < 8 {
		return nil, ErrInvalidAPIKey
	}
	prefix := apiKey[:8]

	row, err := a.store.LookupByPrefix(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("lookupAndVerify: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(row.APIKeyHash), []byte(apiKey)); err != nil {
		return nil, ErrInvalidAPIKey
	}

	// Parse policy from detector_config JSONB. The DB stores a flat map
	// {"prompt_injection": {...}, "scope": {...}}: the top level IS the
	// detectors map, not wrapped in a "detectors" key.
	var policy *engine.PolicyConfig
	if row.DetectorConfig.Valid && row.DetectorConfig.String != "" && row.DetectorConfig.String != "{}" {
		parsed, err := parseDetectorConfig(row.DetectorConfig.String)
		if err != nil {
			a.logger.Warn("failed to parse detector_config, using defaults",
				zap.String("client_id", row.ClientID),
				zap.Error(err),
			)
			// Don't fail, just use nil policy (server defaults).
		} else {
			policy = parsed
		}
	}

	return &ClientContext{
		ClientID: row.ClientID,
		Name:     row.Name,
		Mode:     row.Mode,
		Policy:   policy,
	}, nil
}

// handleLookupError returns the appropriate error. Detectors never run
// on auth failure.
func (a *PostgresAuthenticator) handleLookupError(lookupErr error) (*ClientContext, error) {
	if errors.Is(lookupErr, ErrInvalidAPIKey) {
		return nil, ErrInvalidAPIKey
	}

	// DB error (timeout, connection refused, etc.)
	a.logger.Warn("auth DB unreachable",
		zap.Error(lookupErr),
	)
	return nil, fmt.Errorf("%w: %v", ErrAuthUnavailable, lookupErr)
}

func parseDetectorConfig(raw string) (*engine.PolicyConfig, error) {
	var detectors map[string]engine.DetectorPolicy
	if err := json.Unmarshal([]byte(raw), &detectors); err != nil {
		return nil, fmt.Errorf("parseDetectorConfig: %w", err)
	}
	return &engine.PolicyConfig{Detectors: detectors}, nil
}
