package cache

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// TokenStore tracks revoked JWT IDs. Entries carry the remaining lifetime
// of the token they revoke, so the store cleans itself up.
type TokenStore struct {
	cache  *Manager
	logger *zap.Logger
}

func NewTokenStore(m *Manager, logger *zap.Logger) *TokenStore {
	return &TokenStore{cache: m, logger: logger}
}

func revokedTokenKey(jti string) string {
	return "revoked:" + jti
}

func (s *TokenStore) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		// Already expired; nothing to revoke.
		return nil
	}
	return s.cache.Set(ctx, revokedTokenKey(jti), "1", ttl)
}

// IsRevoked reports whether the token ID was revoked. Lookup failures are
// logged and treated as not revoked: the token still carries a valid
// signature and expiry.
func (s *TokenStore) IsRevoked(ctx context.Context, jti string) bool {
	found, err := s.cache.Exists(ctx, revokedTokenKey(jti))
	if err != nil {
		s.logger.Warn("revocation lookup failed", zap.Error(err))
		return false
	}
	return found
}

// RecommendationCache stores computed recommendation payloads per user.
// Entries expire on their own; borrow and review activity invalidates the
// user's entries early so fresh history is reflected.
type RecommendationCache struct {
	cache *Manager
	ttl   time.Duration
}

func NewRecommendationCache(m *Manager, ttl time.Duration) *RecommendationCache {
	return &RecommendationCache{cache: m, ttl: ttl}
}

func recommendationKey(userID int64, genre string, limit int) string {
	return fmt.Sprintf("recommend:%d:%s:%d", userID, genre, limit)
}

// Get loads a cached payload into dest, reporting whether one was found.
func (r *RecommendationCache) Get(ctx context.Context, userID int64, genre string, limit int, dest any) bool {
	return r.cache.GetJSON(ctx, recommendationKey(userID, genre, limit), dest) == nil
}

func (r *RecommendationCache) Set(ctx context.Context, userID int64, genre string, limit int, value any) {
	// Best effort.
	_ = r.cache.SetJSON(ctx, recommendationKey(userID, genre, limit), value, r.ttl)
}

func (r *RecommendationCache) Invalidate(ctx context.Context, userID int64) {
	_ = r.cache.DeletePattern(ctx, fmt.Sprintf("recommend:%d:*", userID))
}
