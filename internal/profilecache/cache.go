// Package profilecache puts a Redis read-through cache in front of a participant resolver.
package profilecache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/park285/gridclash/internal/obslog"
	"github.com/park285/gridclash/internal/pvpgrid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const DefaultTTL = time.Minute

func keyProfile(identity string) string { return "grid:profile:" + strings.TrimSpace(identity) }

// Resolver answers from Redis when it can and falls back to the wrapped
// resolver otherwise. Redis failures degrade to the fallback.
type Resolver struct {
	rdb  *redis.Client
	next pvpgrid.ParticipantResolver
	ttl  time.Duration
}

func NewResolver(rdb *redis.Client, next pvpgrid.ParticipantResolver, ttl time.Duration) *Resolver {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Resolver{rdb: rdb, next: next, ttl: ttl}
}

func (r *Resolver) ResolveParticipant(ctx context.Context, identity string) (*pvpgrid.Profile, error) {
	raw, err := r.rdb.Get(ctx, keyProfile(identity)).Bytes()
	switch {
	case err == nil:
		var p pvpgrid.Profile
		if jerr := json.Unmarshal(raw, &p); jerr == nil {
			return &p, nil
		}
		obslog.L().Warn("profile_cache_decode_error", zap.String("user_id", identity))
	case !errors.Is(err, redis.Nil):
		obslog.L().Warn("profile_cache_get_error", zap.String("user_id", identity), zap.Error(err))
	}

	p, err := r.next.ResolveParticipant(ctx, identity)
	if err != nil {
		return nil, err
	}
	if enc, jerr := json.Marshal(p); jerr == nil {
		if serr := r.rdb.Set(ctx, keyProfile(identity), enc, r.ttl).Err(); serr != nil {
			obslog.L().Warn("profile_cache_set_error", zap.String("user_id", identity), zap.Error(serr))
		}
	}
	return p, nil
}

// Invalidate drops the cached profiles of the given identities.
func (r *Resolver) Invalidate(ctx context.Context, identities ...string) error {
	keys := make([]string, 0, len(identities))
	for _, id := range identities {
		if strings.TrimSpace(id) != "" {
			keys = append(keys, keyProfile(id))
		}
	}
	if len(keys) == 0 {
		return nil
	}
	return r.rdb.Del(ctx, keys...).Err()
}

// InvalidatingPersister evicts both seats' cached profiles after a game is
// stored, so the next match shows settled balances.
type InvalidatingPersister struct {
	next  pvpgrid.Persister
	cache *Resolver
}

func NewInvalidatingPersister(next pvpgrid.Persister, cache *Resolver) *InvalidatingPersister {
	return &InvalidatingPersister{next: next, cache: cache}
}

func (p *InvalidatingPersister) PersistFinishedGame(ctx context.Context, g *pvpgrid.FinishedGame) error {
	if err := p.next.PersistFinishedGame(ctx, g); err != nil {
		return err
	}
	if g == nil {
		return nil
	}
	if err := p.cache.Invalidate(ctx, g.SlotA, g.SlotB); err != nil {
		obslog.L().Warn("profile_cache_invalidate_error", zap.String("game_id", g.SessionID), zap.Error(err))
	}
	return nil
}

// Connect opens and pings a client for a redis:// or rediss:// URL.
func Connect(ctx context.Context, rawURL string) (*redis.Client, error) {
	opts, err := ParseRedisURL(rawURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

// ParseRedisURL parses a redis:// or rediss:// URL. A rediss URL yields
// options with TLS enabled.
func ParseRedisURL(raw string) (*redis.Options, error) {
	raw = strings.TrimSpace(raw)
	if u, err := url.Parse(raw); err == nil && u.Host == "" {
		return nil, fmt.Errorf("redis url has no host")
	}
	opts, err := redis.ParseURL(raw)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return opts, nil
}
