// Package ratelimit provides a Redis-backed fixed-window rate limiter:
// a router middleware for the API surface plus per-purpose IP limits and
// email cooldowns used by the authentication endpoints.
package ratelimit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/natours/natours-api/internal/apperror"
	"github.com/natours/natours-api/internal/httputil"
)

const emailCooldown = 2 * time.Minute

// Limiter counts requests per client IP in fixed windows.
type Limiter struct {
	client      *redis.Client
	maxRequests int
	window      time.Duration
}

func NewLimiter(client *redis.Client, maxRequests int, window time.Duration) *Limiter {
	return &Limiter{client: client, maxRequests: maxRequests, window: window}
}

// Middleware enforces the global API limit. Redis errors fail open so a
// cache outage does not take the API down with it.
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		count, err := l.increment(r.Context(), ipKey(ClientIP(r), "api"), l.window)
		if err == nil && count > int64(l.maxRequests) {
			httputil.RespondError(w, apperror.WithCode(http.StatusTooManyRequests,
				"TOO_MANY_REQUESTS", "Too many requests from this IP, please try again in an hour!"))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// CheckIPRateLimitWithPurpose reports whether the IP exhausted its window
// for the given purpose (login, signup, ...).
func (l *Limiter) CheckIPRateLimitWithPurpose(ctx context.Context, ip, purpose string) (bool, error) {
	count, err := l.client.Get(ctx, ipKey(ip, purpose)).Int64()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read rate limit counter: %w", err)
	}
	return count >= int64(l.maxRequests), nil
}

// RecordIPRequestWithPurpose counts one request against the IP's window.
func (l *Limiter) RecordIPRequestWithPurpose(ctx context.Context, ip, purpose string) error {
	_, err := l.increment(ctx, ipKey(ip, purpose), l.window)
	return err
}

// CheckEmailCooldown reports whether an email-sending action for this
// address is still on cooldown.
func (l *Limiter) CheckEmailCooldown(ctx context.Context, email string) (bool, error) {
	exists, err := l.client.Exists(ctx, emailKey(email)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check email cooldown: %w", err)
	}
	return exists > 0, nil
}

// SetEmailCooldown starts the cooldown for an email address.
func (l *Limiter) SetEmailCooldown(ctx context.Context, email string) error {
	if err := l.client.Set(ctx, emailKey(email), "1", emailCooldown).Err(); err != nil {
		return fmt.Errorf("failed to set email cooldown: %w", err)
	}
	return nil
}

// increment bumps a window counter, starting the TTL on first hit.
func (l *Limiter) increment(ctx context.Context, key string, window time.Duration) (int64, error) {
	pipe := l.client.Pipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("failed to increment rate limit counter: %w", err)
	}
	return incr.Val(), nil
}

func ipKey(ip, purpose string) string {
	return fmt.Sprintf("ratelimit:%s:%s", purpose, ip)
}

func emailKey(email string) string {
	// Hash so raw addresses never land in Redis keys.
	sum := sha256.Sum256([]byte(strings.ToLower(email)))
	return "cooldown:email:" + hex.EncodeToString(sum[:])
}

// ClientIP extracts the client IP address from the request, preferring
// proxy headers over RemoteAddr.
func ClientIP(r *http.Request) string {
	xff := r.Header.Get("X-Forwarded-For")
	if xff != "" {
		// X-Forwarded-For can contain multiple IPs, take the first one
		ips := strings.Split(xff, ",")
		if len(ips) > 0 {
			return strings.TrimSpace(ips[0])
		}
	}

	xri := r.Header.Get("X-Real-IP")
	if xri != "" {
		return strings.TrimSpace(xri)
	}

	// RemoteAddr format is "IP:port", extract just the IP
	ip := r.RemoteAddr
	if idx := strings.LastIndex(ip, ":"); idx != -1 {
		ip = ip[:idx]
	}
	return ip
}
