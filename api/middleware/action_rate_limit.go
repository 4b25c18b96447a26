package middleware

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/angeldelgado/deliverydash-backend/api/responses"
	pkgerrors "github.com/angeldelgado/deliverydash-backend/pkg/errors"
	"github.com/angeldelgado/deliverydash-backend/pkg/logger"
)

// RateLimiterStore counts requests per key with a rolling window TTL.
type RateLimiterStore interface {
	IncrWithTTL(context.Context, string, time.Duration) (int64, error)
}

// ActionRateLimitPolicy defines the throttling parameters for a traffic surface.
type ActionRateLimitPolicy struct {
	name        string
	window      time.Duration
	ipLimit     int
	driverLimit int
}

// NewActionRateLimitPolicy builds a policy with the supplied window and limits.
func NewActionRateLimitPolicy(name string, window time.Duration, ipLimit, driverLimit int) ActionRateLimitPolicy {
	return ActionRateLimitPolicy{
		name:        strings.ToLower(strings.TrimSpace(name)),
		window:      window,
		ipLimit:     ipLimit,
		driverLimit: driverLimit,
	}
}

func (p ActionRateLimitPolicy) enabled() bool {
	return p.window > 0 && (p.ipLimit > 0 || p.driverLimit > 0)
}

func (p ActionRateLimitPolicy) normalizedName() string {
	if p.name == "" {
		return "action"
	}
	return p.name
}

func (p ActionRateLimitPolicy) ipKey(ip string) string {
	if ip == "" {
		return ""
	}
	return fmt.Sprintf("rl:ip:%s:%s", p.normalizedName(), ip)
}

func (p ActionRateLimitPolicy) driverKey(driverID string) string {
	if driverID == "" {
		return ""
	}
	return fmt.Sprintf("rl:driver:%s:%s", p.normalizedName(), driverID)
}

// ActionRateLimit enforces per-IP and per-driver counters on driver action
// endpoints. The driver is read from the driverId route parameter.
func ActionRateLimit(policy ActionRateLimitPolicy, store RateLimiterStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !policy.enabled() || store == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			ip := clientIP(r)
			if policy.ipLimit > 0 {
				if key := policy.ipKey(ip); key != "" {
					if allowed, count, err := allow(ctx, store, key, policy.window, int64(policy.ipLimit)); err != nil {
						responses.WriteError(ctx, nil, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiting"))
						return
					} else if !allowed {
						respondRateLimited(ctx, logg, w, policy, "ip", ip, "", count, policy.ipLimit)
						return
					}
				}
			}

			if policy.driverLimit > 0 {
				driverID := strings.TrimSpace(chi.URLParam(r, "driverId"))
				if key := policy.driverKey(driverID); key != "" {
					if allowed, count, err := allow(ctx, store, key, policy.window, int64(policy.driverLimit)); err != nil {
						responses.WriteError(ctx, nil, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiting"))
						return
					} else if !allowed {
						respondRateLimited(ctx, logg, w, policy, "driver", "", driverID, count, policy.driverLimit)
						return
					}
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

func allow(ctx context.Context, store RateLimiterStore, key string, window time.Duration, limit int64) (bool, int64, error) {
	count, err := store.IncrWithTTL(ctx, key, window)
	if err != nil {
		return false, 0, err
	}
	return count <= limit, count, nil
}

func respondRateLimited(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, policy ActionRateLimitPolicy, scope, ip, driverID string, count int64, limit int) {
	if logg != nil {
		fields := map[string]any{
			"scope":          scope,
			"policy":         policy.normalizedName(),
			"attempts":       count,
			"limit":          limit,
			"window_seconds": int(policy.window.Seconds()),
		}
		if ip != "" {
			fields["ip"] = ip
		}
		if driverID != "" {
			fields["driver_id"] = driverID
		}
		logCtx := logg.WithFields(ctx, fields)
		logg.Warn(logCtx, "action.rate_limit.blocked")
	}
	err := pkgerrors.New(pkgerrors.CodeRateLimit, "rate limit exceeded")
	responses.WriteError(ctx, nil, w, err)
}

func clientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	if header := r.Header.Get("X-Forwarded-For"); header != "" {
		for _, part := range strings.Split(header, ",") {
			if ip := strings.TrimSpace(part); ip != "" {
				return ip
			}
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}
