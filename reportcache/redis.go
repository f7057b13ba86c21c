/*
Package reportcache stores built monthly reports in Redis.

KEYS:
  report:gen:{user}                  generation counter, bumped on invalidation
  report:{user}:{gen}:{yyyy-mm}      JSON-encoded wage.MonthlyReport, with TTL

  Invalidate only increments the counter. Reports stored under an older
  generation become unreachable and expire on their own TTL, so dropping a
  user's reports is a single INCR regardless of how many months are cached.

FAILURE MODE:
  Errors are returned to the caller; wage.Service logs them and falls back
  to building the report from the store.

SEE ALSO:
  - wage/service.go: ReportCache interface and its use
*/
package reportcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/warp/wage-engine/wage"
)

// DefaultTTL applies when New is given a non-positive ttl.
const DefaultTTL = 24 * time.Hour

// Redis implements wage.ReportCache.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

var _ wage.ReportCache = (*Redis)(nil)

// New wraps a connected client.
func New(client *redis.Client, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Redis{client: client, ttl: ttl, prefix: "report"}
}

func (r *Redis) genKey(userID string) string {
	return fmt.Sprintf("%s:gen:%s", r.prefix, userID)
}

func (r *Redis) reportKey(userID string, gen int64, year int, month time.Month) string {
	return fmt.Sprintf("%s:%s:%d:%04d-%02d", r.prefix, userID, gen, year, int(month))
}

func (r *Redis) generation(ctx context.Context, userID string) (int64, error) {
	gen, err := r.client.Get(ctx, r.genKey(userID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read report generation: %w", err)
	}
	return gen, nil
}

// Get returns the cached report for the user's current generation.
func (r *Redis) Get(ctx context.Context, userID string, year int, month time.Month) (wage.MonthlyReport, bool, error) {
	gen, err := r.generation(ctx, userID)
	if err != nil {
		return wage.MonthlyReport{}, false, err
	}
	val, err := r.client.Get(ctx, r.reportKey(userID, gen, year, month)).Bytes()
	if errors.Is(err, redis.Nil) {
		return wage.MonthlyReport{}, false, nil
	}
	if err != nil {
		return wage.MonthlyReport{}, false, fmt.Errorf("read cached report: %w", err)
	}
	var report wage.MonthlyReport
	if err := json.Unmarshal(val, &report); err != nil {
		// unreadable entry; treat as a miss and let the next Put overwrite it
		return wage.MonthlyReport{}, false, nil
	}
	return report, true, nil
}

// Put stores report under the user's current generation.
func (r *Redis) Put(ctx context.Context, report wage.MonthlyReport) error {
	gen, err := r.generation(ctx, report.UserID)
	if err != nil {
		return err
	}
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	key := r.reportKey(report.UserID, gen, report.Year, report.Month)
	if err := r.client.Set(ctx, key, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("write cached report: %w", err)
	}
	return nil
}

// Invalidate makes every cached report of the user unreachable.
func (r *Redis) Invalidate(ctx context.Context, userID string) error {
	if err := r.client.Incr(ctx, r.genKey(userID)).Err(); err != nil {
		return fmt.Errorf("bump report generation: %w", err)
	}
	return nil
}
