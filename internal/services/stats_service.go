package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// StatsService aggregates dashboard numbers. Results are cached in Redis for
// a short window; the service degrades to direct queries when Redis is down.
type StatsService struct {
	db    *sql.DB
	redis *redis.Client
	log   *logrus.Logger
}

func NewStatsService(db *sql.DB, redisClient *redis.Client, log *logrus.Logger) *StatsService {
	return &StatsService{db: db, redis: redisClient, log: log}
}

const statsCacheKey = "stats:overview"
const statsCacheTTL = 30 * time.Second

// StatusTotal is one status bucket in an aggregate.
type StatusTotal struct {
	Status string          `json:"status"`
	Count  int64           `json:"count"`
	Total  decimal.Decimal `json:"total"`
}

// Overview is the dashboard aggregate.
type Overview struct {
	Deposits    []StatusTotal `json:"deposits"`
	Withdrawals []StatusTotal `json:"withdrawals"`
	GeneratedAt time.Time     `json:"generated_at"`
}

// GetOverview returns deposit and withdrawal totals grouped by status.
func (s *StatsService) GetOverview(ctx context.Context) (*Overview, error) {
	if s.redis != nil {
		cached, err := s.redis.Get(ctx, statsCacheKey).Result()
		if err == nil {
			var o Overview
			if err := json.Unmarshal([]byte(cached), &o); err == nil {
				return &o, nil
			}
		} else if err != redis.Nil {
			s.log.WithError(err).Warn("stats cache read failed")
		}
	}

	deposits, err := s.statusTotals(ctx,
		`SELECT status::text, COUNT(*), COALESCE(SUM(amount), 0)
		 FROM deposit_orders GROUP BY status ORDER BY status`)
	if err != nil {
		return nil, fmt.Errorf("aggregate deposits: %w", err)
	}
	withdrawals, err := s.statusTotals(ctx,
		`SELECT status::text, COUNT(*), COALESCE(SUM(amount), 0)
		 FROM withdrawal_requests GROUP BY status ORDER BY status`)
	if err != nil {
		return nil, fmt.Errorf("aggregate withdrawals: %w", err)
	}

	o := &Overview{
		Deposits:    deposits,
		Withdrawals: withdrawals,
		GeneratedAt: time.Now().UTC(),
	}

	if s.redis != nil {
		if raw, err := json.Marshal(o); err == nil {
			if err := s.redis.Set(ctx, statsCacheKey, raw, statsCacheTTL).Err(); err != nil {
				s.log.WithError(err).Warn("stats cache write failed")
			}
		}
	}
	return o, nil
}

func (s *StatsService) statusTotals(ctx context.Context, query string) ([]StatusTotal, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	totals := []StatusTotal{}
	for rows.Next() {
		var t StatusTotal
		if err := rows.Scan(&t.Status, &t.Count, &t.Total); err != nil {
			return nil, err
		}
		totals = append(totals, t)
	}
	return totals, rows.Err()
}
