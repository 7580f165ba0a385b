package f2bapi

import (
	"context"
	"net/url"
	"strconv"
)

type StatsService struct{ c Caller }

func (s *StatsService) System(ctx context.Context) (*SystemStats, error) {
	var out SystemStats
	if err := s.c.Get(ctx, "/api/stats", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *StatsService) Today(ctx context.Context) (Object, error) {
	return get[Object](ctx, s.c, "/api/stats/today", nil)
}

// History returns per-day statistics; days <= 0 means the default week.
func (s *StatsService) History(ctx context.Context, days int) (Object, error) {
	if days <= 0 {
		days = 7
	}
	q := url.Values{"days": {strconv.Itoa(days)}}
	return get[Object](ctx, s.c, "/api/stats/history", q)
}
