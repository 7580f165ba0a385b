package f2bapi

import (
	"context"
	"encoding/json"
	"net/url"
)

type LogService struct{ c Caller }

func (s *LogService) List(ctx context.Context, q *QueryParams) (*Page[LogEntry], error) {
	var out Page[LogEntry]
	if err := s.c.Get(ctx, "/api/logs", q.Values(), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *LogService) Realtime(ctx context.Context, jail string) ([]LogEntry, error) {
	q := url.Values{}
	if jail != "" {
		q.Set("jail", jail)
	}
	return get[[]LogEntry](ctx, s.c, "/api/logs/realtime", q)
}

func (s *LogService) Download(ctx context.Context, startDate, endDate string) (json.RawMessage, error) {
	q := url.Values{"start_date": {startDate}, "end_date": {endDate}}
	return get[json.RawMessage](ctx, s.c, "/api/logs/download", q)
}

func (s *LogService) Clear(ctx context.Context, beforeDate string) error {
	return s.c.Delete(ctx, "/api/logs", url.Values{"before_date": {beforeDate}}, nil)
}
