package f2bapi

import (
	"context"
	"net/url"
)

type AnalysisService struct{ c Caller }

func (s *AnalysisService) Threat(ctx context.Context, ip string) (*ThreatAnalysis, error) {
	var out ThreatAnalysis
	if err := s.c.Get(ctx, "/api/analysis/threat/"+seg(ip), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Trends defaults to the last 24h when period is empty.
func (s *AnalysisService) Trends(ctx context.Context, period string) (Object, error) {
	if period == "" {
		period = "24h"
	}
	return get[Object](ctx, s.c, "/api/analysis/trends", url.Values{"period": {period}})
}

func (s *AnalysisService) GeoStats(ctx context.Context) (Object, error) {
	return get[Object](ctx, s.c, "/api/analysis/geo-stats", nil)
}

func (s *AnalysisService) AttackTypes(ctx context.Context) (Object, error) {
	return get[Object](ctx, s.c, "/api/analysis/attack-types", nil)
}

func (s *AnalysisService) SecurityReport(ctx context.Context, startDate, endDate string) (Object, error) {
	body := map[string]string{"start_date": startDate, "end_date": endDate}
	return post[Object](ctx, s.c, "/api/analysis/security-report", body)
}
