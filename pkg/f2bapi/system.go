package f2bapi

import "context"

type SystemService struct{ c Caller }

func (s *SystemService) Info(ctx context.Context) (Object, error) {
	return get[Object](ctx, s.c, "/api/system/info", nil)
}

func (s *SystemService) Config(ctx context.Context) (*SystemConfig, error) {
	var out SystemConfig
	if err := s.c.Get(ctx, "/api/system/config", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *SystemService) UpdateConfig(ctx context.Context, cfg SystemConfig) error {
	return s.c.Put(ctx, "/api/system/config", cfg, nil)
}

func (s *SystemService) Restart(ctx context.Context) error {
	return s.c.Post(ctx, "/api/system/restart", nil, nil)
}

func (s *SystemService) Status(ctx context.Context) (Object, error) {
	return get[Object](ctx, s.c, "/api/system/status", nil)
}

func (s *SystemService) TestConfig(ctx context.Context) (Object, error) {
	return post[Object](ctx, s.c, "/api/system/test-config", nil)
}
