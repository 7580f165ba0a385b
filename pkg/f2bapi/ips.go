package f2bapi

import "context"

type IPService struct{ c Caller }

func (s *IPService) Banned(ctx context.Context, q *QueryParams) (*Page[BannedIP], error) {
	var out Page[BannedIP]
	if err := s.c.Get(ctx, "/api/banned-ips", q.Values(), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *IPService) Details(ctx context.Context, ip string) (*BannedIP, error) {
	var out BannedIP
	if err := s.c.Get(ctx, "/api/banned-ips/"+seg(ip), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *IPService) Unban(ctx context.Context, ip string) error {
	return s.c.Post(ctx, "/api/banned-ips/"+seg(ip)+"/unban", nil, nil)
}

// Ban blocks ip in jail; banTime in seconds, 0 leaves the jail default.
func (s *IPService) Ban(ctx context.Context, ip, jail string, banTime int) error {
	body := struct {
		IP      string `json:"ip"`
		Jail    string `json:"jail"`
		BanTime int    `json:"ban_time,omitempty"`
	}{ip, jail, banTime}
	return s.c.Post(ctx, "/api/banned-ips/ban", body, nil)
}

func (s *IPService) BatchUnban(ctx context.Context, ips []string) error {
	return s.c.Post(ctx, "/api/banned-ips/batch-unban", map[string][]string{"ips": ips}, nil)
}
