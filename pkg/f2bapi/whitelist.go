package f2bapi

import (
	"context"
	"strconv"
)

type WhitelistService struct{ c Caller }

func (s *WhitelistService) List(ctx context.Context, q *QueryParams) (*Page[WhitelistEntry], error) {
	var out Page[WhitelistEntry]
	if err := s.c.Get(ctx, "/api/whitelist", q.Values(), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *WhitelistService) Add(ctx context.Context, ip, description string) (*WhitelistEntry, error) {
	var out WhitelistEntry
	if err := s.c.Post(ctx, "/api/whitelist", WhitelistInput{IP: ip, Description: description}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *WhitelistService) Remove(ctx context.Context, id int64) error {
	return s.c.Delete(ctx, "/api/whitelist/"+strconv.FormatInt(id, 10), nil, nil)
}

func (s *WhitelistService) Update(ctx context.Context, id int64, in WhitelistInput) (*WhitelistEntry, error) {
	var out WhitelistEntry
	if err := s.c.Put(ctx, "/api/whitelist/"+strconv.FormatInt(id, 10), in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *WhitelistService) BatchAdd(ctx context.Context, entries []WhitelistInput) error {
	return s.c.Post(ctx, "/api/whitelist/batch", map[string][]WhitelistInput{"entries": entries}, nil)
}
