// Package f2bapi groups the fail2ban-web domain endpoints into typed call
// sets. Each method is a thin pass-through to the API client.
package f2bapi

import (
	"context"
	"net/url"
)

// Caller is the part of apiclient.Client the facades need.
type Caller interface {
	Get(ctx context.Context, path string, query url.Values, out any) error
	Post(ctx context.Context, path string, body, out any) error
	Put(ctx context.Context, path string, body, out any) error
	Patch(ctx context.Context, path string, body, out any) error
	Delete(ctx context.Context, path string, query url.Values, out any) error
}

// Object is used where the backend response has no fixed shape.
type Object = map[string]any

type API struct {
	Stats     *StatsService
	IPs       *IPService
	Jails     *JailService
	Logs      *LogService
	Whitelist *WhitelistService
	Analysis  *AnalysisService
	System    *SystemService
}

func New(c Caller) *API {
	return &API{
		Stats:     &StatsService{c: c},
		IPs:       &IPService{c: c},
		Jails:     &JailService{c: c},
		Logs:      &LogService{c: c},
		Whitelist: &WhitelistService{c: c},
		Analysis:  &AnalysisService{c: c},
		System:    &SystemService{c: c},
	}
}

func seg(s string) string { return url.PathEscape(s) }

func get[T any](ctx context.Context, c Caller, path string, q url.Values) (T, error) {
	var out T
	err := c.Get(ctx, path, q, &out)
	return out, err
}

func post[T any](ctx context.Context, c Caller, path string, body any) (T, error) {
	var out T
	err := c.Post(ctx, path, body, &out)
	return out, err
}
