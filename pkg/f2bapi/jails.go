package f2bapi

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

type JailService struct{ c Caller }

func (s *JailService) List(ctx context.Context) ([]JailConfig, error) {
	return get[[]JailConfig](ctx, s.c, "/api/jails", nil)
}

func (s *JailService) Get(ctx context.Context, name string) (*JailConfig, error) {
	var out JailConfig
	if err := s.c.Get(ctx, "/api/jails/"+seg(name), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Update validates upd locally before sending it, so obviously broken
// thresholds never reach fail2ban.
func (s *JailService) Update(ctx context.Context, name string, upd JailUpdate) error {
	if err := ValidateJailUpdate(upd); err != nil {
		return err
	}
	return s.c.Put(ctx, "/api/jails/"+seg(name), upd, nil)
}

func (s *JailService) Toggle(ctx context.Context, name string, enabled bool) error {
	return s.c.Post(ctx, "/api/jails/"+seg(name)+"/toggle", map[string]bool{"enabled": enabled}, nil)
}

func (s *JailService) Restart(ctx context.Context, name string) error {
	return s.c.Post(ctx, "/api/jails/"+seg(name)+"/restart", nil, nil)
}

func (s *JailService) Status(ctx context.Context, name string) (Object, error) {
	return get[Object](ctx, s.c, "/api/jails/"+seg(name)+"/status", nil)
}

// bantime -1 is fail2ban's permanent ban.
const jailUpdateSchema = `{
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "enabled":  {"type": "boolean"},
    "filter":   {"type": "string", "minLength": 1, "pattern": "^[A-Za-z0-9_.-]+(\\[.*\\])?$"},
    "logpath":  {"type": "string", "minLength": 1},
    "maxretry": {"type": "integer", "minimum": 1, "maximum": 1000},
    "findtime": {"type": "integer", "minimum": 1},
    "bantime":  {"type": "integer", "minimum": -1, "not": {"enum": [0]}},
    "backend":  {"type": "string", "enum": ["auto", "pyinotify", "gamin", "polling", "systemd"]},
    "action":   {"type": "string"}
  }
}`

var (
	schemaOnce sync.Once
	schema     *gojsonschema.Schema
	schemaErr  error
)

func jailSchema() (*gojsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = gojsonschema.NewSchema(gojsonschema.NewStringLoader(jailUpdateSchema))
	})
	return schema, schemaErr
}

// ValidationError lists the fields a jail update was rejected for.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid jail settings: " + strings.Join(e.Problems, "; ")
}

func ValidateJailUpdate(upd JailUpdate) error {
	sch, err := jailSchema()
	if err != nil {
		return fmt.Errorf("f2bapi: jail schema: %w", err)
	}
	doc, err := json.Marshal(upd)
	if err != nil {
		return err
	}
	res, err := sch.Validate(gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return fmt.Errorf("f2bapi: validate jail update: %w", err)
	}
	if res.Valid() {
		return nil
	}
	ve := &ValidationError{}
	for _, re := range res.Errors() {
		ve.Problems = append(ve.Problems, re.Field()+": "+re.Description())
	}
	return ve
}
