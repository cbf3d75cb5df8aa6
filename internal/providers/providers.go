// Package providers maps provider JSON exports to access logs.
package providers

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	apperrors "github.com/kimhsiao/recordkit/internal/errors"
	"github.com/kimhsiao/recordkit/internal/models"
	"github.com/kimhsiao/recordkit/internal/sheet"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// Result is what a transformer extracted and where it should be written.
type Result struct {
	Users   []*models.UserAccessLogs
	OutDir  string
	Sheet   sheet.Options
	Message string
}

// Transformer converts one provider export into access logs.
type Transformer interface {
	Name() string
	Transform(path string) (*Result, error)
}

// ByName returns the transformer registered under name.
func ByName(name string) (Transformer, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "microsoft":
		return Microsoft{}, nil
	case "telegram":
		return Telegram{}, nil
	}
	return nil, apperrors.New(apperrors.ErrInvalid, fmt.Sprintf("unknown provider %q", name))
}

var (
	schemaMu sync.Mutex
	compiled = map[string]*jsonschema.Schema{}
)

func schema(name string) (*jsonschema.Schema, error) {
	schemaMu.Lock()
	defer schemaMu.Unlock()

	if s, ok := compiled[name]; ok {
		return s, nil
	}
	path := "schemas/" + name + ".schema.json"
	data, err := schemaFS.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(path, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	s, err := c.Compile(path)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	compiled[name] = s
	return s, nil
}

// decode validates the file at path against the named schema and then
// unmarshals it into v.
func decode(path, schemaName string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return apperrors.Wrap(apperrors.ErrNotFound, "file not found: "+path, err)
		}
		return apperrors.Wrap(apperrors.ErrInvalid, "failed to read "+path, err)
	}

	var instance interface{}
	if err := json.Unmarshal(data, &instance); err != nil {
		return apperrors.Wrap(apperrors.ErrValidation, "invalid json in "+path, err)
	}
	s, err := schema(schemaName)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInternal, "failed to load schema "+schemaName, err)
	}
	if err := s.Validate(instance); err != nil {
		return apperrors.Wrap(apperrors.ErrValidation, "unexpected "+schemaName+" export format in "+path, err)
	}

	if err := json.Unmarshal(data, v); err != nil {
		return apperrors.Wrap(apperrors.ErrValidation, "invalid json in "+path, err)
	}
	return nil
}

var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

// parseISO accepts ISO-8601 timestamps; values without an offset are UTC.
func parseISO(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
}
