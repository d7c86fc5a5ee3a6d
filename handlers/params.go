package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pitabwire/tenantkit/security/interceptors/httptor"
)

const maxBodyBytes = 1 << 20

// FieldErrors collects per field validation failures for a VAL_001 response.
type FieldErrors map[string]string

// Add records msg against field.
func (f FieldErrors) Add(field, msg string) {
	f[field] = msg
}

// Err returns nil when no field failed.
func (f FieldErrors) Err() error {
	if len(f) == 0 {
		return nil
	}
	return httptor.Validation(f)
}

// DecodeJSON reads a single JSON document from the request body into v.
func DecodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return httptor.BadRequest("request body is required")
		}
		return httptor.BadRequest("request body is not valid JSON")
	}
	return nil
}

// URLParamUUID parses the named chi route parameter as a UUID.
func URLParamUUID(r *http.Request, name string) (uuid.UUID, error) {
	raw := chi.URLParam(r, name)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, httptor.BadRequest("invalid " + name + ": " + raw)
	}
	return id, nil
}

// Query wraps URL query values with typed readers. Each reader returns ok=false when the
// parameter is absent and a BR_001 error when it is present but malformed.
type Query struct {
	values map[string][]string
}

func NewQuery(r *http.Request) Query {
	return Query{values: r.URL.Query()}
}

func (q Query) raw(name string) (string, bool) {
	vals, ok := q.values[name]
	if !ok || len(vals) == 0 {
		return "", false
	}
	v := strings.TrimSpace(vals[0])
	return v, v != ""
}

func (q Query) Text(name string) (string, bool) {
	return q.raw(name)
}

func (q Query) Bool(name string) (bool, bool, error) {
	v, ok := q.raw(name)
	if !ok {
		return false, false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, false, httptor.BadRequest(name + " must be true or false")
	}
	return b, true, nil
}

func (q Query) Int(name string) (int64, bool, error) {
	v, ok := q.raw(name)
	if !ok {
		return 0, false, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, false, httptor.BadRequest(name + " must be an integer")
	}
	return n, true, nil
}

func (q Query) UUID(name string) (uuid.UUID, bool, error) {
	v, ok := q.raw(name)
	if !ok {
		return uuid.Nil, false, nil
	}
	id, err := uuid.Parse(v)
	if err != nil {
		return uuid.Nil, false, httptor.BadRequest(name + " must be a UUID")
	}
	return id, true, nil
}

func (q Query) Decimal(name string) (*decimal.Decimal, error) {
	v, ok := q.raw(name)
	if !ok {
		return nil, nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return nil, httptor.BadRequest(name + " must be a number")
	}
	return &d, nil
}

// List splits a comma separated parameter, dropping blanks.
func (q Query) List(name string) []string {
	v, ok := q.raw(name)
	if !ok {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// UUIDList is List with every element parsed as a UUID.
func (q Query) UUIDList(name string) ([]uuid.UUID, error) {
	parts := q.List(name)
	if len(parts) == 0 {
		return nil, nil
	}
	ids := make([]uuid.UUID, 0, len(parts))
	for _, part := range parts {
		id, err := uuid.Parse(part)
		if err != nil {
			return nil, httptor.BadRequest(name + " must be a comma separated list of UUIDs")
		}
		ids = append(ids, id)
	}
	return ids, nil
}
