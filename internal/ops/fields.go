package ops

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"nmflow/internal/domain"
	"nmflow/internal/repo"
)

// Wire formats: naive UTC, no timezone suffix.
const (
	DateFormat     = "2006-01-02"
	DateTimeFormat = "2006-01-02 15:04:05"
)

// ValidationError names the operation field that failed validation. It is
// raised at construction, before any mutation.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("field %s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Err: fmt.Errorf(format, args...)}
}

var errRequired = errors.New("required field missing")

// FieldKind is the semantic type of a declared operation field.
type FieldKind int

const (
	KindString FieldKind = iota
	KindBool
	KindDate
	KindDateTime
	KindStatus
	KindPerson
	KindProcess
	KindRequirement
	KindStatement
	KindAssignment
)

// Field declares one named, typed operation parameter. The declaration is a
// static schema built once at definition time; Decode consults it through the
// typed accessors below.
type Field struct {
	Name     string
	Kind     FieldKind
	Required bool
}

// Args is the wire representation of an operation's field values.
type Args map[string]any

// Resolver converts wire values into validated domain values, resolving
// entity references by natural key.
type Resolver struct {
	Repo repo.Repo
	Now  func() time.Time
}

func (r *Resolver) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

// String extracts a string field. Missing optional fields yield "".
func (r *Resolver) String(a Args, name string, required bool) (string, error) {
	v, ok := a[name]
	if !ok || v == nil {
		if required {
			return "", &ValidationError{Field: name, Err: errRequired}
		}
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", invalid(name, "expected string, got %T", v)
	}
	if required && s == "" {
		return "", &ValidationError{Field: name, Err: errRequired}
	}
	return s, nil
}

func (r *Resolver) Bool(a Args, name string, def bool) (bool, error) {
	v, ok := a[name]
	if !ok || v == nil {
		return def, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, invalid(name, "expected bool, got %T", v)
	}
	return b, nil
}

// ID extracts a numeric reference. JSON numbers arrive as json.Number when
// decoded through FromJSON; plain ints are accepted for in-process callers.
func (r *Resolver) ID(a Args, name string, required bool) (int64, error) {
	v, ok := a[name]
	if !ok || v == nil {
		if required {
			return 0, &ValidationError{Field: name, Err: errRequired}
		}
		return 0, nil
	}
	switch n := v.(type) {
	case json.Number:
		id, err := n.Int64()
		if err != nil {
			return 0, invalid(name, "invalid id %q", n.String())
		}
		return id, nil
	case float64:
		return int64(n), nil
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case string:
		id, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		if err != nil {
			return 0, invalid(name, "invalid id %q", n)
		}
		return id, nil
	}
	return 0, invalid(name, "expected numeric id, got %T", v)
}

// Status extracts an enum-constrained membership status.
func (r *Resolver) Status(a Args, name string, required bool, def domain.Status) (domain.Status, error) {
	s, err := r.String(a, name, required)
	if err != nil {
		return "", err
	}
	if s == "" {
		return def, nil
	}
	st := domain.Status(s)
	if !st.Valid() {
		return "", invalid(name, "unknown status %q", s)
	}
	return st, nil
}

// DateTime extracts a datetime; missing optional values yield def.
func (r *Resolver) DateTime(a Args, name string, required bool, def time.Time) (time.Time, error) {
	s, err := r.String(a, name, required)
	if err != nil {
		return time.Time{}, err
	}
	if s == "" {
		return def, nil
	}
	t, err := time.ParseInLocation(DateTimeFormat, s, time.UTC)
	if err != nil {
		// dates are accepted where datetimes are declared, midnight implied
		t, err = time.ParseInLocation(DateFormat, s, time.UTC)
		if err != nil {
			return time.Time{}, invalid(name, "invalid datetime %q", s)
		}
	}
	return t, nil
}

// Person resolves a person reference by email, uid or fingerprint.
func (r *Resolver) Person(ctx context.Context, a Args, name string, required bool) (domain.Person, bool, error) {
	key, err := r.String(a, name, required)
	if err != nil {
		return domain.Person{}, false, err
	}
	if key == "" {
		return domain.Person{}, false, nil
	}
	p, err := r.Repo.PersonByKey(ctx, key)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.Person{}, false, invalid(name, "no person with key %q", key)
		}
		return domain.Person{}, false, err
	}
	return p, true, nil
}

// Process resolves a process reference by numeric id.
func (r *Resolver) Process(ctx context.Context, a Args, name string) (domain.Process, error) {
	id, err := r.ID(a, name, true)
	if err != nil {
		return domain.Process{}, err
	}
	p, err := r.Repo.GetProcess(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.Process{}, invalid(name, "no process %d", id)
		}
		return domain.Process{}, err
	}
	return p, nil
}

func (r *Resolver) Requirement(ctx context.Context, a Args, name string) (domain.Requirement, error) {
	id, err := r.ID(a, name, true)
	if err != nil {
		return domain.Requirement{}, err
	}
	rq, err := r.Repo.GetRequirement(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.Requirement{}, invalid(name, "no requirement %d", id)
		}
		return domain.Requirement{}, err
	}
	return rq, nil
}

func (r *Resolver) Statement(ctx context.Context, a Args, name string) (domain.Statement, error) {
	id, err := r.ID(a, name, true)
	if err != nil {
		return domain.Statement{}, err
	}
	s, err := r.Repo.GetStatement(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.Statement{}, invalid(name, "no statement %d", id)
		}
		return domain.Statement{}, err
	}
	return s, nil
}

func (r *Resolver) Assignment(ctx context.Context, a Args, name string) (domain.AMAssignment, error) {
	id, err := r.ID(a, name, true)
	if err != nil {
		return domain.AMAssignment{}, err
	}
	as, err := r.Repo.GetAssignment(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.AMAssignment{}, invalid(name, "no assignment %d", id)
		}
		return domain.AMAssignment{}, err
	}
	return as, nil
}

func formatWireTime(t time.Time) string {
	return t.UTC().Format(DateTimeFormat)
}
