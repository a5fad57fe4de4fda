// Package ops makes every workflow mutation a validated, auditable,
// serializable command. Operations are the single write path: nothing else
// mutates process, requirement, statement or assignment state.
package ops

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"nmflow/internal/domain"
	"nmflow/internal/engine"
	"nmflow/internal/notify"
	"nmflow/internal/repo"
	"nmflow/internal/rt"
)

// discriminator key naming the concrete operation in the wire format
const kindKey = "operation"

// ErrUnknownOperation is returned when a wire message names an operation kind
// that was never registered.
var ErrUnknownOperation = errors.New("unknown operation")

// Audit is the who/why/when every operation carries. Time defaults to the
// current time at construction; Notes may be synthesized from other fields
// and overridden exactly once.
type Audit struct {
	Author domain.Person
	Notes  string
	Time   time.Time

	notesProvided bool
}

// FillNotes sets Notes only when no value has been provided yet.
func (a *Audit) FillNotes(s string) {
	if a.notesProvided {
		return
	}
	a.Notes = s
	a.notesProvided = true
}

// Operation is one state-mutating command. Construction validates, Apply
// mutates inside the executor's transaction, Args round-trips the declared
// field values.
type Operation interface {
	Kind() string
	Audit() *Audit
	Fields() []Field
	Args() Args
	Decode(ctx context.Context, res *Resolver, a Args) error
	Apply(ctx context.Context, env *Env) error
}

// Notifying operations message the side channel after their transaction has
// committed.
type Notifying interface {
	Notify(ctx context.Context, n notify.Notifier) error
}

// operation is the embedded base carrying audit metadata.
type operation struct {
	audit Audit
}

func (o *operation) Audit() *Audit { return &o.audit }

// when is the audit timestamp in storage format.
func (o *operation) when() string {
	return o.audit.Time.UTC().Format(time.RFC3339)
}

var auditFields = []Field{
	{Name: "audit_author", Kind: KindPerson, Required: true},
	{Name: "audit_notes", Kind: KindString},
	{Name: "audit_time", Kind: KindDateTime},
}

func (o *operation) decodeAudit(ctx context.Context, res *Resolver, a Args) error {
	author, _, err := res.Person(ctx, a, "audit_author", true)
	if err != nil {
		return err
	}
	notes, err := res.String(a, "audit_notes", false)
	if err != nil {
		return err
	}
	t, err := res.DateTime(a, "audit_time", false, res.now())
	if err != nil {
		return err
	}
	o.audit = Audit{Author: author, Notes: notes, Time: t, notesProvided: notes != ""}
	return nil
}

func (o *operation) encodeAudit(a Args) {
	a["audit_author"] = o.audit.Author.Key()
	a["audit_notes"] = o.audit.Notes
	a["audit_time"] = formatWireTime(o.audit.Time)
}

// ── Registry ─────────────────────────────────────────────────────────────────

var registry = map[string]func() Operation{}

// Register maps a discriminator string to a constructor. Called from init
// functions; duplicate registration is a programming error.
func Register(kind string, fn func() Operation) {
	if _, dup := registry[kind]; dup {
		panic(fmt.Sprintf("ops: duplicate registration of %q", kind))
	}
	registry[kind] = fn
}

// New returns an empty operation of the given kind.
func New(kind string) (Operation, error) {
	fn, ok := registry[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownOperation, kind)
	}
	return fn(), nil
}

// Kinds lists the registered operation kinds.
func Kinds() []string {
	res := make([]string, 0, len(registry))
	for k := range registry {
		res = append(res, k)
	}
	return res
}

// ToJSON serializes the operation with its discriminator field.
func ToJSON(op Operation) ([]byte, error) {
	a := op.Args()
	a[kindKey] = op.Kind()
	return json.Marshal(a)
}

// FromJSON reconstructs an operation from its wire form, resolving references
// and validating every declared field.
func FromJSON(ctx context.Context, res *Resolver, data []byte) (Operation, error) {
	var raw map[string]any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode operation: %w", err)
	}
	kind, _ := raw[kindKey].(string)
	if kind == "" {
		return nil, fmt.Errorf("%w: missing %q field", ErrUnknownOperation, kindKey)
	}
	op, err := New(kind)
	if err != nil {
		return nil, err
	}
	delete(raw, kindKey)
	if err := op.Decode(ctx, res, Args(raw)); err != nil {
		return nil, err
	}
	return op, nil
}

// ── Execution ────────────────────────────────────────────────────────────────

// Env is what an operation's Apply sees: one open transaction plus the
// collaborators that may be consulted from inside it.
type Env struct {
	Tx     *sql.Tx
	Repo   repo.Repo
	Engine engine.Engine
	RT     *rt.Client
}

// appendLog writes one audit trail row stamped with the operation's audit
// metadata.
func (o *operation) appendLog(ctx context.Context, env *Env, processID, requirementID *int64, action string, public bool) error {
	_, err := env.Repo.AppendLogTx(ctx, env.Tx, domain.Log{
		ProcessID:     processID,
		RequirementID: requirementID,
		ChangedBy:     o.audit.Author.ID,
		IsPublic:      public,
		Action:        action,
		Text:          o.audit.Notes,
		Logdate:       o.when(),
	})
	return err
}

// Executor runs operations. The default executor is transactional; tests may
// substitute a Recorder to observe which operations call sites construct
// without performing side effects.
type Executor interface {
	Execute(ctx context.Context, op Operation) error
}

// TxExecutor wraps every Apply in exactly one all-or-nothing transaction and
// invokes Notify only after the transaction has committed.
type TxExecutor struct {
	DB       *sql.DB
	Engine   engine.Engine
	RT       *rt.Client
	Notifier notify.Notifier
	Log      zerolog.Logger
}

func (e *TxExecutor) Execute(ctx context.Context, op Operation) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	env := &Env{Tx: tx, Repo: e.Engine.Repo, Engine: e.Engine, RT: e.RT}
	if err := op.Apply(ctx, env); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	e.Log.Info().
		Str("operation", op.Kind()).
		Str("author", op.Audit().Author.Key()).
		Msg("operation executed")
	if n, ok := op.(Notifying); ok && e.Notifier != nil {
		// best-effort: committed state stays regardless of the outcome
		return n.Notify(ctx, e.Notifier)
	}
	return nil
}

// Recorder records operations instead of executing them.
type Recorder struct {
	mu  sync.Mutex
	Ops []Operation
}

func (r *Recorder) Execute(ctx context.Context, op Operation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Ops = append(r.Ops, op)
	return nil
}

// Reset clears the recorded operations.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Ops = nil
}
