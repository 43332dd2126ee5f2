package session

import (
	"context"
	"log/slog"
	"sync"

	"intake/internal/audit"
	"intake/internal/form"
	"intake/internal/persist"
	dErrors "intake/pkg/domainerrors"
)

//go:generate mockgen -source=controller.go -destination=mocks/mocks.go -package=mocks Persistence,Transport

// Persistence is the engine surface the controller depends on.
type Persistence interface {
	Load(ctx context.Context, code string) (form.Record, error)
	Save(ctx context.Context, code string, r form.Record) error
	Delete(ctx context.Context, code string) error
	LastCode(ctx context.Context) (string, error)
}

// Transport delivers a finished submission to the receiving system. It gets
// the resolved payload and the access code; it may return field-scoped server
// errors keyed by field name.
type Transport interface {
	Submit(ctx context.Context, code string, payload []byte) (map[string]string, error)
}

// Controller owns the live record and mediates every mutation. All other
// components see read-only snapshots. Operations are serialized by the mutex;
// the suppress flag keeps field-level auto-save out of bulk operations
// (code switch, import, clear).
type Controller struct {
	mu       sync.Mutex
	record   form.Record
	suppress bool

	engine    Persistence
	schema    *form.Schema
	navigator *form.Navigator
	auditor   *audit.Publisher
	transport Transport
	logger    *slog.Logger
}

// ControllerOption configures optional collaborators.
type ControllerOption func(*Controller)

// WithAuditPublisher attaches the audit trail.
func WithAuditPublisher(p *audit.Publisher) ControllerOption {
	return func(c *Controller) { c.auditor = p }
}

// WithTransport attaches the submission transport.
func WithTransport(t Transport) ControllerOption {
	return func(c *Controller) { c.transport = t }
}

// WithSchema overrides the default validation schema, used to inject a
// message lookup.
func WithSchema(schema *form.Schema) ControllerOption {
	return func(c *Controller) { c.schema = schema }
}

func NewController(engine Persistence, logger *slog.Logger, opts ...ControllerOption) *Controller {
	c := &Controller{
		record: form.Empty(),
		engine: engine,
		schema: form.NewSchema(),
		logger: logger,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	c.navigator = form.NewNavigator(c.schema)
	return c
}

// State is an atomic read of the session: the record under one code together
// with validation, progress, and the section summary, all derived from the
// same snapshot.
type State struct {
	Code     string
	Record   form.Record
	Errors   map[string][]form.FieldError
	Progress int
	Sections []form.SectionState
}

// Valid reports whether the snapshot passed full validation.
func (s State) Valid() bool { return len(s.Errors) == 0 }

// Code returns the active access code, possibly empty.
func (c *Controller) Code() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.record.Str(form.FieldAccessCode)
}

// Snapshot returns a deep copy of the live record. Callers derive validation
// and progress from snapshots, never from the live map.
func (c *Controller) Snapshot() form.Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.record.Clone()
}

// SetField writes one field and triggers the auto-save rule: persist when the
// code has valid length and at least one non-code field holds data. The
// access code itself is not set here; code changes go through LoadForCode.
func (c *Controller) SetField(ctx context.Context, name string, v form.Value) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if name == form.FieldAccessCode {
		return
	}
	c.record[name] = v
	c.autoSave(ctx)
}

// SetFields applies a batch of field writes with a single save at the end.
func (c *Controller) SetFields(ctx context.Context, fields form.Record) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for name, v := range fields {
		if name == form.FieldAccessCode {
			continue
		}
		c.record[name] = v
	}
	c.autoSave(ctx)
}

// autoSave persists best-effort. Callers hold the mutex.
func (c *Controller) autoSave(ctx context.Context) {
	if c.suppress {
		return
	}
	code := c.record.Str(form.FieldAccessCode)
	if !form.CodeOK(code) || !c.hasContent() {
		return
	}
	c.persist(ctx, code)
}

// persist writes the record under the code, excluding the code field itself.
// Storage failures are logged and swallowed; memory stays authoritative.
func (c *Controller) persist(ctx context.Context, code string) {
	snapshot := c.record.Clone()
	delete(snapshot, form.FieldAccessCode)
	if err := c.engine.Save(ctx, code, snapshot); err != nil {
		c.logger.WarnContext(ctx, "save failed, keeping in-memory state", "code", code, "error", err)
		return
	}
	c.emit(ctx, audit.Event{Code: code, Action: audit.ActionRecordSaved})
}

// hasContent reports whether any non-code field holds data. Callers hold the
// mutex.
func (c *Controller) hasContent() bool {
	for name, v := range c.record {
		if name == form.FieldAccessCode {
			continue
		}
		if v.HasData() {
			return true
		}
	}
	return false
}

// LoadForCode switches the session to another access code. The outgoing
// record is persisted first when it holds data, then the whole record is
// replaced by whatever is stored under the new code, or reset to empty with
// just the new code when nothing is stored. Auto-save is suppressed for the
// whole span.
func (c *Controller) LoadForCode(ctx context.Context, newCode string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.switchLocked(ctx, newCode)
}

// activateLocked makes code the active one, switching only when it differs.
// A redundant switch would reload from storage and discard unsaved fields.
// Callers hold the mutex.
func (c *Controller) activateLocked(ctx context.Context, code string) {
	if c.record.Str(form.FieldAccessCode) != code {
		c.switchLocked(ctx, code)
	}
}

func (c *Controller) switchLocked(ctx context.Context, newCode string) {
	c.suppress = true
	defer func() { c.suppress = false }()

	oldCode := c.record.Str(form.FieldAccessCode)
	if form.CodeOK(oldCode) && oldCode != newCode && c.hasContent() {
		c.persist(ctx, oldCode)
	}

	loaded := form.Empty()
	if form.CodeOK(newCode) {
		r, err := c.engine.Load(ctx, newCode)
		if err != nil {
			c.logger.WarnContext(ctx, "load failed, starting empty", "code", newCode, "error", err)
		} else {
			loaded = r
		}
	}
	loaded[form.FieldAccessCode] = form.String(newCode)
	c.record = loaded

	if oldCode != newCode {
		c.emit(ctx, audit.Event{Code: newCode, Action: audit.ActionCodeSwitched, Detail: "from=" + oldCode})
	}
	c.emit(ctx, audit.Event{Code: newCode, Action: audit.ActionRecordLoaded})
}

// stateLocked derives the client-facing state from one snapshot of the live
// record. Callers hold the mutex.
func (c *Controller) stateLocked() State {
	snapshot := c.record.Clone()
	res := c.schema.Validate(snapshot)
	return State{
		Code:     snapshot.Str(form.FieldAccessCode),
		Record:   snapshot,
		Errors:   res.FieldErrors,
		Progress: c.navigator.Progress(snapshot, res),
		Sections: c.navigator.SectionStates(snapshot, res),
	}
}

// View activates the code and reads the session state in one step.
func (c *Controller) View(ctx context.Context, code string) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.activateLocked(ctx, code)
	return c.stateLocked()
}

// Apply activates the code and writes a batch of fields as one atomic step.
// Requests for different codes cannot interleave here, so fields always land
// under the code of the request that carried them.
func (c *Controller) Apply(ctx context.Context, code string, fields form.Record) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.activateLocked(ctx, code)
	for name, v := range fields {
		if name == form.FieldAccessCode {
			continue
		}
		c.record[name] = v
	}
	c.autoSave(ctx)
	return c.stateLocked()
}

// Clear activates the code, resets every field except the access code, and
// deletes the stored envelope. Attachments are left for the next sweep.
func (c *Controller) Clear(ctx context.Context, code string) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.activateLocked(ctx, code)
	c.suppress = true
	defer func() { c.suppress = false }()

	c.record = form.Empty()
	c.record[form.FieldAccessCode] = form.String(code)

	if form.CodeOK(code) {
		if err := c.engine.Delete(ctx, code); err != nil {
			c.logger.WarnContext(ctx, "delete failed during clear", "code", code, "error", err)
		}
	}
	c.emit(ctx, audit.Event{Code: code, Action: audit.ActionRecordCleared})
	return c.stateLocked()
}

// Import activates the code and replaces every field from a portable
// document except the access code, then persists.
func (c *Controller) Import(ctx context.Context, code string, data []byte) (State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	incoming, err := persist.UnmarshalPortable(data)
	if err != nil {
		return State{}, err
	}
	c.activateLocked(ctx, code)

	c.suppress = true
	defer func() { c.suppress = false }()

	delete(incoming, form.FieldAccessCode)
	incoming[form.FieldAccessCode] = form.String(code)
	c.record = incoming

	if form.CodeOK(code) && c.hasContent() {
		c.persist(ctx, code)
	}
	c.emit(ctx, audit.Event{Code: code, Action: audit.ActionRecordImported})
	return c.stateLocked(), nil
}

// Export activates the code and renders its record as a portable JSON
// document with inline image payloads and ISO dates. The access code is a
// session secret and is never part of the export.
func (c *Controller) Export(ctx context.Context, code string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.activateLocked(ctx, code)

	snapshot := c.record.Clone()
	delete(snapshot, form.FieldAccessCode)

	data, err := persist.MarshalPortable(snapshot, persist.ExportDateLayout)
	if err != nil {
		return nil, err
	}
	c.emit(ctx, audit.Event{Code: code, Action: audit.ActionRecordExported})
	return data, nil
}

// Submission activates the code and builds the resolved payload the
// submission transport expects: inline image payloads and timezone-free
// dates, with the access code alongside rather than inside.
func (c *Controller) Submission(ctx context.Context, code string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.activateLocked(ctx, code)
	return c.submissionLocked(ctx, code)
}

// submissionLocked marshals the current record for submission. Callers hold
// the mutex.
func (c *Controller) submissionLocked(ctx context.Context, code string) ([]byte, error) {
	snapshot := c.record.Clone()
	delete(snapshot, form.FieldAccessCode)

	payload, err := persist.MarshalPortable(snapshot, persist.SubmissionDateLayout)
	if err != nil {
		return nil, err
	}
	c.emit(ctx, audit.Event{Code: code, Action: audit.ActionSubmission})
	return payload, nil
}

// Submit activates the code, gates on full validity, and hands the payload
// to the transport. The returned state and the submitted payload come from
// the same snapshot; when the state is invalid nothing is submitted.
// Server-side field errors come back keyed by field name.
func (c *Controller) Submit(ctx context.Context, code string) (State, map[string]string, error) {
	if c.transport == nil {
		return State{}, nil, dErrors.New(dErrors.CodeUnavailable, "no submission transport configured")
	}

	c.mu.Lock()
	c.activateLocked(ctx, code)
	st := c.stateLocked()
	if !st.Valid() {
		c.mu.Unlock()
		return st, nil, nil
	}
	payload, err := c.submissionLocked(ctx, code)
	c.mu.Unlock()
	if err != nil {
		return st, nil, err
	}

	serverErrors, err := c.transport.Submit(ctx, code, payload)
	return st, serverErrors, err
}

// ValidateRecord runs the session's schema, with its configured message
// lookup, over an arbitrary record. The session itself is not touched.
func (c *Controller) ValidateRecord(r form.Record) form.Result {
	return c.schema.Validate(r)
}

// LastCode returns the most recently persisted code, "" when none.
func (c *Controller) LastCode(ctx context.Context) (string, error) {
	return c.engine.LastCode(ctx)
}

// emit records an audit event, best-effort. Callers may hold the mutex.
func (c *Controller) emit(ctx context.Context, ev audit.Event) {
	if c.auditor == nil {
		return
	}
	if err := c.auditor.Emit(ctx, ev); err != nil {
		c.logger.WarnContext(ctx, "audit emit failed", "action", string(ev.Action), "error", err)
	}
}
