package form

import (
	"fmt"
	"strings"

	"intake/internal/birthnumber"
)

// ErrorKind classifies a field error.
type ErrorKind string

const (
	ErrRequired ErrorKind = "required"
	ErrFormat   ErrorKind = "format"
	ErrCustom   ErrorKind = "custom"
)

// FieldError is one validation failure. Path uses dotted index notation for
// repeating-group members: group.index.field.
type FieldError struct {
	Path    string    `json:"path"`
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

// Result aggregates field errors for one validation pass. Errors are derived
// state; they are never written back into the record.
type Result struct {
	FieldErrors map[string][]FieldError `json:"fieldErrors"`
}

// Valid reports whether the pass produced no errors.
func (r Result) Valid() bool { return len(r.FieldErrors) == 0 }

// HasError reports whether the given path (or any row under it) failed.
func (r Result) HasError(path string) bool {
	if _, ok := r.FieldErrors[path]; ok {
		return true
	}
	prefix := path + "."
	for p := range r.FieldErrors {
		if strings.HasPrefix(p, prefix) {
			return true
		}
	}
	return false
}

func (r *Result) add(path string, kind ErrorKind, message string) {
	if r.FieldErrors == nil {
		r.FieldErrors = map[string][]FieldError{}
	}
	r.FieldErrors[path] = append(r.FieldErrors[path], FieldError{Path: path, Kind: kind, Message: message})
}

// Schema validates records against the static field registry. The message
// lookup is injected at construction and affects text only, never logic.
type Schema struct {
	lookup func(key string) string
}

// SchemaOption configures NewSchema.
type SchemaOption func(*Schema)

// WithMessages supplies the translation lookup for error text.
func WithMessages(lookup func(key string) string) SchemaOption {
	return func(s *Schema) { s.lookup = lookup }
}

// NewSchema builds the validator.
func NewSchema(opts ...SchemaOption) *Schema {
	s := &Schema{}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

var defaultErrorMessages = map[string]string{
	"error.required":   "this field is required",
	"error.type":       "unexpected value type",
	"error.min_length": "value is too short",
	"error.format":     "value has the wrong format",
	"error.enum":       "value is not one of the allowed options",
	"error.range":      "value is out of range",
	"error.date_order": "the from date must not be after the to date",
}

func (s *Schema) msg(key string) string {
	if s.lookup != nil {
		if m := s.lookup(key); m != "" {
			return m
		}
	}
	return defaultErrorMessages[key]
}

// Validate runs every per-field rule plus the cross-field refinements over a
// record snapshot. Running it twice on the same record yields identical
// results; it never panics on malformed values.
func (s *Schema) Validate(r Record) Result {
	var res Result
	for _, spec := range fieldSpecs {
		s.validateField(&res, r, spec, spec.Name)
	}
	s.crossField(&res, r)
	return res
}

// ValidateFields validates only the named fields (used for per-section
// validation on navigation). Cross-field refinements run when all their
// referenced fields are included.
func (s *Schema) ValidateFields(r Record, names []string) Result {
	var res Result
	included := map[string]bool{}
	for _, name := range names {
		included[name] = true
		if spec, ok := specByName[name]; ok {
			s.validateField(&res, r, spec, name)
		}
	}
	if included[FieldBirthNumber] {
		s.checkBirthNumber(&res, r)
	}
	if included[FieldLastJobFrom] && included[FieldLastJobTo] {
		s.checkJobDates(&res, r)
	}
	return res
}

func (s *Schema) validateField(res *Result, r Record, spec FieldSpec, path string) {
	if !Visible(spec.Name, r) {
		return
	}

	v, present := r[spec.Name]
	if !present || !v.HasData() {
		if RequiredNow(spec.Name, r) {
			res.add(path, ErrRequired, s.msg("error.required"))
		}
		return
	}

	if v.Kind != spec.Kind {
		res.add(path, ErrFormat, s.msg("error.type"))
		return
	}

	switch spec.Kind {
	case KindString:
		s.checkString(res, spec, path, v.Str)
	case KindNumber:
		if spec.Min != nil && v.Num < *spec.Min || spec.Max != nil && v.Num > *spec.Max {
			res.add(path, ErrFormat, s.msg("error.range"))
		}
	case KindRows:
		s.validateRows(res, spec, path, v.Rows)
	}
}

func (s *Schema) checkString(res *Result, spec FieldSpec, path, value string) {
	if spec.MinLen > 0 && len([]rune(value)) < spec.MinLen {
		res.add(path, ErrFormat, s.msg("error.min_length"))
		return
	}
	if spec.Pattern != nil && !spec.Pattern.MatchString(value) {
		res.add(path, ErrFormat, s.msg("error.format"))
		return
	}
	if len(spec.Options) > 0 && !contains(spec.Options, value) {
		res.add(path, ErrFormat, s.msg("error.enum"))
	}
}

// validateRows checks each repeating-group row independently. Rows with no
// data at all are skipped; a partially filled row must satisfy its member
// rules.
func (s *Schema) validateRows(res *Result, spec FieldSpec, path string, rows []Record) {
	for i, row := range rows {
		if !row.HasData() {
			continue
		}
		for _, sub := range spec.Row {
			subPath := fmt.Sprintf("%s.%d.%s", path, i, sub.Name)
			v, present := row[sub.Name]
			if !present || !v.HasData() {
				if sub.Required {
					res.add(subPath, ErrRequired, s.msg("error.required"))
				}
				continue
			}
			if v.Kind != sub.Kind {
				res.add(subPath, ErrFormat, s.msg("error.type"))
				continue
			}
			if sub.Kind == KindString {
				s.checkString(res, sub, subPath, v.Str)
			}
		}
	}
}

// crossField holds the refinements that read more than one field. They run
// only when the referenced fields individually passed, so a user never sees a
// consistency error on top of a format error.
func (s *Schema) crossField(res *Result, r Record) {
	s.checkBirthNumber(res, r)
	s.checkJobDates(res, r)
}

func (s *Schema) checkBirthNumber(res *Result, r Record) {
	if res.HasError(FieldBirthNumber) || res.HasError(FieldBirthDate) || res.HasError(FieldSex) {
		return
	}
	number := r.Str(FieldBirthNumber)
	if number == "" {
		return
	}

	opts := []birthnumber.Option{}
	if s.lookup != nil {
		opts = append(opts, birthnumber.WithMessages(s.lookup))
	}
	if bd, ok := r[FieldBirthDate]; ok && bd.Kind == KindDate && !bd.Time.IsZero() {
		opts = append(opts, birthnumber.WithBirthDate(bd.Time))
	}
	if sex := r.Str(FieldSex); sex == "male" || sex == "female" {
		opts = append(opts, birthnumber.WithSex(birthnumber.Sex(sex)))
	}

	result := birthnumber.Validate(number, opts...)
	if result.Valid {
		return
	}
	kind := ErrCustom
	if result.Kind == birthnumber.KindFormat {
		kind = ErrFormat
	}
	res.add(FieldBirthNumber, kind, result.Message)
}

func (s *Schema) checkJobDates(res *Result, r Record) {
	if !Visible(FieldLastJobFrom, r) || res.HasError(FieldLastJobFrom) || res.HasError(FieldLastJobTo) {
		return
	}
	from, okFrom := r[FieldLastJobFrom]
	to, okTo := r[FieldLastJobTo]
	if !okFrom || !okTo || from.Kind != KindDate || to.Kind != KindDate {
		return
	}
	if from.Time.IsZero() || to.Time.IsZero() {
		return
	}
	if from.Time.After(to.Time) {
		res.add(FieldLastJobFrom, ErrCustom, s.msg("error.date_order"))
	}
}

func contains(options []string, value string) bool {
	for _, o := range options {
		if o == value {
			return true
		}
	}
	return false
}
