package form

import "time"

// Kind tags the value union. Persisted and exported shapes are derived from
// the kind, never from runtime type sniffing.
type Kind int

const (
	KindString Kind = iota
	KindNumber
	KindBool
	KindDate
	KindRows
	KindImages
)

// Attachment is an image payload as held in memory and in exports. Inside
// persisted envelopes attachments are replaced by store keys.
type Attachment struct {
	Name string `json:"name"`
	MIME string `json:"mime"`
	// Data is the base64-encoded payload.
	Data string `json:"data"`
}

// Value is a tagged union of everything a form field can hold. Only the
// field matching Kind is meaningful.
type Value struct {
	Kind   Kind
	Str    string
	Num    float64
	Bool   bool
	Time   time.Time
	Rows   []Record
	Images []Attachment
}

func String(s string) Value          { return Value{Kind: KindString, Str: s} }
func Number(n float64) Value         { return Value{Kind: KindNumber, Num: n} }
func Bool(b bool) Value              { return Value{Kind: KindBool, Bool: b} }
func Date(t time.Time) Value         { return Value{Kind: KindDate, Time: t} }
func Rows(rows []Record) Value       { return Value{Kind: KindRows, Rows: rows} }
func Images(imgs []Attachment) Value { return Value{Kind: KindImages, Images: imgs} }

// selectEmpty is the placeholder select inputs submit before a real choice.
const selectEmpty = "none"

// HasData reports whether the value counts as provided. Arrays need at least
// one element that itself has data; numbers, booleans and valid dates always
// count; the select placeholder counts as empty.
func (v Value) HasData() bool {
	switch v.Kind {
	case KindString:
		return v.Str != "" && v.Str != selectEmpty
	case KindNumber, KindBool:
		return true
	case KindDate:
		return !v.Time.IsZero()
	case KindRows:
		for _, row := range v.Rows {
			if row.HasData() {
				return true
			}
		}
		return false
	case KindImages:
		for _, img := range v.Images {
			if img.Data != "" {
				return true
			}
		}
		return false
	}
	return false
}

// Clone deep-copies the value so callers can hand out snapshots.
func (v Value) Clone() Value {
	out := v
	if v.Rows != nil {
		out.Rows = make([]Record, len(v.Rows))
		for i, row := range v.Rows {
			out.Rows[i] = row.Clone()
		}
	}
	if v.Images != nil {
		out.Images = make([]Attachment, len(v.Images))
		copy(out.Images, v.Images)
	}
	return out
}

// Record maps field names to values. An absent key means "not yet provided",
// which is distinct from an explicitly cleared empty string.
type Record map[string]Value

// Clone deep-copies the record.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for name, v := range r {
		out[name] = v.Clone()
	}
	return out
}

// HasData reports whether any field in the record has data.
func (r Record) HasData() bool {
	for _, v := range r {
		if v.HasData() {
			return true
		}
	}
	return false
}

// Str returns the string content of a field, or "" when absent or non-string.
func (r Record) Str(name string) string {
	v, ok := r[name]
	if !ok || v.Kind != KindString {
		return ""
	}
	return v.Str
}

// Flag returns the boolean content of a field, false when absent or non-bool.
func (r Record) Flag(name string) bool {
	v, ok := r[name]
	if !ok || v.Kind != KindBool {
		return false
	}
	return v.Bool
}
