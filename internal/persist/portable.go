package persist

import (
	"encoding/json"
	"fmt"

	"intake/internal/form"
)

// Portable marshaling backs import/export and the submission shape. Unlike
// envelopes, portable documents carry image payloads inline so they work
// outside this deployment's storage.

// ExportDateLayout is used for files the user downloads and re-imports.
const ExportDateLayout = dateLayoutISO

// SubmissionDateLayout is the timezone-free form the submission transport
// expects.
const SubmissionDateLayout = dateLayoutPlain

// MarshalPortable renders a record as one JSON object: dates as strings in
// the given layout, repeating groups as object arrays, images as inline
// payload arrays.
func MarshalPortable(r form.Record, dateLayout string) ([]byte, error) {
	out := make(map[string]any, len(r))
	for name, v := range r {
		pv, err := portableValue(v, dateLayout)
		if err != nil {
			return nil, fmt.Errorf("export field %s: %w", name, err)
		}
		out[name] = pv
	}
	return json.Marshal(out)
}

func portableValue(v form.Value, dateLayout string) (any, error) {
	switch v.Kind {
	case form.KindString:
		return v.Str, nil
	case form.KindNumber:
		return v.Num, nil
	case form.KindBool:
		return v.Bool, nil
	case form.KindDate:
		return v.Time.Format(dateLayout), nil
	case form.KindRows:
		rows := make([]map[string]any, 0, len(v.Rows))
		for _, row := range v.Rows {
			obj := make(map[string]any, len(row))
			for sub, sv := range row {
				pv, err := portableValue(sv, dateLayout)
				if err != nil {
					return nil, err
				}
				obj[sub] = pv
			}
			rows = append(rows, obj)
		}
		return rows, nil
	case form.KindImages:
		return v.Images, nil
	}
	return nil, fmt.Errorf("unknown value kind %d", v.Kind)
}

// UnmarshalPortable parses a portable document back into a record. Unknown
// fields are ignored; malformed values are skipped rather than failing the
// whole import.
func UnmarshalPortable(data []byte) (form.Record, error) {
	var flat map[string]json.RawMessage
	if err := json.Unmarshal(data, &flat); err != nil {
		return nil, fmt.Errorf("parse import document: %w", err)
	}

	r := form.Record{}
	for name, raw := range flat {
		spec, ok := form.Spec(name)
		if !ok {
			continue
		}
		if v, ok := portableField(spec, raw); ok {
			r[name] = v
		}
	}
	return r, nil
}

func portableField(spec form.FieldSpec, raw json.RawMessage) (form.Value, bool) {
	switch spec.Kind {
	case form.KindString:
		var s string
		if json.Unmarshal(raw, &s) == nil {
			return form.String(s), true
		}
	case form.KindNumber:
		var n float64
		if json.Unmarshal(raw, &n) == nil {
			return form.Number(n), true
		}
	case form.KindBool:
		var b bool
		if json.Unmarshal(raw, &b) == nil {
			return form.Bool(b), true
		}
	case form.KindDate:
		var s string
		if json.Unmarshal(raw, &s) != nil {
			return form.Value{}, false
		}
		if t, ok := parseDate(s); ok {
			return form.Date(t), true
		}
		return form.String(s), true
	case form.KindRows:
		var rows []map[string]json.RawMessage
		if json.Unmarshal(raw, &rows) != nil {
			return form.Value{}, false
		}
		out := make([]form.Record, 0, len(rows))
		for _, obj := range rows {
			row := form.Record{}
			for _, sub := range spec.Row {
				if rawSub, ok := obj[sub.Name]; ok {
					if v, ok := portableField(sub, rawSub); ok {
						row[sub.Name] = v
					}
				}
			}
			out = append(out, row)
		}
		return form.Rows(out), true
	case form.KindImages:
		var images []form.Attachment
		if json.Unmarshal(raw, &images) == nil {
			return form.Images(images), true
		}
	}
	return form.Value{}, false
}
