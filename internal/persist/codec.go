package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"intake/internal/attachment"
	"intake/internal/form"
	"intake/pkg/platform/sentinel"
)

// Date layouts accepted during revival. Envelopes are written with the ISO
// form; older exports and the submission shape use the plain one.
const (
	dateLayoutISO   = time.RFC3339
	dateLayoutPlain = "2006-01-02"
)

// Codec converts between live records and persisted envelopes. Image arrays
// are externalized into the attachment store; everything else is preserved
// structurally, with dates as strings.
type Codec struct {
	attachments attachment.Store
	logger      *slog.Logger
}

func NewCodec(attachments attachment.Store, logger *slog.Logger) *Codec {
	return &Codec{attachments: attachments, logger: logger}
}

// Serialize walks the record depth-first and produces the envelope for the
// given code. Every image payload is stored under its derived key; the
// envelope only ever holds the keys.
func (c *Codec) Serialize(ctx context.Context, r form.Record, code string, savedAt time.Time) (Envelope, error) {
	fields := make(map[string]json.RawMessage, len(r))
	for name, v := range r {
		raw, err := c.serializeValue(ctx, code, name, v)
		if err != nil {
			return Envelope{}, fmt.Errorf("serialize field %s: %w", name, err)
		}
		fields[name] = raw
	}
	return Envelope{Fields: fields, SavedAt: savedAt.UnixMilli()}, nil
}

func (c *Codec) serializeValue(ctx context.Context, code, name string, v form.Value) (json.RawMessage, error) {
	switch v.Kind {
	case form.KindString:
		return json.Marshal(v.Str)
	case form.KindNumber:
		return json.Marshal(v.Num)
	case form.KindBool:
		return json.Marshal(v.Bool)
	case form.KindDate:
		return json.Marshal(v.Time.Format(dateLayoutISO))
	case form.KindRows:
		rows := make([]map[string]json.RawMessage, 0, len(v.Rows))
		for _, row := range v.Rows {
			obj := make(map[string]json.RawMessage, len(row))
			for sub, sv := range row {
				raw, err := c.serializeValue(ctx, code, name+"."+sub, sv)
				if err != nil {
					return nil, err
				}
				obj[sub] = raw
			}
			rows = append(rows, obj)
		}
		return json.Marshal(rows)
	case form.KindImages:
		keys := make([]string, 0, len(v.Images))
		for i, img := range v.Images {
			payload, err := json.Marshal(img)
			if err != nil {
				return nil, err
			}
			key := attachment.DeriveKey(code, name, i)
			if err := c.attachments.Put(ctx, key, payload); err != nil {
				return nil, fmt.Errorf("store attachment %s[%d]: %w", name, i, err)
			}
			keys = append(keys, key)
		}
		return json.Marshal(keys)
	}
	return nil, fmt.Errorf("unknown value kind %d", v.Kind)
}

// Deserialize is the inverse walk. It is deliberately tolerant: unknown
// fields are skipped, a date that fails to parse stays a raw string, and a
// missing attachment shrinks its array instead of failing the load.
func (c *Codec) Deserialize(ctx context.Context, env Envelope) (form.Record, error) {
	r := form.Record{}
	for name, raw := range env.Fields {
		spec, ok := form.Spec(name)
		if !ok {
			c.logger.WarnContext(ctx, "skipping unknown field in envelope", "field", name)
			continue
		}
		v, ok, err := c.deserializeValue(ctx, spec, name, raw)
		if err != nil {
			return nil, fmt.Errorf("deserialize field %s: %w", name, err)
		}
		if ok {
			r[name] = v
		}
	}
	return r, nil
}

func (c *Codec) deserializeValue(ctx context.Context, spec form.FieldSpec, name string, raw json.RawMessage) (form.Value, bool, error) {
	switch spec.Kind {
	case form.KindString:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			c.logger.WarnContext(ctx, "skipping malformed string field", "field", name)
			return form.Value{}, false, nil
		}
		return form.String(s), true, nil

	case form.KindNumber:
		var n float64
		if err := json.Unmarshal(raw, &n); err != nil {
			c.logger.WarnContext(ctx, "skipping malformed number field", "field", name)
			return form.Value{}, false, nil
		}
		return form.Number(n), true, nil

	case form.KindBool:
		var b bool
		if err := json.Unmarshal(raw, &b); err != nil {
			c.logger.WarnContext(ctx, "skipping malformed bool field", "field", name)
			return form.Value{}, false, nil
		}
		return form.Bool(b), true, nil

	case form.KindDate:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			c.logger.WarnContext(ctx, "skipping malformed date field", "field", name)
			return form.Value{}, false, nil
		}
		if t, ok := parseDate(s); ok {
			return form.Date(t), true, nil
		}
		// A corrupted date must not take down the whole load; keep the raw
		// string so the user can see and fix it.
		c.logger.WarnContext(ctx, "date failed to parse, keeping raw string", "field", name, "value", s)
		return form.String(s), true, nil

	case form.KindRows:
		var rows []map[string]json.RawMessage
		if err := json.Unmarshal(raw, &rows); err != nil {
			c.logger.WarnContext(ctx, "skipping malformed repeating group", "field", name)
			return form.Value{}, false, nil
		}
		out := make([]form.Record, 0, len(rows))
		for _, obj := range rows {
			row := form.Record{}
			for _, sub := range spec.Row {
				rawSub, ok := obj[sub.Name]
				if !ok {
					continue
				}
				v, ok, err := c.deserializeValue(ctx, sub, name+"."+sub.Name, rawSub)
				if err != nil {
					return form.Value{}, false, err
				}
				if ok {
					row[sub.Name] = v
				}
			}
			out = append(out, row)
		}
		return form.Rows(out), true, nil

	case form.KindImages:
		var keys []string
		if err := json.Unmarshal(raw, &keys); err != nil {
			c.logger.WarnContext(ctx, "skipping malformed attachment refs", "field", name)
			return form.Value{}, false, nil
		}
		images, err := c.resolveAttachments(ctx, name, keys)
		if err != nil {
			return form.Value{}, false, err
		}
		return form.Images(images), true, nil
	}
	return form.Value{}, false, fmt.Errorf("unknown field kind for %s", name)
}

// resolveAttachments fetches payloads in parallel, preserving array order.
// Missing keys are dropped with a warning; storage errors fail the load.
func (c *Codec) resolveAttachments(ctx context.Context, field string, keys []string) ([]form.Attachment, error) {
	slots := make([]*form.Attachment, len(keys))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, key := range keys {
		g.Go(func() error {
			payload, err := c.attachments.Get(ctx, key)
			if errors.Is(err, sentinel.ErrNotFound) {
				c.logger.WarnContext(ctx, "attachment missing, dropping from record",
					"field", field, "key", key)
				return nil
			}
			if err != nil {
				return fmt.Errorf("load attachment %s[%d]: %w", field, i, err)
			}
			var img form.Attachment
			if err := json.Unmarshal(payload, &img); err != nil {
				c.logger.WarnContext(ctx, "attachment payload corrupt, dropping",
					"field", field, "key", key)
				return nil
			}
			mu.Lock()
			slots[i] = &img
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	images := make([]form.Attachment, 0, len(keys))
	for _, slot := range slots {
		if slot != nil {
			images = append(images, *slot)
		}
	}
	return images, nil
}

func parseDate(s string) (time.Time, bool) {
	if t, err := time.Parse(dateLayoutISO, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(dateLayoutPlain, s); err == nil {
		return t, true
	}
	return time.Time{}, false
}
