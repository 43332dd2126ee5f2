package persist

import (
	"encoding/json"
	"time"
)

// savedAtKey is reserved inside the flattened envelope object; no form field
// uses the name.
const savedAtKey = "savedAt"

// Envelope is the persisted shape of one form record: serialized field values
// plus the save timestamp, flattened into a single JSON object
// {...fields, "savedAt": <epoch-ms>}.
type Envelope struct {
	Fields  map[string]json.RawMessage
	SavedAt int64 // epoch milliseconds
}

// Age returns how old the envelope is at the given instant.
func (e Envelope) Age(now time.Time) time.Duration {
	return now.Sub(time.UnixMilli(e.SavedAt))
}

func (e Envelope) MarshalJSON() ([]byte, error) {
	flat := make(map[string]json.RawMessage, len(e.Fields)+1)
	for name, raw := range e.Fields {
		flat[name] = raw
	}
	savedAt, err := json.Marshal(e.SavedAt)
	if err != nil {
		return nil, err
	}
	flat[savedAtKey] = savedAt
	return json.Marshal(flat)
}

func (e *Envelope) UnmarshalJSON(data []byte) error {
	var flat map[string]json.RawMessage
	if err := json.Unmarshal(data, &flat); err != nil {
		return err
	}
	if raw, ok := flat[savedAtKey]; ok {
		if err := json.Unmarshal(raw, &e.SavedAt); err != nil {
			return err
		}
		delete(flat, savedAtKey)
	}
	e.Fields = flat
	return nil
}
