package persist

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intake/internal/attachment"
	"intake/internal/form"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// richRecord covers every value kind the registry knows.
func richRecord() form.Record {
	return form.Record{
		"accessCode":     form.String("AB123"),
		"firstName":      form.String("Jana"),
		"birthDate":      form.Date(day(1985, time.January, 30)),
		"foreigner":      form.Bool(false),
		"graduationYear": form.Number(2008),
		"languages": form.Rows([]form.Record{
			{"language": form.String("english"), "level": form.String("B2")},
			{"language": form.String("german"), "level": form.String("A2")},
		}),
		"dependents": form.Rows([]form.Record{
			{
				"name":        form.String("Tomáš"),
				"birthDate":   form.Date(day(2012, time.June, 3)),
				"birthNumber": form.String("120603/1234"),
			},
		}),
		"idCardFront": form.Images([]form.Attachment{
			{Name: "front.jpg", MIME: "image/jpeg", Data: "aGVsbG8="},
			{Name: "front2.jpg", MIME: "image/jpeg", Data: "d29ybGQ="},
		}),
	}
}

func TestCodec_RoundTrip(t *testing.T) {
	ctx := context.Background()
	codec := NewCodec(attachment.NewInMemory(), testLogger())

	in := richRecord()
	env, err := codec.Serialize(ctx, in, "AB123", day(2026, time.March, 1))
	require.NoError(t, err)

	out, err := codec.Deserialize(ctx, env)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestCodec_AttachmentsAreExternalized(t *testing.T) {
	ctx := context.Background()
	store := attachment.NewInMemory()
	codec := NewCodec(store, testLogger())

	env, err := codec.Serialize(ctx, richRecord(), "AB123", time.Now())
	require.NoError(t, err)

	var keys []string
	require.NoError(t, json.Unmarshal(env.Fields["idCardFront"], &keys))
	require.Len(t, keys, 2)
	assert.Equal(t, attachment.DeriveKey("AB123", "idCardFront", 0), keys[0])
	assert.Equal(t, attachment.DeriveKey("AB123", "idCardFront", 1), keys[1])

	// The envelope never carries payload bytes; the store does.
	assert.NotContains(t, string(env.Fields["idCardFront"]), "aGVsbG8=")
	payload, err := store.Get(ctx, keys[0])
	require.NoError(t, err)

	var img form.Attachment
	require.NoError(t, json.Unmarshal(payload, &img))
	assert.Equal(t, "front.jpg", img.Name)
	assert.Equal(t, "aGVsbG8=", img.Data)
}

func TestCodec_DeserializeIsTolerant(t *testing.T) {
	ctx := context.Background()
	store := attachment.NewInMemory()
	codec := NewCodec(store, testLogger())

	t.Run("unknown field is skipped", func(t *testing.T) {
		env := Envelope{Fields: map[string]json.RawMessage{
			"firstName":    json.RawMessage(`"Jana"`),
			"noSuchField":  json.RawMessage(`"x"`),
			"legacyColumn": json.RawMessage(`42`),
		}}
		r, err := codec.Deserialize(ctx, env)
		require.NoError(t, err)
		assert.Equal(t, form.Record{"firstName": form.String("Jana")}, r)
	})

	t.Run("malformed value is skipped, not fatal", func(t *testing.T) {
		env := Envelope{Fields: map[string]json.RawMessage{
			"firstName":      json.RawMessage(`"Jana"`),
			"graduationYear": json.RawMessage(`"not-a-number"`),
			"foreigner":      json.RawMessage(`[1,2]`),
		}}
		r, err := codec.Deserialize(ctx, env)
		require.NoError(t, err)
		assert.Equal(t, form.Record{"firstName": form.String("Jana")}, r)
	})

	t.Run("unparseable date survives as its raw string", func(t *testing.T) {
		env := Envelope{Fields: map[string]json.RawMessage{
			"birthDate": json.RawMessage(`"30.01.1985"`),
		}}
		r, err := codec.Deserialize(ctx, env)
		require.NoError(t, err)
		assert.Equal(t, form.String("30.01.1985"), r["birthDate"])
	})

	t.Run("plain date layout from older envelopes still parses", func(t *testing.T) {
		env := Envelope{Fields: map[string]json.RawMessage{
			"birthDate": json.RawMessage(`"1985-01-30"`),
		}}
		r, err := codec.Deserialize(ctx, env)
		require.NoError(t, err)
		assert.Equal(t, form.Date(day(1985, time.January, 30)), r["birthDate"])
	})

	t.Run("missing attachment shrinks the array", func(t *testing.T) {
		in := form.Record{"idCardFront": form.Images([]form.Attachment{
			{Name: "front.jpg", MIME: "image/jpeg", Data: "aGVsbG8="},
			{Name: "front2.jpg", MIME: "image/jpeg", Data: "d29ybGQ="},
		})}
		env, err := codec.Serialize(ctx, in, "AB123", time.Now())
		require.NoError(t, err)

		// Simulate a GC race by dropping one payload out from under the refs.
		_, err = store.GarbageCollect(ctx, map[string]struct{}{
			attachment.DeriveKey("AB123", "idCardFront", 1): {},
		})
		require.NoError(t, err)

		r, err := codec.Deserialize(ctx, env)
		require.NoError(t, err)
		require.Len(t, r["idCardFront"].Images, 1)
		assert.Equal(t, "front2.jpg", r["idCardFront"].Images[0].Name)
	})
}
