package persist

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intake/internal/form"
)

func TestPortable_RoundTrip(t *testing.T) {
	in := richRecord()

	for _, layout := range []string{ExportDateLayout, SubmissionDateLayout} {
		data, err := MarshalPortable(in, layout)
		require.NoError(t, err)

		out, err := UnmarshalPortable(data)
		require.NoError(t, err)
		assert.Equal(t, in, out)
	}
}

func TestPortable_ImagesStayInline(t *testing.T) {
	data, err := MarshalPortable(richRecord(), ExportDateLayout)
	require.NoError(t, err)

	var flat map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &flat))

	// Portable documents must be self-contained, no storage keys.
	assert.Contains(t, string(flat["idCardFront"]), "aGVsbG8=")
	assert.NotContains(t, string(flat["idCardFront"]), "att:")
}

func TestPortable_SubmissionDatesArePlain(t *testing.T) {
	data, err := MarshalPortable(richRecord(), SubmissionDateLayout)
	require.NoError(t, err)

	var flat map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &flat))
	assert.Equal(t, `"1985-01-30"`, string(flat["birthDate"]))
}

func TestPortable_ImportIgnoresJunk(t *testing.T) {
	doc := `{
		"firstName": "Jana",
		"notAField": "x",
		"foreigner": "not-a-bool",
		"birthDate": "garbage"
	}`
	r, err := UnmarshalPortable([]byte(doc))
	require.NoError(t, err)

	assert.Equal(t, form.String("Jana"), r["firstName"])
	assert.NotContains(t, r, "notAField")
	assert.NotContains(t, r, "foreigner")
	// An unparseable date is kept as text so the user can correct it.
	assert.Equal(t, form.String("garbage"), r["birthDate"])
}

func TestPortable_ImportRejectsNonObject(t *testing.T) {
	_, err := UnmarshalPortable([]byte(`[1,2,3]`))
	require.Error(t, err)
}
