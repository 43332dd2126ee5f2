package form

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// baseRecord fills the unconditionally required fields with valid values.
func baseRecord() Record {
	return Record{
		FieldAccessCode:     String("AB123"),
		"firstName":         String("Jana"),
		"lastName":          String("Nováková"),
		FieldBirthDate:      Date(day(1985, time.January, 30)),
		"birthPlace":        String("Brno"),
		"birthCountry":      String("Czech Republic"),
		FieldSex:            String("female"),
		FieldMaritalStatus:  String("single"),
		"nationality":       String("czech"),
		FieldBirthNumber:    String("855130/0010"),
		"street":            String("Dlouhá"),
		"houseNumber":       String("12"),
		"city":              String("Brno"),
		"zip":               String("602 00"),
		"country":           String("Czech Republic"),
		"email":             String("jana@example.com"),
		"phone":             String("+420 777 123 456"),
		FieldEducationLevel: String("university"),
		"school":            String("Masaryk University"),
		FieldFirstJobInCz:   String("yes"),
		FieldPaymentMethod:  String("cash"),
		"healthInsurer":     String("111"),
		"idCardFront":       Images([]Attachment{{Name: "front.jpg", MIME: "image/jpeg", Data: "aGVsbG8="}}),
		"idCardBack":        Images([]Attachment{{Name: "back.jpg", MIME: "image/jpeg", Data: "d29ybGQ="}}),
		"educationCertificate": Images([]Attachment{
			{Name: "diploma.png", MIME: "image/png", Data: "ZGlwbG9tYQ=="},
		}),
	}
}

func TestValidate_BaseRecordIsValid(t *testing.T) {
	res := NewSchema().Validate(baseRecord())
	assert.True(t, res.Valid(), "unexpected errors: %v", res.FieldErrors)
}

func TestValidate_RequiredFields(t *testing.T) {
	s := NewSchema()

	t.Run("missing required field", func(t *testing.T) {
		r := baseRecord()
		delete(r, "firstName")
		res := s.Validate(r)
		require.Contains(t, res.FieldErrors, "firstName")
		assert.Equal(t, ErrRequired, res.FieldErrors["firstName"][0].Kind)
	})

	t.Run("explicitly cleared counts as missing", func(t *testing.T) {
		r := baseRecord()
		r["firstName"] = String("")
		res := s.Validate(r)
		require.Contains(t, res.FieldErrors, "firstName")
	})

	t.Run("select placeholder counts as missing", func(t *testing.T) {
		r := baseRecord()
		r[FieldMaritalStatus] = String("none")
		res := s.Validate(r)
		require.Contains(t, res.FieldErrors, FieldMaritalStatus)
		assert.Equal(t, ErrRequired, res.FieldErrors[FieldMaritalStatus][0].Kind)
	})

	t.Run("hidden required field produces no error", func(t *testing.T) {
		// foreignerInsuranceNumber is required but only for foreigners.
		res := s.Validate(baseRecord())
		assert.NotContains(t, res.FieldErrors, "foreignerInsuranceNumber")
	})
}

func TestValidate_FormatRules(t *testing.T) {
	s := NewSchema()

	t.Run("min length", func(t *testing.T) {
		r := baseRecord()
		r["firstName"] = String("J")
		res := s.Validate(r)
		require.Contains(t, res.FieldErrors, "firstName")
		assert.Equal(t, ErrFormat, res.FieldErrors["firstName"][0].Kind)
	})

	t.Run("pattern", func(t *testing.T) {
		r := baseRecord()
		r["email"] = String("not-an-email")
		res := s.Validate(r)
		require.Contains(t, res.FieldErrors, "email")
	})

	t.Run("enum membership", func(t *testing.T) {
		r := baseRecord()
		r["healthInsurer"] = String("999")
		res := s.Validate(r)
		require.Contains(t, res.FieldErrors, "healthInsurer")
	})

	t.Run("numeric range", func(t *testing.T) {
		r := baseRecord()
		r["graduationYear"] = Number(1890)
		res := s.Validate(r)
		require.Contains(t, res.FieldErrors, "graduationYear")
	})

	t.Run("type mismatch is a format error, not a panic", func(t *testing.T) {
		r := baseRecord()
		r["firstName"] = Number(42)
		res := s.Validate(r)
		require.Contains(t, res.FieldErrors, "firstName")
		assert.Equal(t, ErrFormat, res.FieldErrors["firstName"][0].Kind)
	})
}

func TestValidate_ConditionalRequirement(t *testing.T) {
	s := NewSchema()

	r := baseRecord()
	r[FieldFirstJobInCz] = String("yes")
	res := s.Validate(r)
	assert.NotContains(t, res.FieldErrors, FieldLastEmployer)

	r[FieldFirstJobInCz] = String("no")
	res = s.Validate(r)
	require.Contains(t, res.FieldErrors, FieldLastEmployer)
	assert.Equal(t, ErrRequired, res.FieldErrors[FieldLastEmployer][0].Kind)
	assert.Contains(t, res.FieldErrors, FieldLastJobType)
	assert.Contains(t, res.FieldErrors, FieldLastJobFrom)
	assert.Contains(t, res.FieldErrors, FieldLastJobTo)
}

func TestValidate_BirthNumberCrossCheck(t *testing.T) {
	s := NewSchema()

	t.Run("mismatched sex errors on the identifier field", func(t *testing.T) {
		r := baseRecord()
		r[FieldSex] = String("male") // number encodes female
		res := s.Validate(r)
		require.Contains(t, res.FieldErrors, FieldBirthNumber)
		assert.Equal(t, ErrCustom, res.FieldErrors[FieldBirthNumber][0].Kind)
	})

	t.Run("bad checksum errors on the identifier field", func(t *testing.T) {
		r := baseRecord()
		r[FieldBirthNumber] = String("855130/0011")
		res := s.Validate(r)
		require.Contains(t, res.FieldErrors, FieldBirthNumber)
	})

	t.Run("skipped while the birth date itself is invalid", func(t *testing.T) {
		r := baseRecord()
		delete(r, FieldBirthDate)
		r[FieldBirthNumber] = String("855130/0010")
		res := s.Validate(r)
		// birthDate gets its required error; the identifier is not blamed.
		require.Contains(t, res.FieldErrors, FieldBirthDate)
		assert.NotContains(t, res.FieldErrors, FieldBirthNumber)
	})
}

func TestValidate_JobDateOrder(t *testing.T) {
	s := NewSchema()
	r := baseRecord()
	r[FieldFirstJobInCz] = String("no")
	r[FieldLastEmployer] = String("Alfa s.r.o.")
	r[FieldLastJobType] = String("employment")
	r[FieldLastJobFrom] = Date(day(2021, time.May, 1))
	r[FieldLastJobTo] = Date(day(2020, time.May, 1))

	res := s.Validate(r)
	require.Contains(t, res.FieldErrors, FieldLastJobFrom)
	assert.Equal(t, ErrCustom, res.FieldErrors[FieldLastJobFrom][0].Kind)
}

func TestValidate_RepeatingGroups(t *testing.T) {
	s := NewSchema()

	t.Run("row errors use dotted index paths", func(t *testing.T) {
		r := baseRecord()
		r[FieldLanguages] = Rows([]Record{
			{"language": String("english"), "level": String("B2")},
			{"language": String("german")}, // level missing
		})
		res := s.Validate(r)
		assert.NotContains(t, res.FieldErrors, "languages.0.level")
		require.Contains(t, res.FieldErrors, "languages.1.level")
		assert.Equal(t, ErrRequired, res.FieldErrors["languages.1.level"][0].Kind)
	})

	t.Run("empty rows are skipped", func(t *testing.T) {
		r := baseRecord()
		r[FieldDependents] = Rows([]Record{{}})
		res := s.Validate(r)
		assert.True(t, res.Valid(), "unexpected errors: %v", res.FieldErrors)
	})

	t.Run("row enum violations are format errors", func(t *testing.T) {
		r := baseRecord()
		r[FieldLanguages] = Rows([]Record{
			{"language": String("english"), "level": String("Z9")},
		})
		res := s.Validate(r)
		require.Contains(t, res.FieldErrors, "languages.0.level")
		assert.Equal(t, ErrFormat, res.FieldErrors["languages.0.level"][0].Kind)
	})
}

// Re-running validation on an unchanged record must yield identical error
// sets; auto-save and progress depend on this stability.
func TestValidate_Idempotent(t *testing.T) {
	s := NewSchema()
	r := baseRecord()
	r[FieldFirstJobInCz] = String("no")
	delete(r, "email")

	first := s.Validate(r)
	second := s.Validate(r)
	assert.Equal(t, first, second)
}

func TestValidate_MessageLookup(t *testing.T) {
	lookup := func(key string) string { return "t:" + key }
	s := NewSchema(WithMessages(lookup))
	r := baseRecord()
	delete(r, "firstName")
	res := s.Validate(r)
	require.Contains(t, res.FieldErrors, "firstName")
	assert.Equal(t, "t:error.required", res.FieldErrors["firstName"][0].Message)
}
