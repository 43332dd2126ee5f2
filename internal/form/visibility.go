package form

// visibility is the single table of conditional fields. Fields absent from
// the table are always visible. Predicates read sibling boolean or enum
// fields only, and no predicate depends on a field that is itself
// conditional, so the table cannot cycle.
var visibility = map[string]func(Record) bool{
	"foreignerInsuranceNumber": func(r Record) bool { return r.Flag(FieldForeigner) },

	"contactStreet":      contactDiffers,
	"contactHouseNumber": contactDiffers,
	"contactCity":        contactDiffers,
	"contactZip":         contactDiffers,
	"contactCountry":     contactDiffers,

	"school":               beyondBasicEducation,
	"fieldOfStudy":         beyondBasicEducation,
	"graduationYear":       beyondBasicEducation,
	"educationCertificate": beyondBasicEducation,

	FieldLastEmployer: notFirstJob,
	FieldLastJobType:  notFirstJob,
	FieldLastJobFrom:  notFirstJob,
	FieldLastJobTo:    notFirstJob,

	"secondEmployer": func(r Record) bool { return r.Flag(FieldSecondJob) },

	"pensionType":  isPensioner,
	"pensionSince": isPensioner,

	"spouseName":        hasSpouse,
	"spouseBirthNumber": hasSpouse,

	"bankAccountNumber": paysToAccount,
	"bankCode":          paysToAccount,
	"bankStatement":     paysToAccount,

	"disabilityLevel":       hasDisability,
	"disabilitySince":       hasDisability,
	"disabilityCertificate": hasDisability,

	"studyUntil": func(r Record) bool { return r.Flag(FieldStudent) },

	"executionDetails": func(r Record) bool { return r.Flag(FieldExecutions) },
}

func contactDiffers(r Record) bool { return r.Flag(FieldContactDiffers) }

func notFirstJob(r Record) bool { return r.Str(FieldFirstJobInCz) == "no" }

func isPensioner(r Record) bool { return r.Flag(FieldPensioner) }

func hasDisability(r Record) bool { return r.Flag(FieldDisability) }

func paysToAccount(r Record) bool { return r.Str(FieldPaymentMethod) == "account" }

func hasSpouse(r Record) bool {
	switch r.Str(FieldMaritalStatus) {
	case "married", "registered_partnership":
		return true
	}
	return false
}

func beyondBasicEducation(r Record) bool {
	switch r.Str(FieldEducationLevel) {
	case "", selectEmpty, "basic":
		return false
	}
	return true
}

// Visible reports whether a field is currently shown. It drives validation,
// completion counting, and which fields bulk clear/export touch.
func Visible(name string, r Record) bool {
	if pred, ok := visibility[name]; ok {
		return pred(r)
	}
	return true
}

// RequiredNow reports effective requiredness: the field is declared required
// and currently visible. Progress and completion read this, not the raw
// Required flag, so there is exactly one source of optionality.
func RequiredNow(name string, r Record) bool {
	spec, ok := specByName[name]
	if !ok {
		return false
	}
	return spec.Required && Visible(name, r)
}
