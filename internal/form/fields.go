package form

import "regexp"

// FieldSpec declares one field of the questionnaire: its value kind, which
// section it belongs to, and its per-field validation rules. Requiredness is
// effective only while the field is visible; RequiredNow is the single source
// of truth for "must be filled right now".
type FieldSpec struct {
	Name     string
	Section  string
	Kind     Kind
	Required bool
	MinLen   int
	Pattern  *regexp.Regexp
	Options  []string // enum membership for select fields
	Min, Max *float64 // numeric range
	Row      []FieldSpec
}

// Section groups fields for the stepper. Sections form a fixed order; the
// visible subsequence is recomputed from the record.
type Section struct {
	ID      string
	Fields  []string
	Visible func(Record) bool // nil means always visible
}

// Field names referenced from predicates and services.
const (
	FieldAccessCode     = "accessCode"
	FieldBirthDate      = "birthDate"
	FieldSex            = "sex"
	FieldBirthNumber    = "birthNumber"
	FieldFirstJobInCz   = "firstJobInCz"
	FieldLastEmployer   = "lastEmployer"
	FieldLastJobType    = "lastJobType"
	FieldLastJobFrom    = "lastJobFrom"
	FieldLastJobTo      = "lastJobTo"
	FieldContactDiffers = "contactAddressDiffers"
	FieldMaritalStatus  = "maritalStatus"
	FieldEducationLevel = "educationLevel"
	FieldPensioner      = "pensioner"
	FieldDisability     = "disability"
	FieldPaymentMethod  = "paymentMethod"
	FieldStudent        = "student"
	FieldExecutions     = "executions"
	FieldSecondJob      = "secondJob"
	FieldForeigner      = "foreigner"
	FieldLanguages      = "languages"
	FieldDependents     = "dependents"
)

// Access codes are the storage partition key and must stay short.
const (
	AccessCodeMinLen = 5
	AccessCodeMaxLen = 10
)

var (
	patternAccessCode  = regexp.MustCompile(`^[A-Za-z0-9]{5,10}$`)
	patternBirthNumber = regexp.MustCompile(`^\d{6}/\d{3,4}$`)
	patternZip         = regexp.MustCompile(`^\d{3} ?\d{2}$`)
	patternEmail       = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	patternPhone       = regexp.MustCompile(`^\+?[0-9 ]{9,16}$`)
	patternDataBox     = regexp.MustCompile(`^[a-z0-9]{7}$`)
	patternBankAccount = regexp.MustCompile(`^(\d{1,6}-)?\d{2,10}$`)
)

func f64(v float64) *float64 { return &v }

var sexOptions = []string{"male", "female"}

var maritalOptions = []string{"single", "married", "divorced", "widowed", "registered_partnership"}

var educationOptions = []string{"basic", "vocational", "secondary", "higher", "university"}

var yesNoOptions = []string{"yes", "no"}

var jobTypeOptions = []string{"employment", "trade", "agreement", "parental_leave", "unemployed"}

var pensionOptions = []string{"old_age", "invalidity_first", "invalidity_second", "invalidity_third", "widow", "orphan"}

var disabilityOptions = []string{"first_degree", "second_degree", "third_degree", "ztp_p"}

var insurerOptions = []string{"111", "201", "205", "207", "209", "211", "213"}

var bankCodeOptions = []string{"0100", "0300", "0600", "0710", "0800", "2010", "2700", "3030", "5500", "6210"}

var languageOptions = []string{"english", "german", "french", "spanish", "russian", "italian", "other"}

var languageLevelOptions = []string{"A1", "A2", "B1", "B2", "C1", "C2"}

var languageRow = []FieldSpec{
	{Name: "language", Kind: KindString, Required: true, Options: languageOptions},
	{Name: "level", Kind: KindString, Required: true, Options: languageLevelOptions},
}

var dependentRow = []FieldSpec{
	{Name: "name", Kind: KindString, Required: true, MinLen: 3},
	{Name: "birthDate", Kind: KindDate, Required: true},
	{Name: "birthNumber", Kind: KindString, Required: true, Pattern: patternBirthNumber},
}

// fieldSpecs is the full static field set, in section order. The registry is
// fixed at compile time; there is no runtime schema loading.
var fieldSpecs = []FieldSpec{
	{Name: FieldAccessCode, Section: "access", Kind: KindString, Required: true, Pattern: patternAccessCode},

	{Name: "titleBefore", Section: "personal", Kind: KindString},
	{Name: "firstName", Section: "personal", Kind: KindString, Required: true, MinLen: 2},
	{Name: "lastName", Section: "personal", Kind: KindString, Required: true, MinLen: 2},
	{Name: "titleAfter", Section: "personal", Kind: KindString},
	{Name: "birthSurname", Section: "personal", Kind: KindString},
	{Name: FieldBirthDate, Section: "personal", Kind: KindDate, Required: true},
	{Name: "birthPlace", Section: "personal", Kind: KindString, Required: true},
	{Name: "birthCountry", Section: "personal", Kind: KindString, Required: true},
	{Name: FieldSex, Section: "personal", Kind: KindString, Required: true, Options: sexOptions},
	{Name: FieldMaritalStatus, Section: "personal", Kind: KindString, Required: true, Options: maritalOptions},
	{Name: "nationality", Section: "personal", Kind: KindString, Required: true},
	{Name: FieldForeigner, Section: "personal", Kind: KindBool},
	{Name: FieldBirthNumber, Section: "personal", Kind: KindString, Required: true, Pattern: patternBirthNumber},
	{Name: "foreignerInsuranceNumber", Section: "personal", Kind: KindString, Required: true},
	{Name: "previousSurnames", Section: "personal", Kind: KindString},

	{Name: "street", Section: "permanent_address", Kind: KindString, Required: true},
	{Name: "houseNumber", Section: "permanent_address", Kind: KindString, Required: true},
	{Name: "city", Section: "permanent_address", Kind: KindString, Required: true},
	{Name: "zip", Section: "permanent_address", Kind: KindString, Required: true, Pattern: patternZip},
	{Name: "country", Section: "permanent_address", Kind: KindString, Required: true},
	{Name: FieldContactDiffers, Section: "permanent_address", Kind: KindBool},

	{Name: "contactStreet", Section: "contact_address", Kind: KindString, Required: true},
	{Name: "contactHouseNumber", Section: "contact_address", Kind: KindString, Required: true},
	{Name: "contactCity", Section: "contact_address", Kind: KindString, Required: true},
	{Name: "contactZip", Section: "contact_address", Kind: KindString, Required: true, Pattern: patternZip},
	{Name: "contactCountry", Section: "contact_address", Kind: KindString, Required: true},

	{Name: "email", Section: "contact", Kind: KindString, Required: true, Pattern: patternEmail},
	{Name: "phone", Section: "contact", Kind: KindString, Required: true, Pattern: patternPhone},
	{Name: "phoneSecondary", Section: "contact", Kind: KindString, Pattern: patternPhone},
	{Name: "dataBoxID", Section: "contact", Kind: KindString, Pattern: patternDataBox},
	{Name: "emergencyContactName", Section: "contact", Kind: KindString},
	{Name: "emergencyContactPhone", Section: "contact", Kind: KindString, Pattern: patternPhone},

	{Name: FieldEducationLevel, Section: "education", Kind: KindString, Required: true, Options: educationOptions},
	{Name: "school", Section: "education", Kind: KindString, Required: true},
	{Name: "fieldOfStudy", Section: "education", Kind: KindString},
	{Name: "graduationYear", Section: "education", Kind: KindNumber, Min: f64(1940), Max: f64(2030)},
	{Name: FieldLanguages, Section: "education", Kind: KindRows, Row: languageRow},

	{Name: FieldFirstJobInCz, Section: "employment", Kind: KindString, Required: true, Options: yesNoOptions},
	{Name: FieldLastEmployer, Section: "employment", Kind: KindString, Required: true, MinLen: 2},
	{Name: FieldLastJobType, Section: "employment", Kind: KindString, Required: true, Options: jobTypeOptions},
	{Name: FieldLastJobFrom, Section: "employment", Kind: KindDate, Required: true},
	{Name: FieldLastJobTo, Section: "employment", Kind: KindDate, Required: true},
	{Name: FieldSecondJob, Section: "employment", Kind: KindBool},
	{Name: "secondEmployer", Section: "employment", Kind: KindString, Required: true},
	{Name: FieldPensioner, Section: "employment", Kind: KindBool},
	{Name: "pensionType", Section: "employment", Kind: KindString, Required: true, Options: pensionOptions},
	{Name: "pensionSince", Section: "employment", Kind: KindDate, Required: true},

	{Name: "spouseName", Section: "family", Kind: KindString, Required: true, MinLen: 3},
	{Name: "spouseBirthNumber", Section: "family", Kind: KindString, Pattern: patternBirthNumber},
	{Name: "applyChildTaxRelief", Section: "family", Kind: KindBool},
	{Name: FieldDependents, Section: "family", Kind: KindRows, Row: dependentRow},

	{Name: FieldPaymentMethod, Section: "banking", Kind: KindString, Required: true, Options: []string{"account", "cash"}},
	{Name: "bankAccountNumber", Section: "banking", Kind: KindString, Required: true, Pattern: patternBankAccount},
	{Name: "bankCode", Section: "banking", Kind: KindString, Required: true, Options: bankCodeOptions},

	{Name: "healthInsurer", Section: "health", Kind: KindString, Required: true, Options: insurerOptions},
	{Name: FieldDisability, Section: "health", Kind: KindBool},
	{Name: "disabilityLevel", Section: "health", Kind: KindString, Required: true, Options: disabilityOptions},
	{Name: "disabilitySince", Section: "health", Kind: KindDate, Required: true},
	{Name: FieldStudent, Section: "health", Kind: KindBool},
	{Name: "studyUntil", Section: "health", Kind: KindDate, Required: true},
	{Name: FieldExecutions, Section: "health", Kind: KindBool},
	{Name: "executionDetails", Section: "health", Kind: KindString, Required: true, MinLen: 10},
	{Name: "taxDeclaration", Section: "health", Kind: KindBool},

	{Name: "idCardFront", Section: "attachments", Kind: KindImages, Required: true},
	{Name: "idCardBack", Section: "attachments", Kind: KindImages, Required: true},
	{Name: "photo", Section: "attachments", Kind: KindImages},
	{Name: "educationCertificate", Section: "attachments", Kind: KindImages, Required: true},
	{Name: "disabilityCertificate", Section: "attachments", Kind: KindImages, Required: true},
	{Name: "bankStatement", Section: "attachments", Kind: KindImages},
}

// sectionOrder fixes the stepper sequence. contact_address only shows when
// the contact address differs from the permanent one.
var sectionOrder = []Section{
	{ID: "access"},
	{ID: "personal"},
	{ID: "permanent_address"},
	{ID: "contact_address", Visible: func(r Record) bool { return r.Flag(FieldContactDiffers) }},
	{ID: "contact"},
	{ID: "education"},
	{ID: "employment"},
	{ID: "family"},
	{ID: "banking"},
	{ID: "health"},
	{ID: "attachments"},
}

var (
	specByName = map[string]FieldSpec{}
	sections   []Section
)

func init() {
	bySection := map[string][]string{}
	for _, spec := range fieldSpecs {
		specByName[spec.Name] = spec
		bySection[spec.Section] = append(bySection[spec.Section], spec.Name)
	}
	sections = make([]Section, len(sectionOrder))
	copy(sections, sectionOrder)
	for i := range sections {
		sections[i].Fields = bySection[sections[i].ID]
	}
}

// Spec looks up a field declaration by name.
func Spec(name string) (FieldSpec, bool) {
	s, ok := specByName[name]
	return s, ok
}

// Fields returns all field declarations in section order.
func Fields() []FieldSpec {
	return fieldSpecs
}

// Sections returns the full static section sequence.
func Sections() []Section {
	return sections
}

// CodeOK reports whether an access code satisfies the length bound.
func CodeOK(code string) bool {
	return len(code) >= AccessCodeMinLen && len(code) <= AccessCodeMaxLen
}

// Empty returns a record with no fields provided.
func Empty() Record {
	return Record{}
}
