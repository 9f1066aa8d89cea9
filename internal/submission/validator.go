package submission

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Violation codes reported per field.
const (
	CodeMissingFields = "missing_fields"
	CodeInvalidFormat = "invalid_format"
	CodeInvalidDate   = "invalid_date"
	CodePastDate      = "past_date"
	CodeTimeOrder     = "time_order"
	CodeTooLong       = "too_long"
	CodeInvalidEmail  = "invalid_email"
	CodeInvalidURL    = "invalid_url"
)

var (
	datePattern  = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	timePattern  = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
)

var (
	errDateFormat = validation.NewError(CodeInvalidFormat, "Invalid date format. Use YYYY-MM-DD")
	errDateValue  = validation.NewError(CodeInvalidDate, "Invalid date")
	errPastDate   = validation.NewError(CodePastDate, "Event date cannot be in the past")
	errTimeFormat = validation.NewError(CodeInvalidFormat, "Invalid time format. Use HH:MM")
	errTimeOrder  = validation.NewError(CodeTimeOrder, "End time must be after start time")
	errEmail      = validation.NewError(CodeInvalidEmail, "Invalid email address")
	errURL        = validation.NewError(CodeInvalidURL, "Invalid registration link")
)

// fieldOrder fixes the order in which violations are reported.
var fieldOrder = []string{
	FieldTitle,
	FieldStartDate,
	FieldStartTime,
	FieldEndTime,
	FieldLocation,
	FieldDescription,
	FieldRegistrationLink,
	FieldSubmitterName,
	FieldSubmitterEmail,
}

// FieldError is one rule violation on one field.
type FieldError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationErrors carries every violation found for a submission.
type ValidationErrors struct {
	Violations    []FieldError `json:"errors"`
	MissingFields []string     `json:"missingFields,omitempty"`
}

func (e *ValidationErrors) Error() string {
	if len(e.MissingFields) > 0 {
		return "Missing required fields: " + strings.Join(e.MissingFields, ", ")
	}
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, v.Field+": "+v.Message)
	}
	return "Validation failed: " + strings.Join(parts, "; ")
}

// Validator turns untrusted input into a ValidatedSubmission. The clock decides
// what "today" is for the past-date rule.
type Validator struct {
	now func() time.Time
}

func NewValidator(clock func() time.Time) *Validator {
	if clock == nil {
		clock = time.Now
	}
	return &Validator{now: clock}
}

// Validate sanitizes every field and checks it. Missing required fields are
// reported alone; otherwise all violations are reported together.
func (v *Validator) Validate(input SubmissionInput) (ValidatedSubmission, *ValidationErrors) {
	sub := ValidatedSubmission{
		Title:                Sanitize(input[FieldTitle]),
		StartDate:            Sanitize(input[FieldStartDate]),
		StartTime:            Sanitize(input[FieldStartTime]),
		EndTime:              Sanitize(input[FieldEndTime]),
		Location:             Sanitize(input[FieldLocation]),
		Description:          strings.ReplaceAll(Sanitize(input[FieldDescription]), "\r\n", "\n"),
		EventTypes:           filterVocabulary(input.Strings(FieldEventType), EventTypes, DefaultEventType),
		AgeGroups:            filterVocabulary(input.Strings(FieldAgeGroups), AgeGroups, DefaultAgeGroup),
		RegistrationRequired: input.Bool(FieldRegistrationRequired),
		SubmitterName:        Sanitize(input[FieldSubmitterName]),
		SubmitterEmail:       Sanitize(input[FieldSubmitterEmail]),
	}
	if sub.RegistrationRequired {
		sub.RegistrationLink = Sanitize(input[FieldRegistrationLink])
	}

	if missing := missingFields(sub); len(missing) > 0 {
		verrs := &ValidationErrors{MissingFields: missing}
		for _, field := range missing {
			verrs.Violations = append(verrs.Violations, FieldError{
				Field:   field,
				Code:    CodeMissingFields,
				Message: "Field is required",
			})
		}
		return ValidatedSubmission{}, verrs
	}

	errs := validation.Errors{
		FieldTitle: validation.Validate(sub.Title, maxRunes(MaxTitleLen)),
		FieldStartDate: validation.Validate(sub.StartDate,
			validation.Match(datePattern).ErrorObject(errDateFormat),
			validation.By(v.calendarDate),
		),
		FieldStartTime: validation.Validate(sub.StartTime,
			validation.Match(timePattern).ErrorObject(errTimeFormat),
		),
		FieldEndTime: validation.Validate(sub.EndTime,
			validation.Match(timePattern).ErrorObject(errTimeFormat),
			validation.By(endAfter(sub.StartTime)),
		),
		FieldLocation:    validation.Validate(sub.Location, maxRunes(MaxLocationLen)),
		FieldDescription: validation.Validate(sub.Description, maxRunes(MaxDescriptionLen)),
		FieldRegistrationLink: validation.Validate(sub.RegistrationLink,
			maxRunes(MaxRegistrationLinkLen),
			validation.By(absoluteURL),
		),
		FieldSubmitterName: validation.Validate(sub.SubmitterName, maxRunes(MaxSubmitterNameLen)),
		FieldSubmitterEmail: validation.Validate(sub.SubmitterEmail,
			maxRunes(MaxSubmitterEmailLen),
			validation.Match(emailPattern).ErrorObject(errEmail),
		),
	}

	if verrs := collectViolations(errs); verrs != nil {
		return ValidatedSubmission{}, verrs
	}

	if sub.SubmitterName == "" {
		sub.SubmitterName = DefaultSubmitterName
	}
	return sub, nil
}

func missingFields(sub ValidatedSubmission) []string {
	values := map[string]string{
		FieldTitle:       sub.Title,
		FieldStartDate:   sub.StartDate,
		FieldStartTime:   sub.StartTime,
		FieldLocation:    sub.Location,
		FieldDescription: sub.Description,
	}
	var missing []string
	for _, field := range requiredFields {
		if values[field] == "" {
			missing = append(missing, field)
		}
	}
	return missing
}

func collectViolations(errs validation.Errors) *ValidationErrors {
	var verrs *ValidationErrors
	for _, field := range fieldOrder {
		err := errs[field]
		if err == nil {
			continue
		}
		if verrs == nil {
			verrs = &ValidationErrors{}
		}
		fe := FieldError{Field: field, Code: CodeInvalidFormat, Message: err.Error()}
		if ve, ok := err.(validation.Error); ok {
			fe.Code = ve.Code()
		}
		verrs.Violations = append(verrs.Violations, fe)
	}
	return verrs
}

func maxRunes(limit int) validation.Rule {
	return validation.RuneLength(0, limit).ErrorObject(
		validation.NewError(CodeTooLong, fmt.Sprintf("Must be %d characters or less", limit)),
	)
}

func (v *Validator) calendarDate(value interface{}) error {
	s, _ := value.(string)
	now := v.now()
	date, err := time.ParseInLocation("2006-01-02", s, now.Location())
	if err != nil {
		return errDateValue
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if date.Before(today) {
		return errPastDate
	}
	return nil
}

func endAfter(start string) validation.RuleFunc {
	return func(value interface{}) error {
		end, _ := value.(string)
		if end == "" {
			return nil
		}
		startMin, ok := minutesOfDay(start)
		if !ok {
			return nil
		}
		endMin, ok := minutesOfDay(end)
		if !ok {
			return nil
		}
		if endMin <= startMin {
			return errTimeOrder
		}
		return nil
	}
}

func minutesOfDay(hhmm string) (int, bool) {
	if !timePattern.MatchString(hhmm) {
		return 0, false
	}
	h := int(hhmm[0]-'0')*10 + int(hhmm[1]-'0')
	m := int(hhmm[3]-'0')*10 + int(hhmm[4]-'0')
	return h*60 + m, true
}

// absoluteURL accepts only http and https links with a host.
func absoluteURL(value interface{}) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return errURL
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return nil
	default:
		return errURL
	}
}

// filterVocabulary keeps allowed values in first-seen order without
// duplicates. An empty result falls back to def.
func filterVocabulary(values, allowed []string, def string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, raw := range values {
		value := Sanitize(raw)
		if seen[value] || !contains(allowed, value) {
			continue
		}
		seen[value] = true
		out = append(out, value)
	}
	if len(out) == 0 {
		return []string{def}
	}
	return out
}

func contains(list []string, value string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}
