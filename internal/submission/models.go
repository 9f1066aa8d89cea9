package submission

import (
	"fmt"
	"strings"
	"time"

	"eventintake/internal/quota"
)

// SubmissionInput is the untrusted request body: field name to raw JSON value.
type SubmissionInput map[string]any

// NormalizeInput unwraps the form-webhook envelope ({"payload":{"data":{...}}})
// and folds the form-encoded "age_groups[]" key into "age_groups".
func NormalizeInput(raw map[string]any) SubmissionInput {
	input := SubmissionInput(raw)
	if payload, ok := raw["payload"].(map[string]any); ok {
		if data, ok := payload["data"].(map[string]any); ok {
			input = SubmissionInput(data)
		}
	}

	out := make(SubmissionInput, len(input))
	for k, v := range input {
		out[k] = v
	}
	for _, key := range []string{FieldEventType, FieldAgeGroups} {
		if v, ok := out[key+"[]"]; ok {
			if _, exists := out[key]; !exists {
				out[key] = v
			}
			delete(out, key+"[]")
		}
	}
	return out
}

// Strings returns the values of a multi-value field. A single string counts as
// a one-element list; non-string entries are skipped.
func (in SubmissionInput) Strings(field string) []string {
	switch v := in[field].(type) {
	case string:
		return []string{v}
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// Bool reads a checkbox-style field: JSON true or the strings "true" and "on".
func (in SubmissionInput) Bool(field string) bool {
	switch v := in[field].(type) {
	case bool:
		return v
	case string:
		s := strings.ToLower(strings.TrimSpace(v))
		return s == "true" || s == "on"
	default:
		return false
	}
}

const (
	FieldTitle                = "title"
	FieldStartDate            = "start_date"
	FieldStartTime            = "start_time"
	FieldEndTime              = "end_time"
	FieldLocation             = "location"
	FieldDescription          = "description"
	FieldEventType            = "event_type"
	FieldAgeGroups            = "age_groups"
	FieldRegistrationRequired = "registration_required"
	FieldRegistrationLink     = "registration_link"
	FieldSubmitterName        = "submitter_name"
	FieldSubmitterEmail       = "submitter_email"
)

var requiredFields = []string{
	FieldTitle,
	FieldStartDate,
	FieldStartTime,
	FieldLocation,
	FieldDescription,
}

var (
	EventTypes = []string{"meeting", "camping", "community_service", "fundraising", "social", "training", "competition"}
	AgeGroups  = []string{"beavers", "cubs", "scouts", "venturers", "rovers", "all"}
)

const (
	DefaultEventType     = "meeting"
	DefaultAgeGroup      = "all"
	DefaultSubmitterName = "Anonymous"
)

const (
	MaxTitleLen            = 200
	MaxLocationLen         = 500
	MaxDescriptionLen      = 2000
	MaxRegistrationLinkLen = 500
	MaxSubmitterNameLen    = 100
	MaxSubmitterEmailLen   = 200
)

// ValidatedSubmission only exists when every field rule holds. Values are
// sanitized; slices are owned copies.
type ValidatedSubmission struct {
	Title                string
	StartDate            string
	StartTime            string
	EndTime              string
	Location             string
	Description          string
	EventTypes           []string
	AgeGroups            []string
	RegistrationRequired bool
	RegistrationLink     string
	SubmitterName        string
	SubmitterEmail       string
}

// When renders the date and time range for human-readable summaries.
func (v ValidatedSubmission) When() string {
	when := fmt.Sprintf("%s at %s", v.StartDate, v.StartTime)
	if v.EndTime != "" {
		when += " - " + v.EndTime
	}
	return when
}

type Outcome string

const (
	OutcomeAccepted    Outcome = "accepted"
	OutcomeRateLimited Outcome = "rate_limited"
	OutcomeInvalid     Outcome = "invalid"
	OutcomeFailed      Outcome = "failed"
)

// Result is the expected-outcome value of a submission. System failures are
// returned as errors instead.
type Result struct {
	Outcome    Outcome
	Receipt    *Receipt
	Violations *ValidationErrors
	Decision   quota.Decision
}

type Receipt struct {
	SubmissionID   string
	Path           string
	Branch         string
	CommitSHA      string
	PullRequestURL string
	Collision      bool
	SubmittedAt    time.Time
}
