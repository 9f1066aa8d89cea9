package models

import "time"

const (
	EventTypeSubmissionAccepted = "event_submission.accepted"
)

// SubmissionEvent tells moderators that an event document is waiting for
// review.
type SubmissionEvent struct {
	SubmissionID   string    `json:"submission_id"`
	Title          string    `json:"title"`
	StartDate      string    `json:"start_date"`
	Path           string    `json:"path"`
	PublishMode    string    `json:"publish_mode"`
	Branch         string    `json:"branch"`
	PullRequestURL string    `json:"pull_request_url,omitempty"`
	PathCollision  bool      `json:"path_collision"`
	SubmittedAt    time.Time `json:"submitted_at"`
}
