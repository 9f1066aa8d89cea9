package submission

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"eventintake/internal/constants"
	"eventintake/internal/contentrepo"
	"eventintake/internal/ledger"
	"eventintake/internal/logger"
	"eventintake/internal/quota"
	apperrors "eventintake/pkg/errors"
	"eventintake/pkg/logging"
	"eventintake/pkg/metrics"
	"eventintake/pkg/models"
	"eventintake/pkg/tracing"
)

type RateLimiter interface {
	CheckAndRecord(ctx context.Context, identity string) (quota.Decision, error)
}

// Service runs one submission through rate limiting, validation, document
// synthesis and publication.
type Service struct {
	limiter      RateLimiter
	validator    *Validator
	synth        *Synthesizer
	repo         contentrepo.Repository
	ledger       ledger.Recorder
	notifier     Notifier
	mode         string
	branchPrefix string
	clock        func() time.Time
	logger       logger.Logger
}

type ServiceOption func(*Service)

func WithClock(clock func() time.Time) ServiceOption {
	return func(s *Service) { s.clock = clock }
}

func WithLedger(recorder ledger.Recorder) ServiceOption {
	return func(s *Service) { s.ledger = recorder }
}

func WithNotifier(notifier Notifier) ServiceOption {
	return func(s *Service) { s.notifier = notifier }
}

// WithPublishMode selects constants.PublishModePullRequest (the default) or
// constants.PublishModeDirect.
func WithPublishMode(mode, branchPrefix string) ServiceOption {
	return func(s *Service) {
		if mode != "" {
			s.mode = mode
		}
		if branchPrefix != "" {
			s.branchPrefix = branchPrefix
		}
	}
}

func NewService(limiter RateLimiter, repo contentrepo.Repository, synth *Synthesizer, log logger.Logger, opts ...ServiceOption) *Service {
	s := &Service{
		limiter:      limiter,
		synth:        synth,
		repo:         repo,
		ledger:       ledger.Nop{},
		mode:         constants.PublishModePullRequest,
		branchPrefix: constants.DefaultBranchPrefix,
		clock:        time.Now,
		logger:       log,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.validator = NewValidator(s.clock)
	return s
}

// Submit processes one submission. Rate-limited and invalid submissions are
// reported through Result; the returned error is reserved for failures of the
// quota store or the content repository.
func (s *Service) Submit(ctx context.Context, input SubmissionInput, identity string) (Result, error) {
	ctx, span := tracing.StartSubmission(ctx, identity)

	start := time.Now()
	result, err := s.submit(ctx, input, identity)
	if err != nil {
		result.Outcome = OutcomeFailed
	}

	tracing.EndSubmission(span, string(result.Outcome), err)
	metrics.ObserveSubmission(string(result.Outcome), time.Since(start))
	return result, err
}

func (s *Service) submit(ctx context.Context, input SubmissionInput, identity string) (Result, error) {
	decision, err := s.limiter.CheckAndRecord(ctx, identity)
	if err != nil {
		return Result{}, apperrors.ErrInternal.WithCause(err)
	}
	if !decision.Allowed {
		return Result{Outcome: OutcomeRateLimited, Decision: decision}, nil
	}

	sub, verrs := s.validator.Validate(input)
	if verrs != nil {
		for _, v := range verrs.Violations {
			metrics.IncValidationFailure(v.Field, v.Code)
		}
		s.logger.InfowCtx(ctx, "Submission rejected by validation", "violations", len(verrs.Violations))
		return Result{Outcome: OutcomeInvalid, Violations: verrs, Decision: decision}, nil
	}

	now := s.clock()
	receipt, err := s.publish(ctx, sub, identity, now)
	if err != nil {
		return Result{Decision: decision}, err
	}

	ctx = logging.WithSubmissionID(ctx, receipt.SubmissionID)
	s.afterPublish(ctx, sub, identity, receipt)

	return Result{Outcome: OutcomeAccepted, Receipt: receipt, Decision: decision}, nil
}

func (s *Service) publish(ctx context.Context, sub ValidatedSubmission, identity string, now time.Time) (*Receipt, error) {
	base := s.repo.DefaultBranch()
	candidate := s.synth.CandidatePath(sub.StartDate, Slugify(sub.Title), nil)

	exists, err := s.repo.Exists(ctx, candidate, base)
	if err != nil {
		return nil, apperrors.ErrUpstream.WithCause(fmt.Errorf("probe %s: %w", candidate, err))
	}
	var suffix *time.Time
	if exists {
		metrics.PathCollisionsTotal.Inc()
		suffix = &now
	}

	doc, err := s.synth.Synthesize(sub, identity, now, suffix)
	if err != nil {
		return nil, apperrors.ErrInternal.WithCause(err)
	}

	receipt := &Receipt{
		SubmissionID: receiptID(doc.Path, now),
		Path:         doc.Path,
		Collision:    exists,
		SubmittedAt:  now,
	}
	ctx = logging.WithSubmissionID(ctx, receipt.SubmissionID)

	change := contentrepo.FileChange{
		Path:    doc.Path,
		Content: doc.Content,
		Message: commitMessage(sub, receipt.SubmissionID, identity),
	}

	switch s.mode {
	case constants.PublishModeDirect:
		change.Branch = base
		receipt.Branch = base
		sha, err := s.repo.PutFile(ctx, change)
		if err != nil {
			return nil, apperrors.ErrUpstream.WithCause(err)
		}
		receipt.CommitSHA = sha

	default:
		branch := s.branchPrefix + strconv.FormatInt(now.UnixMilli(), 10)
		if err := s.repo.CreateBranch(ctx, branch, base); err != nil {
			return nil, apperrors.ErrUpstream.WithCause(err)
		}
		change.Branch = branch
		receipt.Branch = branch

		sha, err := s.repo.PutFile(ctx, change)
		if err != nil {
			return nil, apperrors.ErrUpstream.WithCause(err)
		}
		receipt.CommitSHA = sha

		prURL, err := s.repo.OpenPullRequest(ctx, contentrepo.PullRequest{
			Title: "New Event Submission: " + oneLine(sub.Title),
			Body:  pullRequestBody(sub, receipt.SubmissionID),
			Head:  branch,
			Base:  base,
		})
		if err != nil {
			return nil, apperrors.ErrUpstream.WithCause(err)
		}
		receipt.PullRequestURL = prURL
	}

	s.logger.InfowCtx(ctx, "Event submission published",
		"path", receipt.Path,
		"branch", receipt.Branch,
		"collision", receipt.Collision,
		"mode", s.mode,
	)
	return receipt, nil
}

// afterPublish records and announces an accepted submission. The document is
// already committed, so failures here are logged and never surface.
func (s *Service) afterPublish(ctx context.Context, sub ValidatedSubmission, identity string, receipt *Receipt) {
	entry := ledger.Entry{
		SubmissionID:   receipt.SubmissionID,
		Path:           receipt.Path,
		Title:          sub.Title,
		StartDate:      sub.StartDate,
		SubmitterName:  sub.SubmitterName,
		SubmitterEmail: sub.SubmitterEmail,
		ClientIdentity: identity,
		PublishMode:    s.mode,
		Branch:         receipt.Branch,
		CommitSHA:      receipt.CommitSHA,
		PullRequestURL: receipt.PullRequestURL,
		PathCollision:  receipt.Collision,
		SubmittedAt:    receipt.SubmittedAt,
	}
	if err := s.ledger.Record(ctx, entry); err != nil {
		metrics.LedgerWritesTotal.WithLabelValues("error").Inc()
		s.logger.WarnwCtx(ctx, "Failed to record submission in ledger", "error", err)
	} else {
		metrics.LedgerWritesTotal.WithLabelValues("ok").Inc()
	}

	if s.notifier == nil {
		return
	}
	event := models.SubmissionEvent{
		SubmissionID:   receipt.SubmissionID,
		Title:          sub.Title,
		StartDate:      sub.StartDate,
		Path:           receipt.Path,
		PublishMode:    s.mode,
		Branch:         receipt.Branch,
		PullRequestURL: receipt.PullRequestURL,
		PathCollision:  receipt.Collision,
		SubmittedAt:    receipt.SubmittedAt,
	}
	if err := s.notifier.NotifyAccepted(ctx, event); err != nil {
		metrics.NotificationsTotal.WithLabelValues("error").Inc()
		s.logger.WarnwCtx(ctx, "Failed to publish submission notification", "error", err)
		return
	}
	metrics.NotificationsTotal.WithLabelValues("ok").Inc()
}

// Preview validates and renders a submission without touching the quota or
// the repository.
func (s *Service) Preview(input SubmissionInput, identity string) (GeneratedDocument, *ValidationErrors, error) {
	sub, verrs := s.validator.Validate(input)
	if verrs != nil {
		return GeneratedDocument{}, verrs, nil
	}
	doc, err := s.synth.Synthesize(sub, identity, s.clock(), nil)
	if err != nil {
		return GeneratedDocument{}, nil, err
	}
	return doc, nil, nil
}

// receiptID is the first 16 hex digits of sha256("{path}|{time}").
func receiptID(path string, now time.Time) string {
	sum := sha256.Sum256([]byte(path + "|" + now.UTC().Format(time.RFC3339Nano)))
	return hex.EncodeToString(sum[:])[:16]
}

func commitMessage(sub ValidatedSubmission, submissionID, identity string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "feat(events): add event submission \"%s\"\n\n", EscapeQuoted(oneLine(sub.Title)))
	fmt.Fprintf(&b, "Submission-Id: %s\n", submissionID)
	fmt.Fprintf(&b, "Event-Date: %s\n", sub.StartDate)
	fmt.Fprintf(&b, "Submitted-By: %s\n", oneLine(sub.SubmitterName))
	if sub.SubmitterEmail != "" {
		fmt.Fprintf(&b, "Submitter-Email: %s\n", oneLine(sub.SubmitterEmail))
	}
	fmt.Fprintf(&b, "Submitter-Identity: %s\n", oneLine(identity))
	return b.String()
}

func pullRequestBody(sub ValidatedSubmission, submissionID string) string {
	var b strings.Builder
	b.WriteString("## New event submission\n\n")
	b.WriteString(renderSummary(sub))
	b.WriteString("\n---\n")
	fmt.Fprintf(&b, "**Submitted by:** %s", oneLine(sub.SubmitterName))
	if sub.SubmitterEmail != "" {
		fmt.Fprintf(&b, " (%s)", sub.SubmitterEmail)
	}
	fmt.Fprintf(&b, "\n**Submission ID:** `%s`\n\n", submissionID)
	b.WriteString("The document is committed as a draft. Review it, set `draft: false` and merge to publish.\n")
	return b.String()
}
