package submission

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"eventintake/internal/constants"
	"eventintake/internal/logger"
	"eventintake/internal/quota"
	apperrors "eventintake/pkg/errors"
	"eventintake/pkg/logging"
)

const successMessage = "Event submitted successfully! It will be reviewed before being published."

type Submitter interface {
	Submit(ctx context.Context, input SubmissionInput, identity string) (Result, error)
}

type Handler struct {
	service      Submitter
	logger       logger.Logger
	maxBodyBytes int64
	identity     func(*http.Request) string
}

func NewHandler(service Submitter, log logger.Logger, maxBodyBytes int64) *Handler {
	if maxBodyBytes <= 0 {
		maxBodyBytes = constants.DefaultMaxBodyBytes
	}
	return &Handler{
		service:      service,
		logger:       log,
		maxBodyBytes: maxBodyBytes,
		identity:     quota.Identity,
	}
}

// RegisterRoutes binds every method on submitPath so non-POST requests get a
// proper 405 instead of the router's 404.
func (h *Handler) RegisterRoutes(router gin.IRoutes, submitPath string) {
	router.Any(submitPath, h.SubmitEvent)
}

func (h *Handler) SubmitEvent(c *gin.Context) {
	switch c.Request.Method {
	case http.MethodOptions:
		c.Status(http.StatusOK)
		return
	case http.MethodPost:
	default:
		c.Header("Allow", http.MethodPost)
		c.JSON(http.StatusMethodNotAllowed, apperrors.ToErrorResponse(apperrors.ErrMethodNotAllowed))
		return
	}

	raw, err := h.decodeBody(c)
	if err != nil {
		c.JSON(apperrors.ToHTTPStatus(err), apperrors.ToErrorResponse(err))
		return
	}

	identity := h.identity(c.Request)
	ctx := logging.WithClientIdentity(c.Request.Context(), identity)
	if requestID := c.GetString("request_id"); requestID != "" {
		ctx = logging.WithRequestID(ctx, requestID)
	}

	result, err := h.service.Submit(ctx, NormalizeInput(raw), identity)
	if err != nil {
		h.logger.ErrorwCtx(ctx, "Event submission failed", "error", err)
		c.JSON(apperrors.ToHTTPStatus(err), apperrors.ToErrorResponse(err))
		return
	}

	switch result.Outcome {
	case OutcomeRateLimited:
		secs := result.Decision.RetryAfterSeconds()
		c.Header("Retry-After", strconv.Itoa(secs))
		c.JSON(http.StatusTooManyRequests, apperrors.ToErrorResponse(
			apperrors.ErrRateLimited.WithDetail("retryAfterSeconds", secs),
		))

	case OutcomeInvalid:
		c.JSON(http.StatusBadRequest, apperrors.ToErrorResponse(validationError(result.Violations)))

	case OutcomeAccepted:
		body := gin.H{
			"success":      true,
			"message":      successMessage,
			"submissionId": result.Receipt.SubmissionID,
			"filename":     result.Receipt.Path,
			"path":         result.Receipt.Path,
		}
		if result.Receipt.PullRequestURL != "" {
			body["pullRequestUrl"] = result.Receipt.PullRequestURL
		}
		c.JSON(http.StatusOK, body)

	default:
		h.logger.ErrorwCtx(ctx, "Unexpected submission outcome", "outcome", result.Outcome)
		c.JSON(http.StatusInternalServerError, apperrors.ToErrorResponse(apperrors.ErrInternal))
	}
}

func (h *Handler) decodeBody(c *gin.Context) (map[string]any, error) {
	body := http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBodyBytes)

	var raw map[string]any
	if err := json.NewDecoder(body).Decode(&raw); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, apperrors.ErrBadRequest.WithMessage("Request body too large").WithCause(err)
		}
		return nil, apperrors.ErrBadRequest.WithMessage("Request body must be a JSON object").WithCause(err)
	}
	if raw == nil {
		raw = map[string]any{}
	}
	return raw, nil
}

func validationError(verrs *ValidationErrors) *apperrors.Error {
	if verrs == nil {
		return apperrors.ErrValidation
	}
	if len(verrs.MissingFields) > 0 {
		return apperrors.ErrValidation.
			WithMessage("Missing required fields").
			WithDetail("missingFields", verrs.MissingFields).
			WithDetail("errors", verrs.Violations)
	}
	return apperrors.ErrValidation.
		WithMessage(verrs.Error()).
		WithDetail("errors", verrs.Violations)
}
