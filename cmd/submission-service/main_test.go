package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventintake/internal/logger"
	"eventintake/internal/submission"
)

func previewService() *submission.Service {
	now := time.Date(2025, 6, 15, 9, 0, 0, 0, time.UTC)
	return submission.NewService(nil, nil, submission.NewSynthesizer("content/events"), logger.NopLogger(),
		submission.WithClock(func() time.Time { return now }),
	)
}

func TestReadSubmissionUnwrapsLegacyEnvelope(t *testing.T) {
	input, err := readSubmission(strings.NewReader(`{"payload":{"data":{"title":"Beach cleanup","event_type[]":["volunteer"]}}}`))
	require.NoError(t, err)
	assert.Equal(t, "Beach cleanup", input["title"])
	assert.Equal(t, []string{"volunteer"}, input.Strings("event_type"))
}

func TestReadSubmissionRejectsNonObject(t *testing.T) {
	_, err := readSubmission(strings.NewReader(`[1]`))
	assert.Error(t, err)
}

func TestWritePreview(t *testing.T) {
	input, err := readSubmission(strings.NewReader(`{
		"title": "Beach Cleanup",
		"start_date": "2025-07-04",
		"start_time": "09:00",
		"location": "North Beach",
		"description": "Bring gloves."
	}`))
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, writePreview(&out, previewService(), input, "cli"))

	assert.True(t, strings.HasPrefix(out.String(), "# content/events/2025-07-04-beach-cleanup.md\n---\n"))
	assert.Contains(t, out.String(), `title: "Beach Cleanup"`)
}

func TestWritePreviewReportsViolations(t *testing.T) {
	input, err := readSubmission(strings.NewReader(`{"title":"No date"}`))
	require.NoError(t, err)

	var out bytes.Buffer
	err = writePreview(&out, previewService(), input, "cli")
	require.Error(t, err)
	assert.Contains(t, out.String(), "start_date: ")
	assert.Contains(t, out.String(), "(missing_fields)")
}
