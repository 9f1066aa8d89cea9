package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetLogFieldsOrder(t *testing.T) {
	ctx := context.Background()
	ctx = WithServiceName(ctx, "submission-service")
	ctx = WithSubmissionID(ctx, "abc123")
	ctx = WithRequestID(ctx, "req-1")

	assert.Equal(t, []interface{}{
		"request_id", "req-1",
		"submission_id", "abc123",
		"service_name", "submission-service",
	}, GetLogFields(ctx))
}

func TestGetLogFieldsEmpty(t *testing.T) {
	assert.Empty(t, GetLogFields(context.Background()))
	assert.Equal(t, "", GetRequestID(context.Background()))
}
