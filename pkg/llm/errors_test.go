package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		want      ErrorType
		transient bool
	}{
		{"nil", nil, ErrUnknown, true},
		{"api 401", &APIError{StatusCode: 401, Message: "bad key"}, ErrAuthFailed, false},
		{"api 429 wrapped", fmt.Errorf("chat: %w", &APIError{StatusCode: 429}), ErrRateLimit, true},
		{"api 500", &APIError{StatusCode: 503}, ErrServer, true},
		{"api 400", &APIError{StatusCode: 400}, ErrBadRequest, false},
		{"deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), ErrTimeout, true},
		{"refused", errors.New("dial tcp: connection refused"), ErrNetwork, true},
		{"text 429", errors.New("status 429 Too Many Requests"), ErrRateLimit, true},
		{"other", errors.New("weird"), ErrUnknown, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyError(tt.err)
			assert.Equal(t, tt.want, got, "got %s", got)
			assert.Equal(t, tt.transient, got.Transient())
		})
	}
}

func TestJobStatus_IsTerminal(t *testing.T) {
	terminal := []JobStatus{JobSucceeded, JobFailed, JobCancelled}
	for _, s := range terminal {
		assert.True(t, s.IsTerminal(), s)
	}

	nonTerminal := []JobStatus{JobPending, JobValidatingFiles, JobQueued, JobRunning, "unknown"}
	for _, s := range nonTerminal {
		assert.False(t, s.IsTerminal(), s)
	}
}

func TestApplyOptions(t *testing.T) {
	o := ApplyOptions(WithModel("gpt-4"), WithTemperature(0), WithMaxTokens(500), nil)

	assert.Equal(t, "gpt-4", o.Model)
	if assert.NotNil(t, o.Temperature) {
		assert.Equal(t, 0.0, *o.Temperature)
	}
	assert.Equal(t, 500, o.MaxTokens)

	empty := ApplyOptions()
	assert.Nil(t, empty.Temperature)
}
