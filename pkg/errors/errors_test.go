package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromStatusCode(t *testing.T) {
	tests := []struct {
		code     int
		expected ErrorType
	}{
		{http.StatusTooManyRequests, ErrorTypeRateLimit},
		{http.StatusUnauthorized, ErrorTypeAuth},
		{http.StatusNotFound, ErrorTypeNotFound},
		{http.StatusBadGateway, ErrorTypeServerError},
		{http.StatusUnprocessableEntity, ErrorTypeUnknown},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.expected, FromStatusCode(tt.code))
		})
	}
}

func TestIsRateLimited(t *testing.T) {
	err := fmt.Errorf("publish: %w", New(ErrorTypeRateLimit, 429, "slow down"))
	assert.True(t, IsRateLimited(err))
	assert.False(t, IsRateLimited(stderrors.New("plain")))
}

func TestIsAccepted(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"decode failure after 200", New(ErrorTypeParsing, 200, "failed to parse JSON"), true},
		{"wrapped decode failure after 201", fmt.Errorf("post: %w", New(ErrorTypeParsing, 201, "bad")), true},
		{"encode failure before sending", New(ErrorTypeParsing, 0, "failed to encode request"), false},
		{"rate limited", New(ErrorTypeRateLimit, 429, "slow down"), false},
		{"server error", New(ErrorTypeServerError, 500, "boom"), false},
		{"plain error", stderrors.New("dial tcp: refused"), false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsAccepted(tt.err))
		})
	}
}
