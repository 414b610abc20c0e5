package gmail

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"

	emaildomain "email-analyzer-backend/internal/email/domain"
)

func TestIsAuthError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "invalid grant", err: &oauth2.RetrieveError{ErrorCode: "invalid_grant", Response: &http.Response{StatusCode: http.StatusBadRequest}}, want: true},
		{name: "token endpoint 401", err: &oauth2.RetrieveError{Response: &http.Response{StatusCode: http.StatusUnauthorized}}, want: true},
		{name: "token endpoint 503", err: &oauth2.RetrieveError{Response: &http.Response{StatusCode: http.StatusServiceUnavailable}}, want: false},
		{name: "token endpoint 500 wrapped", err: fmt.Errorf("refresh: %w", &oauth2.RetrieveError{Response: &http.Response{StatusCode: http.StatusInternalServerError}}), want: false},
		{name: "no response", err: &oauth2.RetrieveError{}, want: false},
		{name: "api 401", err: &googleapi.Error{Code: http.StatusUnauthorized}, want: true},
		{name: "api 500", err: &googleapi.Error{Code: http.StatusInternalServerError}, want: false},
		{name: "sentinel", err: emaildomain.ErrAuthRequired, want: true},
		{name: "network", err: errors.New("connection reset"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isAuthError(tt.err))
		})
	}
}

func TestWrapErrorKeepsTransientTokenFailuresOutOfReauth(t *testing.T) {
	outage := &oauth2.RetrieveError{Response: &http.Response{StatusCode: http.StatusBadGateway}}
	assert.NotErrorIs(t, wrapError(outage, "failed to list messages"), emaildomain.ErrAuthRequired)

	revoked := &oauth2.RetrieveError{ErrorCode: "invalid_grant", Response: &http.Response{StatusCode: http.StatusBadRequest}}
	assert.ErrorIs(t, wrapError(revoked, "failed to list messages"), emaildomain.ErrAuthRequired)
}
