package common

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", NewNotFoundError("notification", "n-1"), http.StatusNotFound},
		{"wrapped not found", fmt.Errorf("fetching: %w", NewNotFoundError("notification", "n-1")), http.StatusNotFound},
		{"validation", NewValidationError("bad"), http.StatusBadRequest},
		{"unauthorized", NewUnauthorizedError(""), http.StatusUnauthorized},
		{"conflict", NewConflictError("notification", "k"), http.StatusConflict},
		{"provider", NewProviderError("email", "down"), http.StatusBadGateway},
		{"channel send", NewChannelSendError("email", errors.New("timeout")), http.StatusBadGateway},
		{"unknown channel", NewUnknownChannelError("sms"), http.StatusInternalServerError},
		{"store", NewStoreError("update", errors.New("conn reset")), http.StatusInternalServerError},
		{"plain", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusFor(tt.err))
		})
	}
}

func TestHandleError_HidesInternalDetails(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	HandleError(c, NewStoreError("update", errors.New("password=secret")))

	require.Equal(t, http.StatusInternalServerError, w.Code)
	var resp APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Equal(t, "internal server error", resp.Error.Message)
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("dial tcp: refused")

	assert.ErrorIs(t, NewChannelSendError("email", cause), cause)
	assert.ErrorIs(t, NewStoreError("create", cause), cause)
	assert.Equal(t, "email channel requires recipient_email but payload has none",
		NewMissingRecipientAddressError("email", "recipient_email").Error())
}
