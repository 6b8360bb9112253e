package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendPostsPayload(t *testing.T) {
	var got map[string]any
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
	}))
	defer ts.Close()

	h := Hook{URL: ts.URL}
	require.NoError(t, h.Send(context.Background(), "Countdown: Birthday", "1h 0m left!"))
	assert.Equal(t, "Countdown: Birthday", got["title"])
	assert.Equal(t, "1h 0m left!", got["body"])
}

func TestSendFailsOnHTTPError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer ts.Close()

	h := Hook{URL: ts.URL}
	assert.Error(t, h.Send(context.Background(), "t", "b"))
}

func TestSendRequiresURL(t *testing.T) {
	assert.Error(t, Hook{}.Send(context.Background(), "t", "b"))
}
