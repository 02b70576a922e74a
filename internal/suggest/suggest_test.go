package suggest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salone/internal/core"
	"salone/internal/log"
)

func newClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(Config{APIKey: "sk-test", BaseURL: srv.URL + "/v1/", Timeout: 2 * time.Second}, log.Discard())
}

func TestSuggest_Success(t *testing.T) {
	var got chatRequest
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"1. Aumentare i prezzi"}}]}`))
	})

	data := core.PeriodDataset{"Gennaio_2024": {{"PARRUCCHIERE"}, {"Anna", "Taglio", "1", "1", "50"}}}
	req, err := NewRequest(data, core.AnalysisResult{Overall: core.PeriodAnalysis{TotalRevenue: 50}})
	require.NoError(t, err)

	text, err := c.Suggest(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "1. Aumentare i prezzi", text)

	assert.Equal(t, DefaultModel, got.Model)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, systemPrompt, got.Messages[0].Content)
	assert.Equal(t, "user", got.Messages[1].Role)
	assert.Contains(t, got.Messages[1].Content, "Genera 3-5 suggerimenti")
	assert.Contains(t, got.Messages[1].Content, `Dati: {"Gennaio_2024":[["PARRUCCHIERE"],["Anna","Taglio","1","1","50"]]}`)
	assert.Contains(t, got.Messages[1].Content, `"overall":{"totalRevenue":50`)
}

func TestSuggest_MissingKey(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL}, nil)
	assert.False(t, c.Enabled())
	_, err := c.Suggest(context.Background(), Request{})
	assert.ErrorIs(t, err, ErrMissingAPIKey)
	assert.False(t, called)
}

func TestSuggest_StatusError(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"Rate limit reached"}}`))
	})
	_, err := c.Suggest(context.Background(), Request{})

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusTooManyRequests, se.StatusCode)
	assert.Equal(t, "Rate limit reached", se.Message)
	assert.Contains(t, se.Error(), "429")
}

func TestSuggest_NoChoices(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	})
	_, err := c.Suggest(context.Background(), Request{})
	assert.ErrorIs(t, err, ErrUnexpectedResponse)
}

func TestSuggest_BadJSON(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>`))
	})
	_, err := c.Suggest(context.Background(), Request{})
	assert.ErrorContains(t, err, "decode chat response")
}

func TestSuggest_ContextCancelled(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.Suggest(ctx, Request{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNew_Defaults(t *testing.T) {
	c := New(Config{APIKey: " k "}, nil)
	assert.Equal(t, DefaultBaseURL+"/chat/completions", c.endpoint)
	assert.Equal(t, DefaultModel, c.model)
	assert.Equal(t, "k", c.apiKey)
	assert.True(t, strings.HasPrefix(c.endpoint, "https://"))
}
