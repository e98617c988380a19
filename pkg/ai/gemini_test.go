package ai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSendsPromptAndReturnsText(t *testing.T) {
	var captured generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/models/gemini-test:generateContent", r.URL.Path)
		assert.Equal(t, "k3y", r.URL.Query().Get("key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"  {\"department\":\"Security\"}  "}]}}]}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL+"/", "gemini-test", "k3y", time.Second)
	text, err := client.Generate(context.Background(), "classify this")
	require.NoError(t, err)

	assert.Equal(t, `{"department":"Security"}`, text)
	require.Len(t, captured.Contents, 1)
	assert.Equal(t, "classify this", captured.Contents[0].Parts[0].Text)
	assert.Equal(t, DefaultGenerationConfig, captured.GenerationConfig)
}

func TestGenerateErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{name: "upstream failure", status: http.StatusServiceUnavailable, body: `{"error":"overloaded"}`},
		{name: "no candidates", status: http.StatusOK, body: `{"candidates":[]}`, wantErr: ErrEmptyResponse},
		{name: "blank text", status: http.StatusOK, body: `{"candidates":[{"content":{"parts":[{"text":"  "}]}}]}`, wantErr: ErrEmptyResponse},
		{name: "garbage", status: http.StatusOK, body: `not json`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewClient(srv.URL, "m", "k", time.Second).Generate(context.Background(), "p")
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestGenerateWithoutKey(t *testing.T) {
	client := NewClient("http://unused", "m", "", time.Second)
	assert.False(t, client.Enabled())
	_, err := client.Generate(context.Background(), "p")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestGenerateRespectsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := NewClient(srv.URL, "m", "k", 5*time.Second).Generate(ctx, "p")
	assert.Error(t, err)
}

func TestStripCodeFences(t *testing.T) {
	assert.Equal(t, `{"a":1}`, StripCodeFences("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, StripCodeFences("```\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, StripCodeFences(`{"a":1}`))
}
