package assistant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestExtractReply(t *testing.T) {
	cases := map[string]string{
		`"Hay 3 tareas pendientes"`:               "Hay 3 tareas pendientes",
		`{"output":"Listo"}`:                      "Listo",
		`{"output":"","message":"Desde message"}`: "Desde message",
		`{"text":"Solo texto"}`:                   "Solo texto",
		`{"status":"ok"}`:                         `{"status":"ok"}`,
		`[1,2]`:                                   `[1,2]`,
		"  {\"message\":\"con espacios\"}\n":      "con espacios",
	}
	for raw, want := range cases {
		got, err := ExtractReply([]byte(raw))
		require.NoError(t, err, raw)
		require.Equal(t, want, got, raw)
	}

	_, err := ExtractReply([]byte("<html>"))
	require.Error(t, err)
}

func TestAskPostsMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "que falta en obra civil?", body["message"])
		_, _ = w.Write([]byte(`{"output":"Falta la pintura"}`))
	}))
	defer srv.Close()

	reply, err := NewClient(srv.URL, time.Second).Ask(context.Background(), "que falta en obra civil?")
	require.NoError(t, err)
	require.Equal(t, "Falta la pintura", reply)
}

func TestAskRejectsEmptyMessage(t *testing.T) {
	_, err := NewClient("http://127.0.0.1:1", time.Second).Ask(context.Background(), "   ")
	require.ErrorIs(t, err, ErrEmptyMessage)
}

func TestAskReportsWebhookStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second).Ask(context.Background(), "hola")
	var webhookErr *WebhookError
	require.ErrorAs(t, err, &webhookErr)
	require.Equal(t, http.StatusBadGateway, webhookErr.Status)
}
