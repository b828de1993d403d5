package sinks

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSecureClientBlocksLoopbackByDefault(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewSecureClient().HTTPClient(ChatWebhookTimeout)
	_, err := client.Get(server.URL)
	require.Error(t, err)
	require.Contains(t, err.Error(), "blocked private IP")
}

func TestSecureClientAllowsAllowlistedLoopback(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewSecureClient("127.0.0.0/8").HTTPClient(ChatWebhookTimeout)
	resp, err := client.Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSecureClientStopsAfterMaxRedirects(t *testing.T) {
	hits := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		http.Redirect(w, r, r.URL.String()+"x", http.StatusFound)
	}))
	defer server.Close()

	client := NewSecureClient("127.0.0.0/8").HTTPClient(ChatWebhookTimeout)
	_, err := client.Get(server.URL)
	require.Error(t, err)
	require.True(t, strings.Contains(err.Error(), "stopped after"))
	require.Equal(t, maxRedirects, hits)
}

func TestSecureClientBlocksRedirectOutsideAllowlist(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "http://169.254.169.254/latest/meta-data/", http.StatusFound)
	}))
	defer server.Close()

	client := NewSecureClient("127.0.0.0/8").HTTPClient(ChatWebhookTimeout)
	_, err := client.Get(server.URL)
	require.Error(t, err)
	require.Contains(t, err.Error(), "link-local")
}
