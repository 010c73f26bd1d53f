package news

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"crypto-alert-dashboard/pkg/types"
)

func TestClient_Search(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/search", r.URL.Path)
		require.Equal(t, "Bitcoin", r.URL.Query().Get("q"))
		require.Equal(t, "test-key", r.URL.Query().Get("token"))
		w.Write([]byte(`{"articles":[{"title":"BTC rallies","description":"desc","url":"https://example.com/a","image":"https://example.com/i.png","publishedAt":"2025-06-01T10:00:00Z","source":{"name":"Example News"}}]}`))
	}))
	defer server.Close()

	client := NewClient(types.NewsConfig{BaseURL: server.URL, APIKey: "test-key"}, types.NetworkConfig{})

	articles, err := client.Search(context.Background(), "Bitcoin")
	require.NoError(t, err)
	require.Len(t, articles, 1)
	require.Equal(t, "BTC rallies", articles[0].Title)
	require.Equal(t, "Example News", articles[0].Source)
}

func TestClient_SearchWithoutAPIKey(t *testing.T) {
	client := NewClient(types.NewsConfig{}, types.NetworkConfig{})

	_, err := client.Search(context.Background(), "Bitcoin")
	require.ErrorIs(t, err, ErrAPIKeyMissing)
}

func TestClient_SearchBadStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	client := NewClient(types.NewsConfig{BaseURL: server.URL, APIKey: "bad"}, types.NetworkConfig{})

	_, err := client.Search(context.Background(), "Bitcoin")
	require.Error(t, err)
}
