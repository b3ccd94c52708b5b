package dnscheck

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"crm-server/internal/observability"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup_ReturnsAnswerData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "send.acme.fr", r.URL.Query().Get("name"))
		assert.Equal(t, "TXT", r.URL.Query().Get("type"))
		assert.Equal(t, "application/dns-json", r.Header.Get("Accept"))

		w.Header().Set("Content-Type", "application/dns-json")
		w.Write([]byte(`{"Status":0,"Answer":[{"name":"send.acme.fr","type":16,"data":"\"v=spf1 ~all\""}]}`))
	}))
	defer server.Close()

	resolver := NewResolver(server.URL, observability.NewLogger())

	answers, err := resolver.Lookup(context.Background(), "send.acme.fr", "TXT")

	require.NoError(t, err)
	require.Len(t, answers, 1)
	assert.Equal(t, `"v=spf1 ~all"`, answers[0])
}

func TestLookup_MissingAnswerSectionIsEmptyNotError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"Status":3}`))
	}))
	defer server.Close()

	resolver := NewResolver(server.URL, observability.NewLogger())

	answers, err := resolver.Lookup(context.Background(), "missing.acme.fr", "TXT")

	require.NoError(t, err)
	assert.Empty(t, answers)
}

func TestLookup_NonOKStatusIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	resolver := NewResolver(server.URL, observability.NewLogger())

	_, err := resolver.Lookup(context.Background(), "send.acme.fr", "MX")

	assert.Error(t, err)
}
