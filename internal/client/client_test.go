package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/toolgate/toolgate/pkg/types"
)

func TestCheckSendsAuthAndDecodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/check", r.URL.Path)
		require.Equal(t, "secret", r.Header.Get("X-API-Key"))
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "terminal", body["tool_name"])
		_ = json.NewEncoder(w).Encode(CheckResult{Decision: types.DecisionDeny, Reason: "Blocked by configured deny rule"})
	}))
	defer srv.Close()

	c := New(srv.URL, "secret")
	res, err := c.Check(context.Background(), "terminal", "rm -rf build", false, "")
	require.NoError(t, err)
	require.Equal(t, types.DecisionDeny, res.Decision)
}

func TestResolveApprovalErrorIncludesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"approval not found"}`))
	}))
	defer srv.Close()

	err := New(srv.URL, "").ResolveApproval(context.Background(), "missing", "allow", "")
	require.Error(t, err)
	require.Contains(t, err.Error(), "approval not found")
}

func TestListApprovalsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	pending, err := New(srv.URL, "").ListApprovals(context.Background())
	require.NoError(t, err)
	require.Empty(t, pending)
}
