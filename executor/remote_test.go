package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func remoteConfig(endpoint string) Config {
	cfg := DefaultConfig()
	cfg.Kind = KindRemote
	cfg.Endpoint = endpoint
	return cfg
}

func poolResponse(stdout, stderr, execResult string) string {
	body, _ := json.Marshal(map[string]any{
		"properties": map[string]string{
			"stdout":          stdout,
			"stderr":          stderr,
			"executionResult": execResult,
		},
	})
	return string(body)
}

func TestRemoteBackend_InvalidScriptMakesNoNetworkCall(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		fmt.Fprint(w, poolResponse("unreachable", "", ""))
	}))
	defer srv.Close()

	b := NewRemoteBackend(remoteConfig(srv.URL), nil, nil)
	result, err := b.Execute(context.Background(), &Request{Script: "rm -rf /"})
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.False(t, result.Validation.Valid)
	assert.Equal(t, int64(0), calls.Load(), "invalid scripts must never reach the backend")
}

func TestRemoteBackend_ValidScript(t *testing.T) {
	var gotSession, gotCode, gotInputType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/code/execute", r.URL.Path)
		gotSession = r.Header.Get("X-Session-Id")

		var req remoteRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		gotCode = req.Properties.Code
		gotInputType = req.Properties.CodeInputType
		assert.Equal(t, "synchronous", req.Properties.ExecutionType)
		assert.Greater(t, req.Properties.TimeoutInSeconds, 0)

		fmt.Fprint(w, poolResponse("process list", "", ""))
	}))
	defer srv.Close()

	b := NewRemoteBackend(remoteConfig(srv.URL), nil, nil)
	result, err := b.Execute(context.Background(), &Request{Script: "Get-Process", SessionID: "turn-7"})
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, "process list", result.Output)
	assert.Equal(t, "turn-7", gotSession)
	assert.Equal(t, "Get-Process", gotCode)
	assert.Equal(t, "inline", gotInputType)
	assert.Equal(t, "turn-7", result.SessionID)
	assert.Greater(t, result.Duration, time.Duration(0))
}

func TestRemoteBackend_StderrMeansFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, poolResponse("partial", "term not recognized", ""))
	}))
	defer srv.Close()

	b := NewRemoteBackend(remoteConfig(srv.URL), nil, nil)
	result, err := b.Execute(context.Background(), &Request{Script: "Get-Process"})
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Equal(t, "term not recognized", result.Error)
	assert.Equal(t, "partial", result.Output)
}

func TestRemoteBackend_StructuredData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, poolResponse("", "", `{"cpu": 42.5}`))
	}))
	defer srv.Close()

	b := NewRemoteBackend(remoteConfig(srv.URL), nil, nil)
	result, err := b.Execute(context.Background(), &Request{Script: "Get-Process"})
	require.NoError(t, err)

	require.True(t, result.Success)
	m, ok := result.StructuredData.(map[string]any)
	require.True(t, ok, "executionResult should parse as JSON")
	assert.Equal(t, 42.5, m["cpu"])
}

func TestRemoteBackend_TruncatesLongOutput(t *testing.T) {
	long := strings.Repeat("x", 4096)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, poolResponse(long, "", ""))
	}))
	defer srv.Close()

	cfg := remoteConfig(srv.URL)
	cfg.MaxOutputBytes = 100
	b := NewRemoteBackend(cfg, nil, nil)

	result, err := b.Execute(context.Background(), &Request{Script: "Get-Process"})
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Contains(t, result.Output, "[output truncated]")
	assert.Less(t, len(result.Output), len(long))
}

func TestRemoteBackend_OutputLargerThanCapStillDecodes(t *testing.T) {
	// The raw response exceeds MaxOutputBytes; the cap must land on the
	// parsed output, not break the JSON decode.
	long := strings.Repeat("x", DefaultConfig().MaxOutputBytes+16*1024)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, poolResponse(long, "", ""))
	}))
	defer srv.Close()

	b := NewRemoteBackend(remoteConfig(srv.URL), nil, nil)
	result, err := b.Execute(context.Background(), &Request{Script: "Get-Process"})
	require.NoError(t, err)

	require.True(t, result.Success, "oversized output is truncated, not a decode failure: %s", result.Error)
	assert.True(t, strings.HasSuffix(result.Output, "[output truncated]"))
	assert.Less(t, len(result.Output), len(long))
}

func TestRemoteBackend_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "pool exhausted", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	b := NewRemoteBackend(remoteConfig(srv.URL), nil, nil)
	result, err := b.Execute(context.Background(), &Request{Script: "Get-Process"})
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "status=503")
}

func TestRemoteBackend_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		fmt.Fprint(w, poolResponse("late", "", ""))
	}))
	defer srv.Close()

	b := NewRemoteBackend(remoteConfig(srv.URL), nil, nil)
	result, err := b.Execute(context.Background(), &Request{Script: "Get-Process", Timeout: 50 * time.Millisecond})
	require.NoError(t, err, "timeouts are encoded in the result, never thrown")

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "timed out")
	assert.Greater(t, result.Duration, time.Duration(0))
}

func TestRemoteBackend_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	b := NewRemoteBackend(remoteConfig(srv.URL), nil, nil)
	result, err := b.Execute(context.Background(), &Request{Script: "Get-Process"})
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "transport failure")
}

func TestRemoteBackend_HealthCheck(t *testing.T) {
	t.Run("healthy pool", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodGet, r.Method)
			assert.Equal(t, "/sessions", r.URL.Path)
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		b := NewRemoteBackend(remoteConfig(srv.URL), nil, nil)
		assert.True(t, b.HealthCheck(context.Background()))
	})

	t.Run("unreachable pool", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		srv.Close()

		b := NewRemoteBackend(remoteConfig(srv.URL), nil, nil)
		assert.False(t, b.HealthCheck(context.Background()))
	})
}

func TestRemoteBackend_TerminateSession(t *testing.T) {
	var gotMethod, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	b := NewRemoteBackend(remoteConfig(srv.URL), nil, nil)
	b.TerminateSession(context.Background(), "turn-9")

	assert.Equal(t, http.MethodDelete, gotMethod)
	assert.Equal(t, "/sessions/turn-9", gotPath)

	// Failure stays best-effort: a dead pool must not panic or error.
	srv.Close()
	assert.NotPanics(t, func() { b.TerminateSession(context.Background(), "turn-9") })
}
