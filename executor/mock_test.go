package executor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockForTest(t *testing.T) *MockBackend {
	t.Helper()
	return NewMockBackend(DefaultConfig(), nil, nil)
}

func TestMockBackend_ValidScript(t *testing.T) {
	b, err := New(Config{Kind: KindMock}, nil, nil)
	require.NoError(t, err)

	script := "Get-Process | Sort-Object CPU"
	result, err := b.Execute(context.Background(), &Request{Script: script, SessionID: "s-1"})
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Contains(t, result.Output, script, "output must reference the script that would run")
	assert.Empty(t, result.Error)
	assert.True(t, result.Validation.Valid)
	assert.Equal(t, "s-1", result.SessionID)
}

func TestMockBackend_Deterministic(t *testing.T) {
	b, err := New(Config{Kind: KindMock}, nil, nil)
	require.NoError(t, err)

	req := &Request{Script: "Get-Date", SessionID: "fixed"}
	first, err := b.Execute(context.Background(), req)
	require.NoError(t, err)
	second, err := b.Execute(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestMockBackend_InvalidScript(t *testing.T) {
	b, err := New(Config{Kind: KindMock}, nil, nil)
	require.NoError(t, err)

	result, err := b.Execute(context.Background(), &Request{Script: "rm -rf /"})
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.False(t, result.Validation.Valid)
	assert.Contains(t, result.Error, "validation failed")
	assert.Empty(t, result.Output, "no execution is even simulated for invalid scripts")
	assert.NotEmpty(t, result.SessionID, "a fresh session id is generated when absent")
}

func TestMockBackend_NilRequest(t *testing.T) {
	_, err := newMockForTest(t).Execute(context.Background(), nil)
	assert.Error(t, err)
}

func TestMockBackend_HealthAndTermination(t *testing.T) {
	b := newMockForTest(t)
	assert.True(t, b.HealthCheck(context.Background()))
	assert.NotPanics(t, func() { b.TerminateSession(context.Background(), "any") })
}
