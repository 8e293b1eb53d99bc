package model

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockModel_CannedAndFallback(t *testing.T) {
	m := NewMockModel("mock-1")
	m.AddResponse("rank these", `["1","0"]`)

	resp, err := m.Generate(context.Background(), UserPrompt("sys", "rank these"))
	require.NoError(t, err)
	assert.Equal(t, `["1","0"]`, resp.Text)
	assert.Equal(t, "stop", resp.FinishReason)

	resp, err = m.Generate(context.Background(), UserPrompt("", "other"))
	require.NoError(t, err)
	assert.Equal(t, "Mock response to: other", resp.Text)

	m.SetFallback("[]")
	resp, err = m.Generate(context.Background(), UserPrompt("", "other"))
	require.NoError(t, err)
	assert.Equal(t, "[]", resp.Text)

	calls := m.Calls()
	require.Len(t, calls, 3)
	assert.Equal(t, "sys", calls[0].Instructions)
	assert.Equal(t, Info{Name: "mock-1", Provider: "mock"}, m.Info())
}

func TestMockModel_Errors(t *testing.T) {
	m := NewMockModel("mock")
	_, err := m.Generate(context.Background(), Request{})
	assert.Error(t, err)

	m.SetError(errors.New("unavailable"))
	_, err = m.Generate(context.Background(), UserPrompt("", "x"))
	assert.EqualError(t, err, "unavailable")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m.SetError(nil)
	_, err = m.Generate(ctx, UserPrompt("", "x"))
	assert.ErrorIs(t, err, context.Canceled)
}
