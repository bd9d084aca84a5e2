package commands

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_DispatchesRegisteredHandler(t *testing.T) {
	r := NewRegistry()
	r.Register("docker build", func(ctx context.Context, params map[string]any, deadline time.Time) (int, string, string, error) {
		return 0, "built " + params["tag"].(string), "", nil
	})

	code, stdout, _, err := r.Dispatch(context.Background(), "docker build", map[string]any{"tag": "v1"}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.Equal(t, "built v1", stdout)
}

func TestRegistry_UnknownCommandErrors(t *testing.T) {
	r := NewRegistry()
	_, _, _, err := r.Dispatch(context.Background(), "does not exist", nil, time.Time{})
	assert.Error(t, err)
}
