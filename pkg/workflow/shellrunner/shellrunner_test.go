package shellrunner

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_CapturesStdoutAndExitCode(t *testing.T) {
	r := Default{}
	code, stdout, _, err := r.Run(context.Background(), "echo -n hello", nil, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.Equal(t, "hello", stdout)
}

func TestRun_NonZeroExitIsNotAnError(t *testing.T) {
	r := Default{}
	code, _, stderr, err := r.Run(context.Background(), "echo boom >&2; exit 3", nil, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 3, code)
	assert.Equal(t, "boom\n", stderr)
}

func TestRun_DeadlineExceededReturnsError(t *testing.T) {
	r := Default{}
	_, _, _, err := r.Run(context.Background(), "sleep 2", nil, time.Now().Add(10*time.Millisecond))
	assert.Error(t, err)
}

func TestRun_CustomEnvIsAppendedNotReplaced(t *testing.T) {
	r := Default{}
	_, stdout, _, err := r.Run(context.Background(), "echo $HOME:$GREETING", map[string]string{"GREETING": "hi"}, time.Time{})
	require.NoError(t, err)
	assert.Contains(t, stdout, ":hi")
	assert.NotEqual(t, ":hi\n", stdout) // $HOME from the inherited environment survived
}
