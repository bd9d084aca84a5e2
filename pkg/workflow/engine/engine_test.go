package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsctl/opsctl/pkg/logger"
	"github.com/opsctl/opsctl/pkg/workflow/commands"
	"github.com/opsctl/opsctl/pkg/workflow/result"
	"github.com/opsctl/opsctl/pkg/workflow/shellrunner"
)

const sequentialYAML = `
name: deploy
steps:
  - name: build
    command: docker build
  - name: push
    command: docker push
`

const dagYAML = `
name: deploy
steps:
  - name: build
    command: docker build
  - name: push
    command: docker push
    depends_on: [build]
  - name: notify
    command: slack notify
    depends_on: [push]
`

func newEngineWithFakeRegistry() *Engine {
	registry := commands.NewRegistry()
	registry.Register("docker build", fakeHandler("built"))
	registry.Register("docker push", fakeHandler("pushed"))
	registry.Register("slack notify", fakeHandler("notified"))
	return &Engine{Dispatcher: registry, Shell: shellrunner.Default{}, Logger: logger.Nop(), Observer: NopObserver{}}
}

func fakeHandler(stdout string) commands.Handler {
	return func(ctx context.Context, params map[string]any, deadline time.Time) (int, string, string, error) {
		return 0, stdout, "", nil
	}
}

func TestEngine_RunSequentialSucceeds(t *testing.T) {
	eng := newEngineWithFakeRegistry()
	wr, err := eng.Run(context.Background(), []byte(sequentialYAML), RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, result.StatusSucceeded, wr.Status)
	require.Len(t, wr.Entries, 2)
}

func TestEngine_RunDAGSucceedsInOrder(t *testing.T) {
	eng := newEngineWithFakeRegistry()
	wr, err := eng.Run(context.Background(), []byte(dagYAML), RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, result.StatusSucceeded, wr.Status)
	require.Len(t, wr.Entries, 3)
	assert.Equal(t, "build", wr.Entries[0].Name())
	assert.Equal(t, "push", wr.Entries[1].Name())
	assert.Equal(t, "notify", wr.Entries[2].Name())
}

func TestEngine_DryRunNeverDispatches(t *testing.T) {
	eng := newEngineWithFakeRegistry()
	wr, err := eng.Run(context.Background(), []byte(sequentialYAML), RunOptions{DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, result.StatusSucceeded, wr.Status)
	for _, e := range wr.Entries {
		require.NotNil(t, e.Step)
		assert.True(t, e.Step.DryRun)
	}
}

func TestEngine_InvalidDocumentReturnsError(t *testing.T) {
	eng := newEngineWithFakeRegistry()
	_, err := eng.Run(context.Background(), []byte("name: \"\"\nsteps: []\n"), RunOptions{})
	assert.Error(t, err)
}
