package commands

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsctl/opsctl/pkg/workflow/shellrunner"
)

type recordingShell struct {
	lastCommand string
	exitCode    int
}

func (s *recordingShell) Run(ctx context.Context, commandLine string, env map[string]string, deadline time.Time) (int, string, string, error) {
	s.lastCommand = commandLine
	return s.exitCode, "", "", nil
}

var _ shellrunner.ShellRunner = (*recordingShell)(nil)

func TestRegisterBuiltins_DockerBuildQuotesArguments(t *testing.T) {
	shell := &recordingShell{}
	r := NewRegistry()
	RegisterBuiltins(r, shell)

	_, _, _, err := r.Dispatch(context.Background(), "docker build", map[string]any{
		"dockerfile": "Dockerfile",
		"tag":        "app:latest",
		"context":    ".",
	}, time.Time{})
	require.NoError(t, err)
	assert.Contains(t, shell.lastCommand, "docker build -q -f 'Dockerfile' -t 'app:latest' '.'")
}

func TestRegisterBuiltins_K8sRolloutStatusIncludesNamespace(t *testing.T) {
	shell := &recordingShell{}
	r := NewRegistry()
	RegisterBuiltins(r, shell)

	_, _, _, err := r.Dispatch(context.Background(), "k8s rollout-status", map[string]any{
		"deployment": "web",
		"namespace":  "prod",
	}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, "kubectl rollout status deployment/'web' -n 'prod'", shell.lastCommand)
}

func TestRegisterBuiltins_SlackNotifyRequiresWebhook(t *testing.T) {
	r := NewRegistry()
	RegisterBuiltins(r, &recordingShell{})

	_, _, _, err := r.Dispatch(context.Background(), "slack notify", map[string]any{"message": "hi"}, time.Time{})
	assert.Error(t, err)
}
