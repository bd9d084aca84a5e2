package commands

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/opsctl/opsctl/pkg/workflow/shellrunner"
)

// RegisterBuiltins wires a representative slice of internal commands onto
// r, grounded in the teacher's shell-backed service clients
// (pkg/docker/dockerclient.go's DockerCmdRunner, pkg/k8s/kube.go's
// KubeCmdRunner) rather than reimplementing them: these are thin,
// illustrative bindings over sh, the command path spec.md itself treats
// as out of scope beyond its contract (§1 "Service-specific command
// handlers... out of scope").
func RegisterBuiltins(r *Registry, shell shellrunner.ShellRunner) {
	r.Register("docker build", dockerBuild(shell))
	r.Register("docker push", dockerPush(shell))
	r.Register("k8s apply", k8sApply(shell))
	r.Register("k8s rollout-status", k8sRolloutStatus(shell))
	r.Register("slack notify", slackNotify())
}

func str(params map[string]any, key string) string {
	v, _ := params[key].(string)
	return v
}

// dockerBuild mirrors DockerCmdRunner.Build's argument shape: docker build
// -q -f <dockerfile> -t <tag> <context>.
func dockerBuild(shell shellrunner.ShellRunner) Handler {
	return func(ctx context.Context, params map[string]any, deadline time.Time) (int, string, string, error) {
		dockerfile := str(params, "dockerfile")
		tag := str(params, "tag")
		dir := str(params, "context")
		if dir == "" {
			dir = "."
		}
		line := fmt.Sprintf("docker build -q -f %s -t %s %s", shQuote(dockerfile), shQuote(tag), shQuote(dir))
		return shell.Run(ctx, line, nil, deadline)
	}
}

// dockerPush mirrors DockerCmdRunner.Push: docker push <image>.
func dockerPush(shell shellrunner.ShellRunner) Handler {
	return func(ctx context.Context, params map[string]any, deadline time.Time) (int, string, string, error) {
		image := str(params, "image")
		line := fmt.Sprintf("docker push %s", shQuote(image))
		return shell.Run(ctx, line, nil, deadline)
	}
}

// k8sApply mirrors KubeCmdRunner.Apply: kubectl apply -f <manifest>.
func k8sApply(shell shellrunner.ShellRunner) Handler {
	return func(ctx context.Context, params map[string]any, deadline time.Time) (int, string, string, error) {
		manifest := str(params, "manifest")
		line := fmt.Sprintf("kubectl apply -f %s", shQuote(manifest))
		return shell.Run(ctx, line, nil, deadline)
	}
}

// k8sRolloutStatus waits for a deployment rollout to settle, the usual
// companion to "k8s apply" in a deploy workflow.
func k8sRolloutStatus(shell shellrunner.ShellRunner) Handler {
	return func(ctx context.Context, params map[string]any, deadline time.Time) (int, string, string, error) {
		deployment := str(params, "deployment")
		namespace := str(params, "namespace")
		args := fmt.Sprintf("rollout status deployment/%s", shQuote(deployment))
		if namespace != "" {
			args += " -n " + shQuote(namespace)
		}
		return shell.Run(ctx, "kubectl "+args, nil, deadline)
	}
}

// slackNotify represents the chat/ticketing command family: a minimal
// webhook POST, standing in for the full chat/ticketing integrations
// spec.md §1 scopes out of the engine core.
func slackNotify() Handler {
	return func(ctx context.Context, params map[string]any, deadline time.Time) (int, string, string, error) {
		webhookURL := str(params, "webhook_url")
		message := str(params, "message")
		if webhookURL == "" {
			return -1, "", "", fmt.Errorf("slack notify requires params.webhook_url")
		}

		reqCtx := ctx
		if !deadline.IsZero() {
			var cancel context.CancelFunc
			reqCtx, cancel = context.WithDeadline(ctx, deadline)
			defer cancel()
		}
		body := strings.NewReader(fmt.Sprintf(`{"text":%q}`, message))
		req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, webhookURL, body)
		if err != nil {
			return -1, "", "", err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return -1, "", "", err
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 400 {
			return resp.StatusCode, "", fmt.Sprintf("slack webhook returned status %d", resp.StatusCode), nil
		}
		return 0, "ok", "", nil
	}
}

func shQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
