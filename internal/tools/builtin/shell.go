package builtin

import (
	"context"
	"os/exec"
	"time"

	"github.com/agentcore/runtime/internal/tools"
	"github.com/agentcore/runtime/internal/tools/security"
	"github.com/agentcore/runtime/pkg/models"
)

// shellTimeout bounds a single run_shell invocation.
const shellTimeout = 30 * time.Second

// ShellTool runs a single shell command inside the agent's workspace,
// rejecting commands the quote-aware analyzer flags as unsafe (chaining,
// redirection, subshells, backgrounding). It is privileged: the Agent
// Turn Engine only dispatches it when ExecutionContext.ToolAccessGranted
// is set.
func ShellTool() tools.Tool {
	schema := tools.InputSchema{
		Type: "object",
		Properties: map[string]tools.SchemaProp{
			"command": {Type: "string", Description: "shell command to run in the agent workspace"},
		},
		Required: []string{"command"},
	}
	return tools.NewFuncTool("shell_exec", "shell_exec", "runs a single shell command in the agent workspace", schema, true,
		func(ctx context.Context, args map[string]any, execCtx *models.ExecutionContext) (*models.ToolResult, error) {
			command, _ := args["command"].(string)
			analysis := security.AnalyzeCommandQuoteAware(command)
			if !analysis.IsSafe {
				return &models.ToolResult{OK: false, Error: "command rejected: " + analysis.Reason}, nil
			}

			runCtx, cancel := context.WithTimeout(ctx, shellTimeout)
			defer cancel()

			cmd := exec.CommandContext(runCtx, "/bin/sh", "-c", command)
			if execCtx.AgentWorkspaceRoot != "" {
				cmd.Dir = execCtx.AgentWorkspaceRoot
			}
			out, err := cmd.CombinedOutput()

			result := &models.ToolResult{
				OK:     err == nil,
				Output: string(out),
				Artifacts: []models.Artifact{{
					Kind: models.ArtifactShell, Label: command, Operation: "exec",
				}},
			}
			if err != nil {
				result.Error = err.Error()
				result.Checks = []models.Check{{ID: "exit_zero", OK: false, Description: "process exited non-zero"}}
			} else {
				result.Checks = []models.Check{{ID: "exit_zero", OK: true, Description: "process exited zero"}}
			}
			return result, nil
		})
}
