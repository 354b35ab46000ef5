// Package builtin provides the small set of filesystem and shell tools
// every agent gets by default, each confined to the run's
// ExecutionContext.AgentWorkspaceRoot.
package builtin

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/agentcore/runtime/internal/tools"
	"github.com/agentcore/runtime/pkg/models"
)

// resolveWorkspacePath joins rel onto the run's workspace root, refusing
// any path that would escape it.
func resolveWorkspacePath(execCtx *models.ExecutionContext, rel string) (string, error) {
	root := execCtx.AgentWorkspaceRoot
	if root == "" {
		return "", fmt.Errorf("no workspace root bound to this run")
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	joined := filepath.Join(root, rel)
	absJoined, err := filepath.Abs(joined)
	if err != nil {
		return "", err
	}
	if absJoined != root && !strings.HasPrefix(absJoined, root+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes the agent workspace", rel)
	}
	return absJoined, nil
}

// ReadFileTool reads a file within the agent's workspace.
func ReadFileTool() tools.Tool {
	schema := tools.InputSchema{
		Type: "object",
		Properties: map[string]tools.SchemaProp{
			"path": {Type: "string", Description: "workspace-relative file path"},
		},
		Required: []string{"path"},
	}
	return tools.NewFuncTool("fs_read_file", "fs_read_file", "reads a file from the agent workspace", schema, false,
		func(_ context.Context, args map[string]any, execCtx *models.ExecutionContext) (*models.ToolResult, error) {
			rel, _ := args["path"].(string)
			abs, err := resolveWorkspacePath(execCtx, rel)
			if err != nil {
				return &models.ToolResult{OK: false, Error: err.Error()}, nil
			}
			data, err := os.ReadFile(abs)
			if err != nil {
				return &models.ToolResult{OK: false, Error: err.Error()}, nil
			}
			return &models.ToolResult{
				OK:     true,
				Output: string(data),
				Artifacts: []models.Artifact{{
					Kind: models.ArtifactFile, Label: rel, Operation: "read", Path: rel,
				}},
			}, nil
		})
}

// WriteFileTool writes (creating parent directories as needed) a file
// within the agent's workspace.
func WriteFileTool() tools.Tool {
	schema := tools.InputSchema{
		Type: "object",
		Properties: map[string]tools.SchemaProp{
			"path":    {Type: "string", Description: "workspace-relative file path"},
			"content": {Type: "string", Description: "file content to write"},
		},
		Required: []string{"path", "content"},
	}
	return tools.NewFuncTool("fs_write_file", "fs_write_file", "writes a file in the agent workspace", schema, false,
		func(_ context.Context, args map[string]any, execCtx *models.ExecutionContext) (*models.ToolResult, error) {
			rel, _ := args["path"].(string)
			content, _ := args["content"].(string)
			abs, err := resolveWorkspacePath(execCtx, rel)
			if err != nil {
				return &models.ToolResult{OK: false, Error: err.Error()}, nil
			}
			if err := os.MkdirAll(filepath.Dir(abs), 0o700); err != nil {
				return &models.ToolResult{OK: false, Error: err.Error()}, nil
			}
			if err := os.WriteFile(abs, []byte(content), 0o600); err != nil {
				return &models.ToolResult{OK: false, Error: err.Error()}, nil
			}
			return &models.ToolResult{
				OK:     true,
				Output: fmt.Sprintf("wrote %d bytes to %s", len(content), rel),
				Artifacts: []models.Artifact{{
					Kind: models.ArtifactFile, Label: rel, Operation: "write", Path: rel,
				}},
				Checks: []models.Check{{ID: "file_written", OK: true, Description: "file exists after write"}},
			}, nil
		})
}
