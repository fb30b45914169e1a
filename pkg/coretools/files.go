package coretools

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/harun/penelope/pkg/toolexecutor"
)

func readFileTool() toolexecutor.ToolDefinition {
	return toolexecutor.ToolDefinition{
		Name:        "read_file",
		Description: "Read the contents of a file.",
		Category:    toolexecutor.CategoryFiles,
		Parameters: []toolexecutor.ToolParameter{
			{Name: "path", Type: "string", Description: "File path", Required: true},
		},
		Handler: func(ctx context.Context, params map[string]interface{}) (string, error) {
			pathValue := stringParam(params, "path")
			if pathValue == "" {
				return "", fmt.Errorf("path is required")
			}
			data, err := os.ReadFile(toolexecutor.ResolvePath(ctx, pathValue))
			if err != nil {
				return "", fmt.Errorf("reading file: %w", err)
			}
			return string(data), nil
		},
	}
}

func writeFileTool() toolexecutor.ToolDefinition {
	return toolexecutor.ToolDefinition{
		Name:        "write_file",
		Description: "Write content to a file, creating parent directories and overwriting existing content.",
		Category:    toolexecutor.CategoryFiles,
		Parameters: []toolexecutor.ToolParameter{
			{Name: "path", Type: "string", Description: "File path", Required: true},
			{Name: "content", Type: "string", Description: "File content", Required: true},
		},
		Handler: func(ctx context.Context, params map[string]interface{}) (string, error) {
			pathValue := stringParam(params, "path")
			if pathValue == "" {
				return "", fmt.Errorf("path is required")
			}
			content, _ := params["content"].(string)

			target := toolexecutor.ResolvePath(ctx, pathValue)
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return "", fmt.Errorf("creating parent directory: %w", err)
			}
			if err := os.WriteFile(target, []byte(content), 0644); err != nil {
				return "", fmt.Errorf("writing file: %w", err)
			}
			return fmt.Sprintf("Successfully wrote to %s", pathValue), nil
		},
	}
}

func replaceTextTool() toolexecutor.ToolDefinition {
	return toolexecutor.ToolDefinition{
		Name:        "replace_text",
		Description: "Replace every occurrence of old_text with new_text in a file.",
		Category:    toolexecutor.CategoryFiles,
		Parameters: []toolexecutor.ToolParameter{
			{Name: "path", Type: "string", Description: "File path", Required: true},
			{Name: "old_text", Type: "string", Description: "Exact text to replace", Required: true},
			{Name: "new_text", Type: "string", Description: "Replacement text", Required: true},
		},
		Handler: func(ctx context.Context, params map[string]interface{}) (string, error) {
			pathValue := stringParam(params, "path")
			oldText, _ := params["old_text"].(string)
			newText, _ := params["new_text"].(string)
			if oldText == "" {
				return "", fmt.Errorf("old_text cannot be empty")
			}

			target := toolexecutor.ResolvePath(ctx, pathValue)
			info, err := os.Stat(target)
			if errors.Is(err, fs.ErrNotExist) {
				return "", fmt.Errorf("file %s not found", pathValue)
			}
			if err != nil {
				return "", err
			}

			data, err := os.ReadFile(target)
			if err != nil {
				return "", err
			}
			content := string(data)
			if !strings.Contains(content, oldText) {
				return "", fmt.Errorf("text not found in %s", pathValue)
			}

			updated := strings.ReplaceAll(content, oldText, newText)
			if err := os.WriteFile(target, []byte(updated), info.Mode().Perm()); err != nil {
				return "", fmt.Errorf("writing file: %w", err)
			}
			return fmt.Sprintf("Successfully updated %s", pathValue), nil
		},
	}
}

func listDirTool() toolexecutor.ToolDefinition {
	return toolexecutor.ToolDefinition{
		Name:        "list_dir",
		Description: "List the entries of a directory.",
		Category:    toolexecutor.CategoryFiles,
		Parameters: []toolexecutor.ToolParameter{
			{Name: "path", Type: "string", Description: "Directory path", Default: "."},
		},
		Handler: func(ctx context.Context, params map[string]interface{}) (string, error) {
			entries, err := os.ReadDir(resolveDir(ctx, stringParam(params, "path")))
			if err != nil {
				return "", fmt.Errorf("listing directory: %w", err)
			}
			if len(entries) == 0 {
				return "Directory is empty.", nil
			}

			lines := make([]string, 0, len(entries))
			for _, entry := range entries {
				kind := "[FILE]"
				if entry.IsDir() {
					kind = "[DIR]"
				}
				lines = append(lines, kind+" "+entry.Name())
			}
			return strings.Join(lines, "\n"), nil
		},
	}
}
