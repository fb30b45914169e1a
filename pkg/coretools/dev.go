package coretools

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/harun/penelope/pkg/toolexecutor"
)

const (
	installTimeout      = 300 * time.Second
	requirementsTimeout = 600 * time.Second
)

var (
	pythonActions = []string{"run_script", "install_package", "run_tests", "create_venv", "check_syntax", "install_requirements"}
	npmActions    = []string{"init", "install", "run_script", "build", "test", "audit"}
)

func pythonExecutable() string {
	if runtime.GOOS == "windows" {
		return "python"
	}
	return "python3"
}

func controlPythonTool() toolexecutor.ToolDefinition {
	return toolexecutor.ToolDefinition{
		Name:        "control_python",
		Description: "Run Python development tasks: scripts, packages, tests, virtualenvs and syntax checks.",
		Category:    toolexecutor.CategoryDev,
		Timeout:     requirementsTimeout,
		Parameters: []toolexecutor.ToolParameter{
			{Name: "action", Type: "string", Description: "Python operation", Required: true, Enum: pythonActions},
			{Name: "path", Type: "string", Description: "Script, test path, venv directory or requirements file"},
			{Name: "package", Type: "string", Description: "Package to install"},
		},
		Handler: func(ctx context.Context, params map[string]interface{}) (string, error) {
			python := pythonExecutable()
			dir := resolveDir(ctx, "")
			path := stringParam(params, "path")
			action := stringParam(params, "action")

			switch action {
			case "run_script":
				if path == "" {
					return "", fmt.Errorf("path parameter required")
				}
				res, err := runProcess(ctx, dir, CommandTimeout, python, path)
				if err != nil {
					return "", err
				}
				return formatCommandOutput(res), nil

			case "install_package":
				pkg := stringParam(params, "package")
				if pkg == "" {
					return "", fmt.Errorf("package parameter required")
				}
				res, err := runProcess(ctx, dir, installTimeout, python, "-m", "pip", "install", pkg)
				if err != nil {
					return "", err
				}
				return outputOr(res, "Installed "+pkg), nil

			case "run_tests":
				if path == "" {
					path = "."
				}
				res, err := runProcess(ctx, dir, installTimeout, python, "-m", "pytest", path, "-v")
				if err != nil {
					return "", err
				}
				return formatCommandOutput(res), nil

			case "create_venv":
				if path == "" {
					path = "venv"
				}
				res, err := runProcess(ctx, dir, CommandTimeout, python, "-m", "venv", path)
				if err != nil {
					return "", err
				}
				if res.ExitCode != 0 {
					return "", fmt.Errorf("creating virtual environment: %s", strings.TrimSpace(res.Stderr))
				}
				return fmt.Sprintf("Created virtual environment at %s", path), nil

			case "check_syntax":
				if path == "" {
					return "", fmt.Errorf("path parameter required")
				}
				res, err := runProcess(ctx, dir, 30*time.Second, python, "-m", "py_compile", path)
				if err != nil {
					return "", err
				}
				if res.ExitCode != 0 {
					return "", fmt.Errorf("syntax errors in %s: %s", path, strings.TrimSpace(res.Stderr))
				}
				return fmt.Sprintf("Syntax check passed for %s", path), nil

			case "install_requirements":
				if path == "" {
					path = "requirements.txt"
				}
				if _, err := os.Stat(toolexecutor.ResolvePath(ctx, path)); errors.Is(err, fs.ErrNotExist) {
					return "", fmt.Errorf("%s not found", path)
				}
				res, err := runProcess(ctx, dir, requirementsTimeout, python, "-m", "pip", "install", "-r", path)
				if err != nil {
					return "", err
				}
				return outputOr(res, "Installed requirements from "+path), nil

			default:
				return "", fmt.Errorf("unknown action '%s'. Available: %s", action, strings.Join(pythonActions, ", "))
			}
		},
	}
}

func controlNpmTool() toolexecutor.ToolDefinition {
	return toolexecutor.ToolDefinition{
		Name:        "control_npm",
		Description: "Run npm tasks in a Node.js project.",
		Category:    toolexecutor.CategoryDev,
		Timeout:     installTimeout,
		Parameters: []toolexecutor.ToolParameter{
			{Name: "action", Type: "string", Description: "npm operation", Required: true, Enum: npmActions},
			{Name: "path", Type: "string", Description: "Project directory", Default: "."},
			{Name: "package", Type: "string", Description: "Package to install"},
			{Name: "script_name", Type: "string", Description: "Script for run_script"},
			{Name: "dev", Type: "boolean", Description: "Install as a dev dependency", Default: false},
		},
		Handler: func(ctx context.Context, params map[string]interface{}) (string, error) {
			args, fallback, timeout, err := npmCommand(params)
			if err != nil {
				return "", err
			}
			res, err := runProcess(ctx, resolveDir(ctx, stringParam(params, "path")), timeout, "npm", args...)
			if err != nil {
				return "", err
			}
			if res.ExitCode != 0 {
				return formatCommandOutput(res), nil
			}
			return outputOr(res, fallback), nil
		},
	}
}

// npmCommand maps a control_npm call to npm arguments, the message reported when npm prints
// nothing, and the time budget.
func npmCommand(params map[string]interface{}) ([]string, string, time.Duration, error) {
	action := stringParam(params, "action")
	switch action {
	case "init":
		return []string{"init", "-y"}, "Initialized npm project", 60 * time.Second, nil
	case "install":
		args := []string{"install"}
		if boolParam(params, "dev") {
			args = append(args, "--save-dev")
		}
		if pkg := stringParam(params, "package"); pkg != "" {
			args = append(args, pkg)
		}
		return args, "Packages installed", installTimeout, nil
	case "run_script":
		script := stringParam(params, "script_name")
		if script == "" {
			return nil, "", 0, fmt.Errorf("script_name parameter required")
		}
		return []string{"run", script}, "Ran script: " + script, installTimeout, nil
	case "build":
		return []string{"run", "build"}, "Build completed", installTimeout, nil
	case "test":
		return []string{"test"}, "Tests completed", installTimeout, nil
	case "audit":
		return []string{"audit"}, "Audit completed", CommandTimeout, nil
	default:
		return nil, "", 0, fmt.Errorf("unknown action '%s'. Available: %s", action, strings.Join(npmActions, ", "))
	}
}
