package coretools

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/harun/penelope/pkg/toolexecutor"
)

// processResult is the captured outcome of one child process.
type processResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// knownApps maps friendly names to per-OS launch targets.
var knownApps = map[string]map[string]string{
	"browser":    {"darwin": "Safari", "linux": "x-www-browser", "windows": "msedge"},
	"calculator": {"darwin": "Calculator", "linux": "gnome-calculator", "windows": "calc"},
	"chrome":     {"darwin": "Google Chrome", "linux": "google-chrome", "windows": "chrome"},
	"code":       {"darwin": "Visual Studio Code", "linux": "code", "windows": "code"},
	"explorer":   {"darwin": "Finder", "linux": "nautilus", "windows": "explorer"},
	"firefox":    {"darwin": "Firefox", "linux": "firefox", "windows": "firefox"},
	"notepad":    {"darwin": "TextEdit", "linux": "gedit", "windows": "notepad"},
	"terminal":   {"darwin": "Terminal", "linux": "x-terminal-emulator", "windows": "cmd"},
}

func runCommandTool(opts Options) toolexecutor.ToolDefinition {
	return toolexecutor.ToolDefinition{
		Name:        "run_command",
		Description: "Run a shell command and return its output.",
		Category:    toolexecutor.CategorySystem,
		Timeout:     CommandTimeout,
		Parameters: []toolexecutor.ToolParameter{
			{Name: "command", Type: "string", Description: "Shell command line", Required: true},
			{Name: "cwd", Type: "string", Description: "Working directory"},
		},
		Handler: func(ctx context.Context, params map[string]interface{}) (string, error) {
			command := stringParam(params, "command")
			if command == "" {
				return "", fmt.Errorf("command is required")
			}
			shell, flag := shellFor(opts.Shell)
			res, err := runProcess(ctx, resolveDir(ctx, stringParam(params, "cwd")), CommandTimeout, shell, flag, command)
			if err != nil {
				return "", err
			}
			return formatCommandOutput(res), nil
		},
	}
}

func openAppTool() toolexecutor.ToolDefinition {
	names := make([]string, 0, len(knownApps))
	for name := range knownApps {
		names = append(names, name)
	}
	sort.Strings(names)

	return toolexecutor.ToolDefinition{
		Name:        "open_app",
		Description: "Open a desktop application. Known names: " + strings.Join(names, ", ") + ".",
		Category:    toolexecutor.CategorySystem,
		Timeout:     30 * time.Second,
		Parameters: []toolexecutor.ToolParameter{
			{Name: "app_name", Type: "string", Description: "Application name", Required: true},
		},
		Handler: func(ctx context.Context, params map[string]interface{}) (string, error) {
			appName := stringParam(params, "app_name")
			if appName == "" {
				return "", fmt.Errorf("app_name is required")
			}
			if err := ctx.Err(); err != nil {
				return "", err
			}
			name, args := launchCommand(runtime.GOOS, appName)
			// The app outlives the dispatch, so it is not bound to ctx.
			cmd := exec.Command(name, args...)
			if err := cmd.Start(); err != nil {
				return "", fmt.Errorf("failed to open %s: %w", appName, err)
			}
			go func() { _ = cmd.Wait() }()
			return fmt.Sprintf("Opened %s", appName), nil
		},
	}
}

// launchCommand picks the platform launcher for an application name.
func launchCommand(goos, appName string) (string, []string) {
	target := appName
	if targets, ok := knownApps[strings.ToLower(appName)]; ok {
		if t, ok := targets[goos]; ok {
			target = t
		}
	}

	switch goos {
	case "darwin":
		return "open", []string{"-a", target}
	case "windows":
		return "cmd", []string{"/C", "start", "", target}
	default:
		if _, err := exec.LookPath(target); err == nil {
			return target, nil
		}
		return "xdg-open", []string{target}
	}
}

func shellFor(override string) (string, string) {
	switch {
	case override == "cmd", override == "" && runtime.GOOS == "windows":
		return "cmd", "/C"
	case override != "":
		return override, "-c"
	default:
		return "sh", "-c"
	}
}

// runProcess runs name with args in dir and captures its output. A non-zero exit is reported
// through ExitCode; only start failures, timeouts and cancellation are errors.
func runProcess(ctx context.Context, dir string, timeout time.Duration, name string, args ...string) (processResult, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := processResult{Stdout: stdout.String(), Stderr: stderr.String()}

	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return res, fmt.Errorf("%s timed out after %s", name, timeout)
		}
		return res, ctxErr
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		return res, nil
	}
	if err != nil {
		return res, fmt.Errorf("failed to run %s: %w", name, err)
	}
	return res, nil
}

func formatCommandOutput(res processResult) string {
	output := res.Stdout
	if res.Stderr != "" {
		output += "\nErrors:\n" + res.Stderr
	}
	if res.ExitCode != 0 {
		output += fmt.Sprintf("\nExit code: %d", res.ExitCode)
	}
	if output == "" {
		return "Command executed successfully."
	}
	return output
}

// outputOr returns the process output, or fallback when the process printed nothing.
func outputOr(res processResult, fallback string) string {
	switch {
	case strings.TrimSpace(res.Stdout) != "":
		return res.Stdout
	case strings.TrimSpace(res.Stderr) != "":
		return res.Stderr
	default:
		return fallback
	}
}
