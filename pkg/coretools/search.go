package coretools

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/harun/penelope/pkg/toolexecutor"
)

const (
	grepMatchesPerFile   = 10
	searchMatchesPerFile = 5
	noMatches            = "No matches found."
)

var skippedDirs = map[string]bool{
	"node_modules": true,
	"__pycache__":  true,
	"venv":         true,
}

func grepSearchTool() toolexecutor.ToolDefinition {
	return toolexecutor.ToolDefinition{
		Name:        "grep_search",
		Description: "Find lines matching a case-insensitive regex in files under a path.",
		Category:    toolexecutor.CategorySearch,
		Parameters: []toolexecutor.ToolParameter{
			{Name: "pattern", Type: "string", Description: "Regular expression", Required: true},
			{Name: "path", Type: "string", Description: "File or directory to search", Default: "."},
			{Name: "recursive", Type: "boolean", Description: "Descend into subdirectories", Default: true},
		},
		Handler: func(ctx context.Context, params map[string]interface{}) (string, error) {
			re, err := compileSearchPattern(params["pattern"], false)
			if err != nil {
				return "", err
			}
			display := stringParam(params, "path")
			if display == "" {
				display = "."
			}
			recursive := true
			if v, ok := params["recursive"].(bool); ok {
				recursive = v
			}

			var results []string
			err = walkSearchable(ctx, display, recursive, func(name string, content []byte) {
				var matches []string
				for _, line := range strings.Split(string(content), "\n") {
					line = strings.TrimRight(line, "\r")
					if re.MatchString(line) {
						matches = append(matches, line)
						if len(matches) == grepMatchesPerFile {
							break
						}
					}
				}
				if len(matches) > 0 {
					results = append(results, "--- "+name+" ---\n"+strings.Join(matches, "\n"))
				}
			})
			if err != nil {
				return "", err
			}
			if len(results) == 0 {
				return noMatches, nil
			}
			return strings.Join(results, "\n\n"), nil
		},
	}
}

func searchFilesTool() toolexecutor.ToolDefinition {
	return toolexecutor.ToolDefinition{
		Name:        "search_files",
		Description: "Search files under a directory for a regex, reporting line numbers.",
		Category:    toolexecutor.CategorySearch,
		Parameters: []toolexecutor.ToolParameter{
			{Name: "pattern", Type: "string", Description: "Regular expression (multiline, case-insensitive)", Required: true},
			{Name: "directory", Type: "string", Description: "Directory to search", Default: "."},
			{Name: "extension", Type: "string", Description: "Only search files with this suffix, e.g. .go"},
		},
		Handler: func(ctx context.Context, params map[string]interface{}) (string, error) {
			re, err := compileSearchPattern(params["pattern"], true)
			if err != nil {
				return "", err
			}
			display := stringParam(params, "directory")
			if display == "" {
				display = "."
			}
			extension := stringParam(params, "extension")

			var results []string
			err = walkSearchable(ctx, display, true, func(name string, content []byte) {
				if extension != "" && !strings.HasSuffix(name, extension) {
					return
				}
				locs := re.FindAllIndex(content, searchMatchesPerFile+1)
				if len(locs) == 0 {
					return
				}
				lines := strings.Split(string(content), "\n")
				matches := make([]string, 0, len(locs))
				for i, loc := range locs {
					if i == searchMatchesPerFile {
						matches = append(matches, "... more matches ...")
						break
					}
					lineNo := bytes.Count(content[:loc[0]], []byte("\n")) + 1
					matches = append(matches, fmt.Sprintf("Line %d: %s", lineNo, strings.TrimSpace(lines[lineNo-1])))
				}
				results = append(results, "--- "+name+" ---\n"+strings.Join(matches, "\n"))
			})
			if err != nil {
				return "", err
			}
			if len(results) == 0 {
				return noMatches, nil
			}
			return strings.Join(results, "\n\n"), nil
		},
	}
}

func compileSearchPattern(value interface{}, multiline bool) (*regexp.Regexp, error) {
	pattern, _ := value.(string)
	if pattern == "" {
		return nil, fmt.Errorf("pattern is required")
	}
	flags := "(?i)"
	if multiline {
		flags = "(?im)"
	}
	re, err := regexp.Compile(flags + pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern: %w", err)
	}
	return re, nil
}

// walkSearchable calls visit for every readable text file under root, skipping hidden entries,
// dependency folders and virtualenvs. Names are reported relative to the caller's root.
func walkSearchable(ctx context.Context, root string, recursive bool, visit func(name string, content []byte)) error {
	base := toolexecutor.ResolvePath(ctx, root)
	info, err := os.Stat(base)
	if err != nil {
		return fmt.Errorf("search path: %w", err)
	}
	if !info.IsDir() {
		if content, ok := readText(base); ok {
			visit(root, content)
		}
		return nil
	}

	return filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if path == base {
			return nil
		}
		name := d.Name()
		if d.IsDir() {
			if !recursive || strings.HasPrefix(name, ".") || skippedDirs[name] {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") || !d.Type().IsRegular() {
			return nil
		}

		content, ok := readText(path)
		if !ok {
			return nil
		}
		rel, relErr := filepath.Rel(base, path)
		if relErr != nil {
			rel = path
		}
		visit(filepath.Join(root, rel), content)
		return nil
	})
}

// readText returns the file content unless it is unreadable or looks binary.
func readText(path string) ([]byte, bool) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	sniff := content
	if len(sniff) > 512 {
		sniff = sniff[:512]
	}
	if bytes.IndexByte(sniff, 0) >= 0 {
		return nil, false
	}
	return content, true
}
