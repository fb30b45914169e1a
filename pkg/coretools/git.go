package coretools

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/harun/penelope/pkg/toolexecutor"
)

const (
	defaultGitAuthorName  = "Penelope"
	defaultGitAuthorEmail = "penelope@localhost"
	gitLogLimit           = 10
)

var gitActions = []string{"init", "status", "add", "commit", "push", "pull", "branch", "log"}

func controlGitTool(opts Options) toolexecutor.ToolDefinition {
	return toolexecutor.ToolDefinition{
		Name:        "control_git",
		Description: "Run a git operation on a repository.",
		Category:    toolexecutor.CategoryDev,
		Timeout:     CommandTimeout,
		Parameters: []toolexecutor.ToolParameter{
			{Name: "action", Type: "string", Description: "Git operation", Required: true, Enum: gitActions},
			{Name: "path", Type: "string", Description: "Repository path", Default: "."},
			{Name: "files", Type: "string", Description: "Space separated files for add", Default: "."},
			{Name: "message", Type: "string", Description: "Commit message"},
			{Name: "branch_name", Type: "string", Description: "Branch to create and switch to"},
		},
		Handler: func(ctx context.Context, params map[string]interface{}) (string, error) {
			dir, err := filepath.Abs(resolveDir(ctx, stringParam(params, "path")))
			if err != nil {
				return "", err
			}
			g := gitTool{opts: opts, dir: dir}
			action := stringParam(params, "action")

			switch action {
			case "init":
				return g.init()
			case "status":
				return g.status()
			case "add":
				return g.add(toStringSlice(params["files"]))
			case "commit":
				message := stringParam(params, "message")
				if message == "" {
					return "", fmt.Errorf("message parameter required for commit")
				}
				return g.commit(message)
			case "push":
				return g.push(ctx)
			case "pull":
				return g.pull(ctx)
			case "branch":
				return g.branch(stringParam(params, "branch_name"))
			case "log":
				return g.log()
			default:
				return "", fmt.Errorf("unknown action '%s'. Available: %s", action, strings.Join(gitActions, ", "))
			}
		},
	}
}

type gitTool struct {
	opts Options
	dir  string
}

func (g gitTool) open() (*git.Repository, *git.Worktree, error) {
	repo, err := git.PlainOpenWithOptions(g.dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, nil, fmt.Errorf("opening repository at %s: %w", g.dir, err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return nil, nil, fmt.Errorf("opening worktree: %w", err)
	}
	return repo, wt, nil
}

func (g gitTool) init() (string, error) {
	_, err := git.PlainInit(g.dir, false)
	if errors.Is(err, git.ErrRepositoryAlreadyExists) {
		return fmt.Sprintf("Git repository already exists in %s", g.dir), nil
	}
	if err != nil {
		return "", fmt.Errorf("initializing repository: %w", err)
	}
	return fmt.Sprintf("Initialized empty Git repository in %s", g.dir), nil
}

func (g gitTool) status() (string, error) {
	_, wt, err := g.open()
	if err != nil {
		return "", err
	}
	status, err := wt.Status()
	if err != nil {
		return "", fmt.Errorf("reading status: %w", err)
	}
	if status.IsClean() {
		return "Working tree clean", nil
	}

	files := make([]string, 0, len(status))
	for file := range status {
		files = append(files, file)
	}
	sort.Strings(files)

	lines := make([]string, 0, len(files))
	for _, file := range files {
		s := status[file]
		lines = append(lines, fmt.Sprintf("%c%c %s", s.Staging, s.Worktree, file))
	}
	return strings.Join(lines, "\n"), nil
}

func (g gitTool) add(files []string) (string, error) {
	_, wt, err := g.open()
	if err != nil {
		return "", err
	}
	if len(files) == 0 {
		files = []string{"."}
	}

	root := wt.Filesystem.Root()
	for _, file := range files {
		if file == "." {
			if err := wt.AddWithOptions(&git.AddOptions{All: true}); err != nil {
				return "", fmt.Errorf("adding all files: %w", err)
			}
			continue
		}
		rel, err := filepath.Rel(root, filepath.Join(g.dir, file))
		if err != nil {
			return "", err
		}
		if _, err := wt.Add(filepath.ToSlash(rel)); err != nil {
			return "", fmt.Errorf("adding %s: %w", file, err)
		}
	}
	return fmt.Sprintf("Added files: %s", strings.Join(files, " ")), nil
}

func (g gitTool) commit(message string) (string, error) {
	_, wt, err := g.open()
	if err != nil {
		return "", err
	}

	name := g.opts.GitAuthorName
	if name == "" {
		name = defaultGitAuthorName
	}
	email := g.opts.GitAuthorEmail
	if email == "" {
		email = defaultGitAuthorEmail
	}

	hash, err := wt.Commit(message, &git.CommitOptions{
		Author: &object.Signature{Name: name, Email: email, When: time.Now()},
	})
	if err != nil {
		return "", fmt.Errorf("committing: %w", err)
	}
	return fmt.Sprintf("Committed %s: %s", hash.String()[:7], message), nil
}

func (g gitTool) push(ctx context.Context) (string, error) {
	repo, _, err := g.open()
	if err != nil {
		return "", err
	}
	err = repo.PushContext(ctx, &git.PushOptions{RemoteName: git.DefaultRemoteName})
	if errors.Is(err, git.NoErrAlreadyUpToDate) {
		return "Everything up-to-date", nil
	}
	if err != nil {
		return "", fmt.Errorf("pushing: %w", err)
	}
	return "Pushed to remote", nil
}

func (g gitTool) pull(ctx context.Context) (string, error) {
	_, wt, err := g.open()
	if err != nil {
		return "", err
	}
	err = wt.PullContext(ctx, &git.PullOptions{RemoteName: git.DefaultRemoteName})
	if errors.Is(err, git.NoErrAlreadyUpToDate) {
		return "Already up to date", nil
	}
	if err != nil {
		return "", fmt.Errorf("pulling: %w", err)
	}
	return "Pulled from remote", nil
}

func (g gitTool) branch(name string) (string, error) {
	repo, wt, err := g.open()
	if err != nil {
		return "", err
	}

	if name != "" {
		err := wt.Checkout(&git.CheckoutOptions{
			Branch: plumbing.NewBranchReferenceName(name),
			Create: true,
		})
		if err != nil {
			return "", fmt.Errorf("creating branch %s: %w", name, err)
		}
		return fmt.Sprintf("Created and switched to branch: %s", name), nil
	}

	current := ""
	if head, err := repo.Head(); err == nil {
		current = head.Name().Short()
	}

	iter, err := repo.Branches()
	if err != nil {
		return "", fmt.Errorf("listing branches: %w", err)
	}
	var names []string
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		names = append(names, ref.Name().Short())
		return nil
	})
	if err != nil {
		return "", err
	}
	if len(names) == 0 {
		return "No branches yet", nil
	}
	sort.Strings(names)

	lines := make([]string, 0, len(names))
	for _, n := range names {
		marker := "  "
		if n == current {
			marker = "* "
		}
		lines = append(lines, marker+n)
	}
	return strings.Join(lines, "\n"), nil
}

func (g gitTool) log() (string, error) {
	repo, _, err := g.open()
	if err != nil {
		return "", err
	}

	iter, err := repo.Log(&git.LogOptions{})
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return "No commits found", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading log: %w", err)
	}
	defer iter.Close()

	var lines []string
	for len(lines) < gitLogLimit {
		c, err := iter.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}
		subject, _, _ := strings.Cut(c.Message, "\n")
		lines = append(lines, c.Hash.String()[:7]+" "+subject)
	}
	if len(lines) == 0 {
		return "No commits found", nil
	}
	return strings.Join(lines, "\n"), nil
}
