// Package coretools provides Penelope's built-in tools: file editing, code search, shell
// commands, application launching and git/python/npm developer workflows.
//
// Every tool resolves relative paths against the working directory carried by the
// toolexecutor.ExecutionContext, so the agent can be pointed at any project.
//
//	registry, err := coretools.NewRegistry(coretools.Options{GitAuthorName: "Jane"})
package coretools
