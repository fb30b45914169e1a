package toolexecutor

import (
	"context"
	"fmt"
	"runtime/debug"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/xeipuuv/gojsonschema"
)

const (
	// DefaultTimeout bounds a handler when neither its definition nor the execution context sets one.
	DefaultTimeout = 120 * time.Second

	// MaxOutputSize is the largest tool result handed back to the model.
	MaxOutputSize = 10 * 1024
)

// ToolParameter defines a parameter for a tool
type ToolParameter struct {
	Name        string      `json:"name"`
	Type        string      `json:"type"`
	Description string      `json:"description"`
	Required    bool        `json:"required"`
	Default     interface{} `json:"default,omitempty"`
	Enum        []string    `json:"enum,omitempty"`
}

// ToolDefinition defines a tool's metadata and handler
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Category    ToolCategory    `json:"category"`
	Parameters  []ToolParameter `json:"parameters"`
	Timeout     time.Duration   `json:"-"`
	Handler     ToolHandler     `json:"-"`
}

// ToolHandler runs a tool. The returned text is what the model sees; a non-nil error is
// reported to the model as "Error: <message>".
type ToolHandler func(ctx context.Context, params map[string]interface{}) (string, error)

// UnknownToolError is returned by Dispatch for names that were never registered.
type UnknownToolError struct {
	Name string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("unknown tool '%s'", e.Name)
}

// Registry is the closed set of tools available to an agent. It is built once and never
// mutated afterwards, so it can be shared freely.
type Registry struct {
	tools   map[string]*ToolDefinition
	schemas map[string]*gojsonschema.Schema
	names   []string
}

// New validates every definition, compiles its parameter schema and returns the registry.
// Duplicate names are rejected.
func New(defs ...ToolDefinition) (*Registry, error) {
	r := &Registry{
		tools:   make(map[string]*ToolDefinition, len(defs)),
		schemas: make(map[string]*gojsonschema.Schema, len(defs)),
	}

	for i := range defs {
		def := defs[i]
		if err := validateToolDefinition(def); err != nil {
			return nil, fmt.Errorf("invalid tool definition: %w", err)
		}
		if _, exists := r.tools[def.Name]; exists {
			return nil, fmt.Errorf("duplicate tool name: %s", def.Name)
		}
		if def.Category == "" {
			def.Category = CategoryGeneral
		}

		schema, err := generateJSONSchema(def)
		if err != nil {
			return nil, fmt.Errorf("failed to generate schema for %s: %w", def.Name, err)
		}

		r.tools[def.Name] = &def
		r.schemas[def.Name] = schema
		r.names = append(r.names, def.Name)
	}

	sort.Strings(r.names)
	log.Debug().Int("tools", len(r.names)).Msg("Tool registry built")

	return r, nil
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.tools[name]
	return ok
}

// Names returns the registered tool names in sorted order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// Definitions returns copies of the registered definitions in name order.
func (r *Registry) Definitions() []ToolDefinition {
	out := make([]ToolDefinition, 0, len(r.names))
	for _, name := range r.names {
		out = append(out, *r.tools[name])
	}
	return out
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	return len(r.names)
}

// Dispatch runs the named tool. Only an unregistered name produces an error; validation
// failures, handler errors, panics and timeouts all come back as "Error: ..." text.
func (r *Registry) Dispatch(ctx context.Context, name string, params map[string]interface{}) (string, error) {
	tool, ok := r.tools[name]
	if !ok {
		log.Warn().Str("tool", name).Msg("Tool not found")
		return "", &UnknownToolError{Name: name}
	}

	startTime := time.Now()
	params = applyDefaults(tool, params)

	if err := validateParameters(r.schemas[name], params); err != nil {
		log.Error().Str("tool", name).Err(err).Msg("Parameter validation failed")
		return errorText(fmt.Errorf("parameter validation failed: %w", err)), nil
	}

	timeout := tool.Timeout
	if execCtx := ExecContextFromContext(ctx); execCtx != nil && execCtx.Timeout > 0 {
		if timeout == 0 || execCtx.Timeout < timeout {
			timeout = execCtx.Timeout
		}
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		output string
		err    error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				log.Error().
					Str("tool", name).
					Interface("panic", rec).
					Str("stack", string(debug.Stack())).
					Msg("Tool handler panicked")
				done <- outcome{err: fmt.Errorf("tool panicked: %v", rec)}
			}
		}()
		out, err := tool.Handler(timeoutCtx, params)
		done <- outcome{output: out, err: err}
	}()

	select {
	case res := <-done:
		duration := time.Since(startTime)
		if res.err != nil {
			log.Error().
				Str("tool", name).
				Dur("duration", duration).
				Err(res.err).
				Msg("Tool execution failed")
			return errorText(res.err), nil
		}

		output, truncated := truncateOutput(res.output)
		log.Debug().
			Str("tool", name).
			Dur("duration", duration).
			Bool("truncated", truncated).
			Msg("Tool execution completed")
		return output, nil

	case <-timeoutCtx.Done():
		duration := time.Since(startTime)
		if ctx.Err() != nil {
			log.Warn().Str("tool", name).Dur("duration", duration).Msg("Tool execution cancelled")
			return errorText(fmt.Errorf("tool execution cancelled: %w", ctx.Err())), nil
		}

		log.Error().
			Str("tool", name).
			Dur("duration", duration).
			Msg("Tool execution timeout")
		return errorText(fmt.Errorf("tool execution timeout after %v", timeout)), nil
	}
}

// IsErrorResult reports whether a Dispatch result describes a failure.
func IsErrorResult(output string) bool {
	return strings.HasPrefix(output, "Error: ")
}

func errorText(err error) string {
	return "Error: " + err.Error()
}

func applyDefaults(tool *ToolDefinition, params map[string]interface{}) map[string]interface{} {
	merged := make(map[string]interface{}, len(params)+len(tool.Parameters))
	for k, v := range params {
		merged[k] = v
	}
	for _, p := range tool.Parameters {
		if _, present := merged[p.Name]; !present && p.Default != nil {
			merged[p.Name] = p.Default
		}
	}
	return merged
}

// validateToolDefinition validates a tool definition
func validateToolDefinition(def ToolDefinition) error {
	if def.Name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}
	if def.Description == "" {
		return fmt.Errorf("tool description cannot be empty")
	}
	if def.Handler == nil {
		return fmt.Errorf("tool handler cannot be nil")
	}
	if def.Category != "" && !IsValidCategory(string(def.Category)) {
		return fmt.Errorf("invalid category %s for %s", def.Category, def.Name)
	}

	validTypes := map[string]bool{
		"string": true, "number": true, "boolean": true,
		"object": true, "array": true, "integer": true,
	}
	seen := make(map[string]bool, len(def.Parameters))
	for _, param := range def.Parameters {
		if param.Name == "" {
			return fmt.Errorf("parameter name cannot be empty")
		}
		if seen[param.Name] {
			return fmt.Errorf("duplicate parameter %s", param.Name)
		}
		seen[param.Name] = true
		if param.Type == "" {
			return fmt.Errorf("parameter type cannot be empty for %s", param.Name)
		}
		if param.Description == "" {
			return fmt.Errorf("parameter description cannot be empty for %s", param.Name)
		}
		if !validTypes[param.Type] {
			return fmt.Errorf("invalid parameter type %s for %s", param.Type, param.Name)
		}
	}

	return nil
}

// generateJSONSchema generates a JSON Schema from tool parameters
func generateJSONSchema(def ToolDefinition) (*gojsonschema.Schema, error) {
	properties := make(map[string]interface{}, len(def.Parameters))
	required := []string{}

	for _, param := range def.Parameters {
		paramSchema := map[string]interface{}{
			"type":        param.Type,
			"description": param.Description,
		}
		if param.Default != nil {
			paramSchema["default"] = param.Default
		}
		if len(param.Enum) > 0 {
			enum := make([]interface{}, len(param.Enum))
			for i, v := range param.Enum {
				enum[i] = v
			}
			paramSchema["enum"] = enum
		}

		properties[param.Name] = paramSchema
		if param.Required {
			required = append(required, param.Name)
		}
	}

	schemaMap := map[string]interface{}{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           properties,
	}
	if len(required) > 0 {
		schemaMap["required"] = required
	}

	return gojsonschema.NewSchema(gojsonschema.NewGoLoader(schemaMap))
}

// validateParameters validates parameters against a JSON Schema
func validateParameters(schema *gojsonschema.Schema, params map[string]interface{}) error {
	if schema == nil {
		return nil
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(params))
	if err != nil {
		return err
	}

	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("%s", strings.Join(msgs, "; "))
	}

	return nil
}

// truncateOutput cuts output at MaxOutputSize and marks the cut.
func truncateOutput(output string) (string, bool) {
	if len(output) <= MaxOutputSize {
		return output, false
	}

	log.Warn().
		Int("original", len(output)).
		Int("truncated", MaxOutputSize).
		Msg("Output truncated")

	return output[:MaxOutputSize] + "\n... [output truncated]", true
}
