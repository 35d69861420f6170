// Tool management and registration.
//
// Information Hiding:
// - Tool storage and lookup implementation hidden
// - Tool lifecycle management hidden
// - Registration and discovery mechanisms abstracted

package tools

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/warden-agent/warden/llm"
	"github.com/warden-agent/warden/storage"
)

// Registry manages the set of tools exposed to the model. The set is
// fixed at construction; the model cannot add or remove tools.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates a new empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]Tool),
	}
}

// Register adds a new tool to the registry.
// Returns error if a tool with the same name already exists.
func (r *Registry) Register(tool Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := tool.Metadata().Name
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool '%s' already registered", name)
	}
	r.tools[name] = tool
	return nil
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tool, exists := r.tools[name]
	return tool, exists
}

// Has checks if a tool exists in the registry.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.tools[name]
	return exists
}

// Names returns all registered tool names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// List returns metadata for all registered tools.
func (r *Registry) List() []ToolMetadata {
	r.mu.RLock()
	defer r.mu.RUnlock()

	metadata := make([]ToolMetadata, 0, len(r.tools))
	for _, tool := range r.tools {
		metadata = append(metadata, tool.Metadata())
	}
	sort.Slice(metadata, func(i, j int) bool { return metadata[i].Name < metadata[j].Name })
	return metadata
}

// Definitions returns the JSON Schema tool definitions sent to the
// model, in name order.
func (r *Registry) Definitions() []llm.ToolDefinition {
	list := r.List()
	defs := make([]llm.ToolDefinition, 0, len(list))
	for _, meta := range list {
		defs = append(defs, meta.Definition())
	}
	return defs
}

// Description returns a formatted description of all tools for LLM prompts.
func (r *Registry) Description() string {
	var descriptions []string
	for _, meta := range r.List() {
		var params []string
		for _, p := range meta.Parameters {
			required := "optional"
			if p.Required {
				required = "required"
			}
			params = append(params, fmt.Sprintf("  - %s (%s): %s [%s]",
				p.Name, p.ParamType, p.Description, required))
		}

		paramStr := strings.Join(params, "\n")
		descriptions = append(descriptions, fmt.Sprintf(
			"Tool: %s\nDescription: %s\nParameters:\n%s",
			meta.Name, meta.Description, paramStr))
	}

	return strings.Join(descriptions, "\n\n")
}

// Default limits for tools.
const (
	DefaultToolTimeout = 30          // seconds
	DefaultMaxFileSize = 1024 * 1024 // 1MB
)

// Limits carries the configured ceilings and allowlists for the
// default tool set. Zero values fall back to the package defaults;
// empty allowlists allow everything.
type Limits struct {
	TimeoutSecs    uint64
	MaxFileSize    int64
	FetchDomains   []string
	ShellAllowlist []string
}

// DefaultLimits returns limits using the package defaults and no
// allowlists.
func DefaultLimits() Limits {
	return Limits{
		TimeoutSecs: DefaultToolTimeout,
		MaxFileSize: DefaultMaxFileSize,
	}
}

// WithDefaults creates a registry holding the full closed tool set,
// every filesystem and shell tool passing through the guard.
// Returns error if any tool registration fails.
func WithDefaults(guard *Guard, memories storage.MemoryStore, session string, limits Limits) (*Registry, error) {
	if limits.TimeoutSecs == 0 {
		limits.TimeoutSecs = DefaultToolTimeout
	}
	if limits.MaxFileSize <= 0 {
		limits.MaxFileSize = DefaultMaxFileSize
	}

	registry := NewRegistry()

	toolSet := []Tool{
		NewReadFileTool(guard, limits.MaxFileSize),
		NewWriteFileTool(guard, limits.MaxFileSize),
		NewReplaceTool(guard, limits.MaxFileSize),
		NewListDirectoryTool(guard),
		NewGlobSearchTool(guard, DefaultGlobMaxResults),
		NewSearchFileContentTool(guard, DefaultSearchMaxResults),
		NewRunShellCommandTool(guard, limits.TimeoutSecs).WithAllowedCommands(limits.ShellAllowlist),
		NewWebSearchTool(limits.TimeoutSecs),
		NewWebFetchTool(limits.TimeoutSecs).WithAllowedDomains(limits.FetchDomains),
		NewSaveMemoryTool(memories, session),
	}

	for _, t := range toolSet {
		if err := registry.Register(t); err != nil {
			return nil, fmt.Errorf("failed to register default tools: %w", err)
		}
	}

	return registry, nil
}
