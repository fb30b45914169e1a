package toolexecutor

import "strings"

// ToolCategory groups tools for listings.
type ToolCategory string

const (
	CategoryFiles   ToolCategory = "files"
	CategorySearch  ToolCategory = "search"
	CategorySystem  ToolCategory = "system"
	CategoryDev     ToolCategory = "dev"
	CategoryGeneral ToolCategory = "general"
)

// AllCategories returns all valid tool categories
func AllCategories() []ToolCategory {
	return []ToolCategory{
		CategoryFiles,
		CategorySearch,
		CategorySystem,
		CategoryDev,
		CategoryGeneral,
	}
}

// IsValidCategory checks if a category is valid
func IsValidCategory(category string) bool {
	cat := ToolCategory(strings.ToLower(category))
	for _, valid := range AllCategories() {
		if cat == valid {
			return true
		}
	}
	return false
}

// ByCategory groups the registry's tool names by category, each list sorted.
func (r *Registry) ByCategory() map[ToolCategory][]string {
	grouped := make(map[ToolCategory][]string)
	for _, name := range r.names {
		cat := r.tools[name].Category
		grouped[cat] = append(grouped[cat], name)
	}
	return grouped
}
