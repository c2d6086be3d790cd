package tools

import (
	"fmt"
	"sort"
	"strings"

	"github.com/vietanhdev/kirapilot-app-sub002/internal/interaction"
)

// DeriveImpact guesses the impact of a call from the tool name. The result
// is advisory only and must not drive authorization.
func DeriveImpact(name string) interaction.ImpactLevel {
	n := strings.ToLower(name)
	switch {
	case strings.Contains(n, "delete"), strings.Contains(n, "bulk"):
		return interaction.ImpactHigh
	case strings.Contains(n, "update"), strings.Contains(n, "create"),
		strings.Contains(n, "complete"), strings.Contains(n, "timer"):
		return interaction.ImpactMedium
	default:
		return interaction.ImpactLow
	}
}

// DeriveResources lists what a call touches, from argument key names: keys
// mentioning "file" or "path" yield their string values, task identifiers
// yield "task:<id>". Advisory only.
func DeriveResources(args map[string]any) []string {
	seen := map[string]bool{}
	for k, v := range args {
		key := strings.ToLower(k)
		switch {
		case strings.Contains(key, "file"), strings.Contains(key, "path"):
			if s, ok := v.(string); ok && s != "" {
				seen[s] = true
			}
		case key == "task_id", key == "taskid", key == "id":
			if s := scalarString(v); s != "" {
				seen["task:"+s] = true
			}
		case key == "task_ids", key == "taskids":
			if list, ok := v.([]any); ok {
				for _, item := range list {
					if s := scalarString(item); s != "" {
						seen["task:"+s] = true
					}
				}
			}
		}
	}
	out := make([]string, 0, len(seen))
	for r := range seen {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}

func scalarString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return fmt.Sprintf("%g", x)
	case int:
		return fmt.Sprintf("%d", x)
	default:
		return ""
	}
}
