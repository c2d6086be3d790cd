// Package tools is the tool execution engine: it holds the capability grant
// of the current actor, decides whether a tool call is permitted and needs
// confirmation, runs registered handlers, and turns raw tool results into
// user-facing messages.
package tools

import (
	"fmt"
	"sort"
)

// Capability is a named permission a tool requires.
type Capability string

const (
	CapReadOnly     Capability = "read_only"
	CapModifyTasks  Capability = "modify_tasks"
	CapTimerControl Capability = "timer_control"
	CapFullAccess   Capability = "full_access"
)

// ParseCapability accepts the four capability names.
func ParseCapability(s string) (Capability, error) {
	switch c := Capability(s); c {
	case CapReadOnly, CapModifyTasks, CapTimerControl, CapFullAccess:
		return c, nil
	}
	return "", fmt.Errorf("unknown capability %q", s)
}

// Kind is the closed set of tools the engine knows. KindUnknown is the
// default arm for any other name.
type Kind int

const (
	KindUnknown Kind = iota
	KindGetTasks
	KindSearchTasks
	KindCreateTask
	KindUpdateTask
	KindCompleteTask
	KindDeleteTask
	KindBulkUpdateTasks
	KindStartTimer
	KindStopTimer
	KindTimeTrackingSummary
	KindProductivityInsights
)

// Spec is the static definition of one known tool.
type Spec struct {
	Kind        Kind
	Name        string
	Requires    []Capability
	Confirm     bool
	Description string
}

var toolCatalog = []Spec{
	{KindGetTasks, "get_tasks", []Capability{CapReadOnly}, false, "List tasks, optionally filtered"},
	{KindSearchTasks, "search_tasks", []Capability{CapReadOnly}, false, "Search tasks by text"},
	{KindCreateTask, "create_task", []Capability{CapModifyTasks}, false, "Create a task"},
	{KindUpdateTask, "update_task", []Capability{CapModifyTasks}, false, "Update a task"},
	{KindCompleteTask, "complete_task", []Capability{CapModifyTasks}, false, "Mark a task as done"},
	{KindDeleteTask, "delete_task", []Capability{CapModifyTasks}, true, "Delete a task"},
	{KindBulkUpdateTasks, "bulk_update_tasks", []Capability{CapModifyTasks}, true, "Update several tasks at once"},
	{KindStartTimer, "start_timer", []Capability{CapTimerControl}, false, "Start a time tracking session"},
	{KindStopTimer, "stop_timer", []Capability{CapTimerControl}, false, "Stop the running time tracking session"},
	{KindTimeTrackingSummary, "get_time_tracking_summary", []Capability{CapReadOnly}, false, "Summarize tracked time"},
	{KindProductivityInsights, "get_productivity_insights", []Capability{CapReadOnly}, false, "Summarize productivity and recommendations"},
}

var byName = func() map[string]Spec {
	m := make(map[string]Spec, len(toolCatalog))
	for _, s := range toolCatalog {
		m[s.Name] = s
	}
	return m
}()

// Lookup returns the static spec of a known tool.
func Lookup(name string) (Spec, bool) {
	s, ok := byName[name]
	return s, ok
}

// KindOf maps a tool name to its Kind, KindUnknown for anything else.
func KindOf(name string) Kind {
	if s, ok := byName[name]; ok {
		return s.Kind
	}
	return KindUnknown
}

// Catalog returns the known tool specs sorted by name.
func Catalog() []Spec {
	out := append([]Spec(nil), toolCatalog...)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (k Kind) String() string {
	for _, s := range toolCatalog {
		if s.Kind == k {
			return s.Name
		}
	}
	return "unknown"
}
