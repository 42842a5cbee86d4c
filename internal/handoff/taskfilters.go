package handoff

import (
	"encoding/json"
	"strings"
)

// TaskFilterOptions is the filter state of a task list tab.
type TaskFilterOptions struct {
	Completed *bool  `json:"completed,omitempty"`
	DateRange string `json:"dateRange,omitempty"`
}

// TaskFilterPreset names a task list tab and the filters it applies.
type TaskFilterPreset struct {
	Name                 string
	ActiveFiltersOptions TaskFilterOptions
}

func boolPtr(b bool) *bool { return &b }

// DefaultTaskFilterPresets mirror the task list tabs of the application.
var DefaultTaskFilterPresets = []TaskFilterPreset{
	{Name: "All", ActiveFiltersOptions: TaskFilterOptions{Completed: boolPtr(false)}},
	{Name: "Overdue", ActiveFiltersOptions: TaskFilterOptions{Completed: boolPtr(false), DateRange: "overdue"}},
	{Name: "Today", ActiveFiltersOptions: TaskFilterOptions{Completed: boolPtr(false), DateRange: "today"}},
	{Name: "Upcoming", ActiveFiltersOptions: TaskFilterOptions{Completed: boolPtr(false), DateRange: "upcoming"}},
	{Name: "NoDueDate", ActiveFiltersOptions: TaskFilterOptions{Completed: boolPtr(false), DateRange: "no_due_date"}},
	{Name: "Completed", ActiveFiltersOptions: TaskFilterOptions{Completed: boolPtr(true)}},
}

// findTaskFilterPreset matches name case-insensitively.
func findTaskFilterPreset(presets []TaskFilterPreset, name string) (TaskFilterPreset, bool) {
	for _, p := range presets {
		if strings.EqualFold(p.Name, name) {
			return p, true
		}
	}
	return TaskFilterPreset{}, false
}

// FiltersJSON returns the JSON form carried in the filters query parameter.
func (p TaskFilterPreset) FiltersJSON() (string, error) {
	b, err := json.Marshal(p.ActiveFiltersOptions)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
