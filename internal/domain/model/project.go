//revive:disable-next-line:var-naming // package name mirrors the API resource layer
package model

import (
	"encoding/json"
	"errors"
	"strings"
	"unicode/utf8"
)

const (
	maxProjectTitleLen = 255
)

// ProjectPriority is the priority label the API accepts for a project.
type ProjectPriority string

const (
	ProjectPriorityLow      ProjectPriority = "low"
	ProjectPriorityMedium   ProjectPriority = "medium"
	ProjectPriorityHigh     ProjectPriority = "high"
	ProjectPriorityCritical ProjectPriority = "critical"
)

// Valid reports whether the priority is one the API recognises.
func (p ProjectPriority) Valid() bool {
	switch p {
	case ProjectPriorityLow, ProjectPriorityMedium, ProjectPriorityHigh, ProjectPriorityCritical:
		return true
	default:
		return false
	}
}

// Project mirrors the project list/detail serializers.
type Project struct {
	ID              int64    `json:"id"                         yaml:"id"`
	Title           string   `json:"title"                      yaml:"title"`
	Description     string   `json:"description,omitempty"      yaml:"description,omitempty"`
	ClientName      string   `json:"client_name,omitempty"      yaml:"client_name,omitempty"`
	Status          string   `json:"status"                     yaml:"status"`
	StatusDisplay   string   `json:"status_display,omitempty"   yaml:"status_display,omitempty"`
	Priority        string   `json:"priority,omitempty"         yaml:"priority,omitempty"`
	StartDate       string   `json:"start_date,omitempty"       yaml:"start_date,omitempty"`
	EndDate         string   `json:"end_date,omitempty"         yaml:"end_date,omitempty"`
	Location        string   `json:"location,omitempty"         yaml:"location,omitempty"`
	BudgetEstimated string   `json:"budget_estimated,omitempty" yaml:"budget_estimated,omitempty"`
	CreatedAt       string   `json:"created_at,omitempty"       yaml:"created_at,omitempty"`
	Tags            []string `json:"tags,omitempty"             yaml:"tags,omitempty"`
	TeamCount       *int     `json:"team_count,omitempty"       yaml:"team_count,omitempty"`
	TaskCount       *int     `json:"task_count,omitempty"       yaml:"task_count,omitempty"`
	CompletedTasks  *int     `json:"completed_tasks,omitempty"  yaml:"completed_tasks,omitempty"`
}

// CreateProjectRequest is the payload for POST /projects/.
type CreateProjectRequest struct {
	Title           string          `json:"title"`
	Description     string          `json:"description,omitempty"`
	ClientName      string          `json:"client_name,omitempty"`
	Status          string          `json:"status,omitempty"`
	Priority        ProjectPriority `json:"priority,omitempty"`
	StartDate       string          `json:"start_date,omitempty"`
	EndDate         string          `json:"end_date,omitempty"`
	Location        string          `json:"location,omitempty"`
	BudgetEstimated string          `json:"budget_estimated,omitempty"`
	Tags            []string        `json:"tags,omitempty"`
}

// Normalize trims user-provided text fields in place.
func (r *CreateProjectRequest) Normalize() {
	r.Title = strings.TrimSpace(r.Title)
	r.ClientName = strings.TrimSpace(r.ClientName)
	r.Location = strings.TrimSpace(r.Location)
	r.Priority = ProjectPriority(strings.ToLower(strings.TrimSpace(string(r.Priority))))
}

// Validate checks the request before it is sent.
func (r *CreateProjectRequest) Validate() error {
	if r.Title == "" {
		return errors.New("title is required")
	}
	if utf8.RuneCountInString(r.Title) > maxProjectTitleLen {
		return errors.New("title is too long")
	}
	if r.Priority != "" && !r.Priority.Valid() {
		return errors.New("priority must be one of low, medium, high, critical")
	}
	return nil
}

// DecodeProjectList accepts either a bare JSON array or a paginated {"results": [...]} envelope.
func DecodeProjectList(data []byte) ([]Project, error) {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var projects []Project
		if err := json.Unmarshal(data, &projects); err != nil {
			return nil, err
		}
		return projects, nil
	}

	var page struct {
		Results []Project `json:"results"`
	}
	if err := json.Unmarshal(data, &page); err != nil {
		return nil, err
	}
	if page.Results == nil {
		return []Project{}, nil
	}
	return page.Results, nil
}
