//revive:disable-next-line:var-naming // package name mirrors the API resource layer
package model

import "github.com/todoproduction/todo-client/internal/domain/auth"

// StatValue is one headline number on the dashboard.
// Value is a count for most stats and a formatted currency string for revenue.
type StatValue struct {
	Value any    `json:"value" yaml:"value"`
	Trend string `json:"trend" yaml:"trend"`
}

// DashboardStatCards groups the four headline stats.
type DashboardStatCards struct {
	ActiveProjects StatValue `json:"active_projects" yaml:"active_projects"`
	PendingTasks   StatValue `json:"pending_tasks"   yaml:"pending_tasks"`
	CompletedTasks StatValue `json:"completed_tasks" yaml:"completed_tasks"`
	MonthlyRevenue StatValue `json:"monthly_revenue" yaml:"monthly_revenue"`
}

// ScheduleItem is a shooting day or task due today.
type ScheduleItem struct {
	Type     string `json:"type"     yaml:"type"`
	Time     string `json:"time"     yaml:"time"`
	Title    string `json:"title"    yaml:"title"`
	Location string `json:"location" yaml:"location"`
	Color    string `json:"color"    yaml:"color"`
}

// DashboardStats is the payload of GET /dashboard/stats/.
type DashboardStats struct {
	Stats          DashboardStatCards `json:"stats"           yaml:"stats"`
	RecentProjects []Project          `json:"recent_projects" yaml:"recent_projects"`
	Schedule       []ScheduleItem     `json:"schedule"        yaml:"schedule"`
}

// DashboardOverview combines stats, active projects and the current user for one screen.
type DashboardOverview struct {
	Stats          DashboardStats `json:"stats"           yaml:"stats"`
	ActiveProjects []Project      `json:"active_projects" yaml:"active_projects"`
	Me             *Profile       `json:"me"              yaml:"me"`
}

// Profile is GET /users/me/: the user record plus current agency and membership info.
type Profile struct {
	auth.User     `yaml:",inline"`
	CurrentAgency *auth.Agency `json:"current_agency" yaml:"current_agency"`
	Role          string       `json:"role"           yaml:"role"`
	IsOwner       bool         `json:"is_owner"       yaml:"is_owner"`
}
