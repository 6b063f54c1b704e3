package service

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/todoproduction/todo-client/internal/domain/model"
)

// DashboardServiceOptions groups dependencies for DashboardService.
type DashboardServiceOptions struct {
	Client   APIClient       // Required
	Projects *ProjectService // Optional: built from Client when nil
	Users    *UserService    // Optional: built from Client when nil
}

// DashboardService loads the data behind the dashboard screen.
type DashboardService struct {
	client   APIClient
	projects *ProjectService
	users    *UserService
}

// NewDashboardService constructs a new DashboardService.
func NewDashboardService(opts DashboardServiceOptions) *DashboardService {
	if opts.Client == nil {
		panic("DashboardService requires a Client")
	}
	projects := opts.Projects
	if projects == nil {
		projects = NewProjectService(ProjectServiceOptions{Client: opts.Client})
	}
	users := opts.Users
	if users == nil {
		users = NewUserService(UserServiceOptions{Client: opts.Client})
	}
	return &DashboardService{client: opts.Client, projects: projects, users: users}
}

// Stats returns the headline numbers, recent projects and today's schedule.
func (s *DashboardService) Stats(ctx context.Context) (*model.DashboardStats, error) {
	var out model.DashboardStats
	if err := s.client.GetJSON(ctx, "/dashboard/stats/", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Overview loads stats, active projects and the current profile concurrently.
// The first failure cancels the other calls and is returned.
func (s *DashboardService) Overview(ctx context.Context) (*model.DashboardOverview, error) {
	var (
		out    model.DashboardOverview
		stats  *model.DashboardStats
		active []model.Project
		me     *model.Profile
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		stats, err = s.Stats(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		active, err = s.projects.Active(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		me, err = s.users.Me(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out.Stats = *stats
	out.ActiveProjects = active
	out.Me = me
	return &out, nil
}
