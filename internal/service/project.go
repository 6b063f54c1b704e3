package service

import (
	"context"
	"net/http"
	"strconv"

	"github.com/todoproduction/todo-client/internal/apiclient"
	"github.com/todoproduction/todo-client/internal/domain/model"
	apperrors "github.com/todoproduction/todo-client/internal/errors"
)

// ProjectServiceOptions groups dependencies for ProjectService.
type ProjectServiceOptions struct {
	Client APIClient // Required
}

// ProjectService reads and creates projects in the current agency.
type ProjectService struct {
	client APIClient
}

// NewProjectService constructs a new ProjectService.
func NewProjectService(opts ProjectServiceOptions) *ProjectService {
	if opts.Client == nil {
		panic("ProjectService requires a Client")
	}
	return &ProjectService{client: opts.Client}
}

// List returns every project visible to the user.
func (s *ProjectService) List(ctx context.Context) ([]model.Project, error) {
	return s.list(ctx, "/projects/")
}

// Active returns projects that are neither completed nor cancelled.
func (s *ProjectService) Active(ctx context.Context) ([]model.Project, error) {
	return s.list(ctx, "/projects/active/")
}

func (s *ProjectService) list(ctx context.Context, path string) ([]model.Project, error) {
	resp, err := s.client.Do(ctx, apiclient.Request{Method: http.MethodGet, Path: path})
	if err != nil {
		return nil, err
	}
	projects, err := model.DecodeProjectList(resp.Body)
	if err != nil {
		return nil, apperrors.Decode(err, "project list")
	}
	return projects, nil
}

// Get returns one project.
func (s *ProjectService) Get(ctx context.Context, id int64) (*model.Project, error) {
	if id <= 0 {
		return nil, apperrors.ValidationField("id", "project id must be positive")
	}
	var out model.Project
	if err := s.client.GetJSON(ctx, "/projects/"+strconv.FormatInt(id, 10)+"/", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Create validates req and creates the project.
func (s *ProjectService) Create(ctx context.Context, req model.CreateProjectRequest) (*model.Project, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, apperrors.Validation(err.Error())
	}
	var out model.Project
	if err := s.client.PostJSON(ctx, "/projects/", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
