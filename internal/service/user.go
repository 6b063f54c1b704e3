package service

import (
	"context"
	"net/http"

	"github.com/todoproduction/todo-client/internal/apiclient"
	"github.com/todoproduction/todo-client/internal/domain/model"
	apperrors "github.com/todoproduction/todo-client/internal/errors"
)

// UserServiceOptions groups dependencies for UserService.
type UserServiceOptions struct {
	Client APIClient // Required
}

// UserService covers the current user's profile and agency team.
type UserService struct {
	client APIClient
}

// NewUserService constructs a new UserService.
func NewUserService(opts UserServiceOptions) *UserService {
	if opts.Client == nil {
		panic("UserService requires a Client")
	}
	return &UserService{client: opts.Client}
}

// Me returns the logged-in user's profile.
func (s *UserService) Me(ctx context.Context) (*model.Profile, error) {
	var out model.Profile
	if err := s.client.GetJSON(ctx, "/users/me/", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Team lists the members of the current agency.
func (s *UserService) Team(ctx context.Context) (*model.Team, error) {
	var out model.Team
	if err := s.client.GetJSON(ctx, "/users/team/", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Invite adds email to the current agency. roleID is optional.
// Inviting an existing member succeeds with AlreadyMember set.
func (s *UserService) Invite(ctx context.Context, email string, roleID *int64) (*model.InviteResult, error) {
	in := model.InviteRequest{Email: email, RoleID: roleID}
	in.Normalize()
	if err := in.Validate(); err != nil {
		return nil, apperrors.ValidationField("email", err.Error())
	}

	req, err := apiclient.NewJSONRequest(http.MethodPost, "/users/invite/", in)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(ctx, req)
	if err != nil {
		return nil, err
	}

	var out model.InviteResult
	if err := resp.Decode(&out); err != nil {
		return nil, err
	}
	out.AlreadyMember = resp.StatusCode == http.StatusOK && !out.CreatedNewUser && out.UserID == 0
	return &out, nil
}
