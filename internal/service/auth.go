package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/todoproduction/todo-client/internal/apiclient"
	"github.com/todoproduction/todo-client/internal/authstate"
	domainauth "github.com/todoproduction/todo-client/internal/domain/auth"
	apperrors "github.com/todoproduction/todo-client/internal/errors"
)

// AuthServiceOptions groups dependencies for AuthService.
type AuthServiceOptions struct {
	Client APIClient        // Required
	State  *authstate.State // Required
	Logger *slog.Logger     // Optional
}

// AuthService runs the login, registration, logout and agency flows and keeps
// the auth state and credential store in step with the API.
type AuthService struct {
	client APIClient
	state  *authstate.State
	logger *slog.Logger
}

// NewAuthService constructs a new AuthService.
func NewAuthService(opts AuthServiceOptions) *AuthService {
	if opts.Client == nil {
		panic("AuthService requires a Client")
	}
	if opts.State == nil {
		panic("AuthService requires a State")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{
		client: opts.Client,
		state:  opts.State,
		logger: logger.With("component", "auth_service"),
	}
}

// Login exchanges email and password for a session. Tokens are stored and the
// auth state is set before it returns.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domainauth.AuthResponse, error) {
	in := domainauth.LoginRequest{Email: strings.TrimSpace(email), Password: password}
	if err := in.Validate(); err != nil {
		return nil, apperrors.Validation(err.Error())
	}

	out, err := s.authenticate(ctx, "/auth/login/", in)
	if err != nil {
		return nil, err
	}
	if out.Tokens == nil || !out.Tokens.Complete() {
		return nil, apperrors.Decode(errors.New("missing tokens"), "login response")
	}
	if err := s.establish(ctx, out); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "logged in", "user_id", userID(out.User))
	return out, nil
}

// Register creates an account and agency. When the API answers with tokens the
// new session is established the same way as Login.
func (s *AuthService) Register(ctx context.Context, in domainauth.RegisterRequest) (*domainauth.AuthResponse, error) {
	in.Normalize()
	if err := in.Validate(); err != nil {
		return nil, apperrors.Validation(err.Error())
	}

	out, err := s.authenticate(ctx, "/auth/register/", in)
	if err != nil {
		return nil, err
	}
	if out.Tokens != nil && out.Tokens.Complete() {
		if err := s.establish(ctx, out); err != nil {
			return nil, err
		}
	}

	s.logger.InfoContext(ctx, "registered", "user_id", userID(out.User), "session", out.Tokens != nil)
	return out, nil
}

func (s *AuthService) authenticate(ctx context.Context, path string, in any) (*domainauth.AuthResponse, error) {
	req, err := apiclient.NewJSONRequest(http.MethodPost, path, in)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(ctx, req.AsAnonymous())
	if err != nil {
		return nil, err
	}
	var out domainauth.AuthResponse
	if err := resp.Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *AuthService) establish(ctx context.Context, out *domainauth.AuthResponse) error {
	if err := s.state.SaveCredentials(ctx, *out.Tokens); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "save credentials")
	}
	if out.User == nil {
		return nil
	}
	if err := s.state.SetAuth(ctx, *out.User, out.Agency); err != nil {
		// Tokens without an identity snapshot are not a usable session.
		if lerr := s.state.Logout(context.WithoutCancel(ctx)); lerr != nil {
			s.logger.ErrorContext(ctx, "rolling back session after failed identity write", "error", lerr)
			err = errors.Join(err, lerr)
		}
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "save identity")
	}
	return nil
}

// Logout revokes the refresh token on the server when possible and always
// clears the local session.
func (s *AuthService) Logout(ctx context.Context) error {
	creds, err := s.state.Credentials(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "reading credentials for logout", "error", err)
	}

	if creds.RefreshToken != "" {
		if err := s.revoke(ctx, creds.RefreshToken); err != nil {
			s.logger.WarnContext(ctx, "server logout failed, clearing local session anyway", "error", err)
		}
	}

	if err := s.state.Logout(ctx); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "logout")
	}
	s.logger.InfoContext(ctx, "logged out")
	return nil
}

// revoke blacklists refreshToken server-side. An expired access token makes
// this fail with 401; it does not trigger a refresh.
func (s *AuthService) revoke(ctx context.Context, refreshToken string) error {
	req, err := apiclient.NewJSONRequest(http.MethodPost, "/auth/logout/",
		domainauth.RefreshRequest{Refresh: refreshToken})
	if err != nil {
		return err
	}
	_, err = s.client.Do(ctx, req.WithoutRefresh())
	return err
}

// SwitchAgency makes agencyID the current agency for this user.
func (s *AuthService) SwitchAgency(ctx context.Context, agencyID int64) (*domainauth.SwitchAgencyResponse, error) {
	if agencyID <= 0 {
		return nil, apperrors.ValidationField("agency_id", "agency_id must be positive")
	}

	var out domainauth.SwitchAgencyResponse
	if err := s.client.PostJSON(ctx, "/auth/switch-agency/", domainauth.SwitchAgencyRequest{AgencyID: agencyID}, &out); err != nil {
		return nil, err
	}
	if err := s.state.SetAgency(ctx, out.Agency); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "save agency")
	}
	return &out, nil
}

// MyAgencies lists every agency the user belongs to.
func (s *AuthService) MyAgencies(ctx context.Context) (*domainauth.AgencyList, error) {
	var out domainauth.AgencyList
	if err := s.client.GetJSON(ctx, "/auth/my-agencies/", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CurrentSession returns the in-memory identity, restoring it from the store
// when this process has not logged in itself.
func (s *AuthService) CurrentSession(ctx context.Context) (domainauth.Identity, error) {
	if id := s.state.Snapshot(); id.IsAuthenticated {
		return id, nil
	}
	id, err := s.state.Restore(ctx)
	if err != nil {
		return domainauth.Identity{}, fmt.Errorf("restore session: %w", err)
	}
	return id, nil
}

func userID(u *domainauth.User) int64 {
	if u == nil {
		return 0
	}
	return u.ID
}
