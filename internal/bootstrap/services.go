package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/todoproduction/todo-client/config"
	"github.com/todoproduction/todo-client/internal/apiclient"
	"github.com/todoproduction/todo-client/internal/authstate"
	"github.com/todoproduction/todo-client/internal/observability/statsd"
	"github.com/todoproduction/todo-client/internal/ports"
	"github.com/todoproduction/todo-client/internal/service"
)

// ServiceContainer holds the API client and every domain service built on it.
type ServiceContainer struct {
	Client        *apiclient.Client
	State         *authstate.State
	Auth          *service.AuthService
	Projects      *service.ProjectService
	Users         *service.UserService
	Dashboard     *service.DashboardService
	Health        *service.HealthService
	Observability ObservabilityContainer
}

// ObservabilityContainer groups shared observability dependencies.
type ObservabilityContainer struct {
	MetricsSink   *statsd.Client
	MetricsConfig config.ObservabilityMetricsConfig
}

// Close waits for in-flight token refreshes, then releases the metrics
// connection. Call it before closing the credential store.
func (c ServiceContainer) Close() error {
	var errs []error
	if c.Client != nil {
		errs = append(errs, c.Client.Close())
	}
	if c.Observability.MetricsSink != nil {
		errs = append(errs, c.Observability.MetricsSink.Close())
	}
	return errors.Join(errs...)
}

// ServiceDeps groups dependencies for service initialization.
type ServiceDeps struct {
	Config *config.AppConfig
	Store  ports.CredentialStore
	// Listener is told about invalidated sessions after the auth state resets.
	Listener ports.SessionListener
	// HTTPClient overrides the default client; tests point it at a fake API.
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// buildObservability configures the metrics sink.
func buildObservability(logger *slog.Logger, cfg config.ObservabilityMetricsConfig) ObservabilityContainer {
	out := ObservabilityContainer{MetricsConfig: cfg}
	if !cfg.IsEnabled() {
		return out
	}

	client, err := statsd.NewClient(statsd.Config{
		Enabled: true,
		Address: cfg.StatsdAddress,
		Prefix:  cfg.Prefix,
		Logger:  logger,
	})
	if err != nil {
		logger.Error("failed to initialise statsd client", "error", err)
		return out
	}
	out.MetricsSink = client
	return out
}

// NewServices wires the API client, auth state and domain services.
func NewServices(ctx context.Context, deps *ServiceDeps) (ServiceContainer, error) {
	if deps == nil || deps.Config == nil {
		return ServiceContainer{}, errors.New("service deps with config are required")
	}
	if deps.Store == nil {
		return ServiceContainer{}, errors.New("credential store is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := deps.Config

	observability := buildObservability(logger, cfg.Observability.Metrics)
	state := authstate.New(deps.Store, logger)

	opts := apiclient.Options{
		BaseURL:     cfg.API.BaseURL,
		Store:       deps.Store,
		Listener:    ports.SessionListeners{state, deps.Listener},
		HTTPClient:  deps.HTTPClient,
		Timeout:     cfg.API.Timeout,
		Logger:      logger,
		RefreshPath: cfg.API.RefreshPath,
		EntryPoint:  cfg.API.EntryPoint,
		UserAgent:   cfg.API.UserAgent,
	}
	if observability.MetricsSink != nil {
		opts.Metrics = observability.MetricsSink
	}
	client, err := apiclient.New(opts)
	if err != nil {
		return ServiceContainer{}, errors.Join(err, ServiceContainer{Observability: observability}.Close())
	}

	projects := service.NewProjectService(service.ProjectServiceOptions{Client: client})
	users := service.NewUserService(service.UserServiceOptions{Client: client})

	logger.DebugContext(ctx, "services initialised",
		"base_url", client.BaseURL(),
		"metrics", observability.MetricsSink != nil,
	)

	return ServiceContainer{
		Client: client,
		State:  state,
		Auth: service.NewAuthService(service.AuthServiceOptions{
			Client: client,
			State:  state,
			Logger: logger,
		}),
		Projects: projects,
		Users:    users,
		Dashboard: service.NewDashboardService(service.DashboardServiceOptions{
			Client:   client,
			Projects: projects,
			Users:    users,
		}),
		Health:        service.NewHealthService(client),
		Observability: observability,
	}, nil
}
