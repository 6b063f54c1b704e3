package service

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/todoproduction/todo-client/internal/apiclient"
	"github.com/todoproduction/todo-client/internal/domain/model"
	apperrors "github.com/todoproduction/todo-client/internal/errors"
)

// HealthService probes the API health endpoint.
type HealthService struct {
	client APIClient
}

// NewHealthService constructs a new HealthService.
func NewHealthService(client APIClient) *HealthService {
	if client == nil {
		panic("HealthService requires a Client")
	}
	return &HealthService{client: client}
}

// Check returns the API's view of its own health. A 503 with a health body is
// reported as an unhealthy status rather than an error.
func (s *HealthService) Check(ctx context.Context) (*model.HealthStatus, error) {
	req := apiclient.Request{Method: http.MethodGet, Path: "/health/", Anonymous: true}

	var out model.HealthStatus
	resp, err := s.client.Do(ctx, req)
	if err != nil {
		if apperrors.GetStatus(err) != http.StatusServiceUnavailable {
			return nil, err
		}
		if jerr := json.Unmarshal(apperrors.GetBody(err), &out); jerr != nil || out.Status == "" {
			return nil, err
		}
		return &out, nil
	}

	if err := resp.Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}
