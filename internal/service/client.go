package service

import (
	"context"

	"github.com/todoproduction/todo-client/internal/apiclient"
)

// APIClient is the part of *apiclient.Client the services depend on.
type APIClient interface {
	Do(ctx context.Context, req apiclient.Request) (*apiclient.Response, error)
	GetJSON(ctx context.Context, path string, out any) error
	PostJSON(ctx context.Context, path string, in, out any) error
}

var _ APIClient = (*apiclient.Client)(nil)
