// Package mocks provides mock implementations for testing the API client and its collaborators.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks for the port interfaces.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	store := mocks.NewMockCredentialStore(ctrl)
//	store.EXPECT().Get(gomock.Any(), "access_token").Return("A1", true, nil)
package mocks

// Generate mocks for CredentialStore and SessionListener from internal/ports.
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=ports_mock.go github.com/todoproduction/todo-client/internal/ports CredentialStore,SessionListener
