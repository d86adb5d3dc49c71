// Package mocks provides mock implementations for testing the batchrelay core.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks for
// the external service interface. The mocks are generated using go:generate
// directives and provide a fluent API for setting up test expectations.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	defer ctrl.Finish()
//	mockSvc := mocks.NewMockBatchService(ctrl)
//	mockSvc.EXPECT().Poll(gomock.Any(), "msgbatch_01").Return(model.StatusEnded, nil)
package mocks

// Generate mock for BatchService interface from internal/core package.
// This creates MockBatchService with methods for all BatchService interface
// methods: Submit, Poll, Retrieve.
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=batch_service_mock.go github.com/promptops/batchrelay/internal/core BatchService
