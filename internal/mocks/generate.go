// Package mocks holds gomock doubles for the interfaces in internal/core.
// Rebuild them with `go generate ./internal/mocks` whenever core changes.
package mocks

//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=core_mock.go github.com/imgforge/imgforge-api/internal/core DeviceLister,EventPublisher,FailureNotifier,JobRegistry,LogReader,LogSink,Process,ProcessStarter,WifiLister
