// Package integration provides integration tests that verify upload session state
// persisted by the client. These tests use real databases via testcontainers.
//
// Run with: go test -tags=integration ./tests/integration/...
package integration
