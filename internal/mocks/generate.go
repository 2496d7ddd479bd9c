// Package mocks contains generated mock implementations of the auth ports.
//
// The mocks are generated using go:generate directives and provide a fluent API for setting up test expectations.
// Hand-written doubles for simpler cases live in internal/mocks/auth.
package mocks

// CredentialStore mock
//
// Used by service and transport tests that need exact call-count
// expectations on persistence operations.
//
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=credential_store_mock.go github.com/linkstash/authkit/internal/ports CredentialStore

// IdentityProvider mock
//
// Used by coalescing and guard tests that assert exactly how many provider
// exchanges happen for a burst of concurrent calls.
//
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=identity_provider_mock.go github.com/linkstash/authkit/internal/ports IdentityProvider
