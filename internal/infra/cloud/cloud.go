// Package cloud provides a resilient upload engine for remote storage
// providers.
//
// This package offers reliable blob delivery with:
//   - Multiple provider support (S3-compatible, REST, gRPC gateways)
//   - Automatic retry with exponential backoff and failover
//   - Per-provider health tracking and quality tiers
//   - Monthly budget accounting with cost-aware selection
//
// # Quick Start
//
//	import "github.com/vietddude/uplink/internal/infra/cloud"
//
//	// Setup
//	engine := cloud.NewEngine(cloud.EngineConfig{
//	    BudgetCeiling: decimal.NewFromInt(50),
//	    Strategy:      cloud.StrategyRoundRobin,
//	})
//	engine.Register(ctx, cloud.Registration{
//	    Settings: cloud.Settings{Name: "aws-primary", Platform: domain.PlatformAWS, Bucket: "uplink-prod"},
//	    Priority: 1,
//	})
//	engine.Register(ctx, cloud.Registration{
//	    Settings: cloud.Settings{Name: "backup", Platform: domain.PlatformCustom, Endpoint: "grpc://gw.local:7443"},
//	    Priority: 2,
//	})
//
//	// Upload
//	receipt, err := engine.Upload(ctx, *domain.NewUploadRequest("/blobs/1.bin", payload))
//
// # Package Structure
//
// The package is organized into sub-packages for maintainability:
//
//   - provider/ - transports (REST, S3, gateway), health tracking, registry
//   - routing/  - selection strategies, retry loop, failover coordination
//   - budget/   - cost ledger, rate table, spend prediction
//
// Most types are re-exported at the root level for convenience.
package cloud

import (
	"context"

	"github.com/vietddude/uplink/internal/infra/cloud/budget"
	"github.com/vietddude/uplink/internal/infra/cloud/provider"
	"github.com/vietddude/uplink/internal/infra/cloud/routing"
)

// =============================================================================
// Re-exported types from provider package
// =============================================================================

// Provider is the core interface for upload destinations.
type Provider = provider.Provider

// Settings holds the wiring for one upload destination.
type Settings = provider.Settings

// UploadResult reports a completed transfer.
type UploadResult = provider.UploadResult

// Tracker owns per-provider statistics and health classification.
type Tracker = provider.Tracker

// Registry holds provider lifecycle and priority ranks.
type Registry = provider.Registry

// Provider contract errors
var (
	ErrThrottled         = provider.ErrThrottled
	ErrAlreadyRegistered = provider.ErrAlreadyRegistered
	ErrNotRegistered     = provider.ErrNotRegistered
)

// NewProvider builds the transport for a settings block.
func NewProvider(ctx context.Context, s Settings) (Provider, error) {
	return provider.New(ctx, s)
}

// =============================================================================
// Re-exported types from routing package
// =============================================================================

// Selector chooses a provider for each new upload.
type Selector = routing.Selector

// Strategy defines how the selector balances load across providers.
type Strategy = routing.Strategy

// Policy bounds the per-provider retry loop.
type Policy = routing.Policy

// Coordinator owns the end-to-end failover flow.
type Coordinator = routing.Coordinator

// BatchResult pairs one batch item with its terminal outcome.
type BatchResult = routing.BatchResult

// ExhaustedError reports a request that failed on every candidate.
type ExhaustedError = routing.ExhaustedError

// Selection strategy constants
const (
	StrategyRoundRobin      = routing.StrategyRoundRobin
	StrategyLeastLoaded     = routing.StrategyLeastLoaded
	StrategyFastestResponse = routing.StrategyFastestResponse
	StrategyCostOptimized   = routing.StrategyCostOptimized
)

// Routing contract errors
var (
	ErrNoProviderAvailable   = routing.ErrNoProviderAvailable
	ErrAllProvidersExhausted = routing.ErrAllProvidersExhausted
)

// DefaultPolicy provides sensible retry defaults.
var DefaultPolicy = routing.DefaultPolicy

// ParseStrategy maps a config string onto a Strategy.
func ParseStrategy(raw string) (Strategy, error) {
	return routing.ParseStrategy(raw)
}

// =============================================================================
// Re-exported types from budget package
// =============================================================================

// Ledger accumulates estimated spend per provider against the monthly
// ceiling.
type Ledger = budget.Ledger

// LedgerEntry is one persisted spend accumulator.
type LedgerEntry = budget.Entry

// Prediction holds spend-rate data for the fleet.
type Prediction = budget.Prediction

// DefaultRate returns the built-in per-MB rate for a platform.
var DefaultRate = budget.DefaultRate
