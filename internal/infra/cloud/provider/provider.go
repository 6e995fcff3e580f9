// Package provider implements upload destinations and their runtime health.
//
// This package contains:
//   - Provider interface: core abstraction for upload destinations
//   - RESTProvider: authenticated HTTP PUT for generic object endpoints
//   - S3Provider: aws-sdk-go-v2 client for S3-compatible stores
//   - GatewayProvider: gRPC client for custom field gateways
//   - Tracker: per-provider statistics and health classification
//   - Registry: provider lifecycle (register, reconfigure, unregister)
package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vietddude/uplink/internal/core/domain"
)

// ErrThrottled marks rate-limit responses from a destination. The retry
// loop treats it like any failure; the label only feeds logs and metrics.
var ErrThrottled = errors.New("provider throttled")

// Settings holds the wiring for one upload destination.
type Settings struct {
	// Name is the unique provider identifier (e.g. "aws-primary").
	Name string

	// Platform is the vendor behind the destination.
	Platform domain.Platform

	// Transport overrides the platform's default transport kind.
	Transport domain.TransportKind

	// Endpoint is the base URL or dial target. Empty means the
	// platform's public endpoint (S3 only).
	Endpoint string

	// Region for SDK-driven transports.
	Region string

	// Bucket is the container objects land in.
	Bucket string

	// AccessKey/SecretKey authenticate SDK transports; Token is the
	// bearer credential for REST endpoints.
	AccessKey string
	SecretKey string
	Token     string

	// Encrypted selects TLS on the wire.
	Encrypted bool

	// SyncMode describes how the destination is meant to receive data.
	// The engine records it; scheduling around it belongs to the caller.
	SyncMode domain.SyncMode

	// Timeout bounds a single transport round-trip.
	Timeout time.Duration
}

// UploadResult reports a completed transfer.
type UploadResult struct {
	BytesTransferred int64
	RemoteRef        string
}

// Provider is one configured upload destination. Implementations own the
// wire protocol only; health bookkeeping lives in Tracker.
type Provider interface {
	// Name returns the unique provider identifier.
	Name() string

	// Platform returns the vendor behind this destination.
	Platform() domain.Platform

	// Settings returns the current configuration.
	Settings() Settings

	// Probe performs one lightweight connectivity round-trip.
	Probe(ctx context.Context) error

	// Upload pushes one payload to the destination.
	Upload(ctx context.Context, req domain.UploadRequest) (*UploadResult, error)

	// Close releases transport resources.
	Close() error
}

// New builds the provider for s.Transport, falling back to the
// platform's default kind. Unknown platforms or kinds are config errors,
// not new code paths.
func New(ctx context.Context, s Settings) (Provider, error) {
	kind := s.Transport
	if kind == "" {
		kind = domain.PlatformTransports[s.Platform]
	}

	switch kind {
	case domain.TransportS3:
		return NewS3Provider(s)
	case domain.TransportREST:
		return NewRESTProvider(s), nil
	case domain.TransportGateway:
		return NewGatewayProvider(ctx, s)
	default:
		return nil, fmt.Errorf("provider %s: no transport for platform %q", s.Name, s.Platform)
	}
}
