package provider

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/vietddude/uplink/internal/core/domain"
)

// gatewayPutMethod is the unary ingest method custom field gateways
// expose. The payload rides in a BytesValue and the reply carries the
// stored object reference, so no generated client is needed.
const gatewayPutMethod = "/uplink.gateway.v1.Ingest/Put"

// GatewayProvider pushes blobs to a custom field gateway over gRPC.
type GatewayProvider struct {
	settings Settings
	conn     *grpc.ClientConn
	health   grpc_health_v1.HealthClient
}

// NewGatewayProvider creates a gateway provider. The connection is lazy;
// the first probe or upload dials it.
func NewGatewayProvider(ctx context.Context, s Settings) (*GatewayProvider, error) {
	target := s.Endpoint
	var opts []grpc.DialOption

	if s.Encrypted || strings.HasPrefix(target, "https://") {
		opts = append(opts, grpc.WithTransportCredentials(credentials.NewTLS(&tls.Config{})))
	} else {
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}
	target = strings.TrimPrefix(target, "https://")
	target = strings.TrimPrefix(target, "http://")
	target = strings.TrimPrefix(target, "grpc://")

	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("dial gateway %s: %w", target, err)
	}

	return &GatewayProvider{
		settings: s,
		conn:     conn,
		health:   grpc_health_v1.NewHealthClient(conn),
	}, nil
}

func (p *GatewayProvider) Name() string              { return p.settings.Name }
func (p *GatewayProvider) Platform() domain.Platform { return p.settings.Platform }
func (p *GatewayProvider) Settings() Settings        { return p.settings }

// Probe runs the standard gRPC health check against the gateway.
func (p *GatewayProvider) Probe(ctx context.Context) error {
	resp, err := p.health.Check(ctx, &grpc_health_v1.HealthCheckRequest{})
	if err != nil {
		return fmt.Errorf("gateway health check: %w", err)
	}
	if resp.GetStatus() != grpc_health_v1.HealthCheckResponse_SERVING {
		return fmt.Errorf("gateway not serving: %s", resp.GetStatus())
	}
	return nil
}

// Upload invokes the ingest method with the raw payload. The remote path
// and request ID travel as metadata.
func (p *GatewayProvider) Upload(ctx context.Context, req domain.UploadRequest) (*UploadResult, error) {
	if p.settings.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.settings.Timeout)
		defer cancel()
	}

	md := metadata.Pairs(
		"x-upload-path", req.RemotePath,
		"x-request-id", req.ID,
	)
	ctx = metadata.NewOutgoingContext(ctx, md)

	in := wrapperspb.Bytes(req.Payload)
	out := &wrapperspb.StringValue{}

	if err := p.conn.Invoke(ctx, gatewayPutMethod, in, out); err != nil {
		if st, ok := status.FromError(err); ok && st.Code() == codes.ResourceExhausted {
			return nil, fmt.Errorf("%w: %s", ErrThrottled, st.Message())
		}
		return nil, fmt.Errorf("gateway put %s: %w", req.RemotePath, err)
	}

	return &UploadResult{
		BytesTransferred: int64(len(req.Payload)),
		RemoteRef:        out.GetValue(),
	}, nil
}

// Close tears down the gateway connection.
func (p *GatewayProvider) Close() error {
	return p.conn.Close()
}
