package provider

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/vietddude/uplink/internal/core/domain"
)

// RESTProvider uploads via authenticated HTTP PUT. It serves any endpoint
// that accepts object writes at a path, which covers Azure-style blob
// fronts and self-hosted stores.
type RESTProvider struct {
	settings Settings
	client   *http.Client
}

// NewRESTProvider creates a REST provider with a pooled transport.
func NewRESTProvider(s Settings) *RESTProvider {
	timeout := s.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &RESTProvider{
		settings: s,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

func (p *RESTProvider) Name() string              { return p.settings.Name }
func (p *RESTProvider) Platform() domain.Platform { return p.settings.Platform }
func (p *RESTProvider) Settings() Settings        { return p.settings }

// objectURL joins the endpoint, bucket and remote path.
func (p *RESTProvider) objectURL(remotePath string) string {
	base := strings.TrimSuffix(p.settings.Endpoint, "/")
	if p.settings.Bucket != "" {
		base += "/" + p.settings.Bucket
	}
	return base + "/" + strings.TrimPrefix(remotePath, "/")
}

// Probe checks the container is reachable with the configured
// credentials. Auth rejections count as failures.
func (p *RESTProvider) Probe(ctx context.Context) error {
	url := strings.TrimSuffix(p.settings.Endpoint, "/")
	if p.settings.Bucket != "" {
		url += "/" + p.settings.Bucket
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return fmt.Errorf("create probe request: %w", err)
	}
	p.authorize(req)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("probe %s: %w", p.settings.Name, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("probe %s: rejected with http %d", p.settings.Name, resp.StatusCode)
	case resp.StatusCode >= 500:
		return fmt.Errorf("probe %s: http %d", p.settings.Name, resp.StatusCode)
	}
	return nil
}

// Upload PUTs the payload to the object URL.
func (p *RESTProvider) Upload(ctx context.Context, req domain.UploadRequest) (*UploadResult, error) {
	httpReq, err := http.NewRequestWithContext(
		ctx,
		http.MethodPut,
		p.objectURL(req.RemotePath),
		bytes.NewReader(req.Payload),
	)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/octet-stream")
	httpReq.ContentLength = int64(len(req.Payload))
	p.authorize(httpReq)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", req.RemotePath, err)
	}
	defer resp.Body.Close()

	// Rate limit / block detection
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusForbidden {
		return nil, fmt.Errorf("%w: http %d, retry after %q",
			ErrThrottled, resp.StatusCode, resp.Header.Get("Retry-After"))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("upload %s: http %d: %s",
			req.RemotePath, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return &UploadResult{
		BytesTransferred: int64(len(req.Payload)),
		RemoteRef:        strings.Trim(resp.Header.Get("ETag"), `"`),
	}, nil
}

func (p *RESTProvider) authorize(req *http.Request) {
	if p.settings.Token != "" {
		req.Header.Set("Authorization", "Bearer "+p.settings.Token)
	}
}

// Close drops pooled connections.
func (p *RESTProvider) Close() error {
	p.client.CloseIdleConnections()
	return nil
}
