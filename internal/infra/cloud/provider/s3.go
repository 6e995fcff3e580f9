package provider

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"github.com/vietddude/uplink/internal/core/domain"
)

// S3Provider uploads through the AWS SDK. Any S3-compatible endpoint
// works via BaseEndpoint (GCS interop, MinIO); path-style addressing is
// forced whenever a custom endpoint is set.
type S3Provider struct {
	settings Settings
	client   *s3.Client
}

// NewS3Provider creates an S3 provider from static credentials.
func NewS3Provider(s Settings) (*S3Provider, error) {
	if s.Bucket == "" {
		return nil, fmt.Errorf("provider %s: bucket is required for s3 transport", s.Name)
	}

	region := s.Region
	if region == "" {
		region = "us-east-1"
	}

	opts := s3.Options{
		Region: region,
	}
	if s.AccessKey != "" {
		opts.Credentials = credentials.NewStaticCredentialsProvider(s.AccessKey, s.SecretKey, "")
	}
	if s.Endpoint != "" {
		opts.BaseEndpoint = aws.String(s.Endpoint)
		opts.UsePathStyle = true
	}
	if !s.Encrypted && s.Endpoint != "" {
		opts.EndpointOptions.DisableHTTPS = true
	}
	if s.Timeout > 0 {
		opts.HTTPClient = &http.Client{Timeout: s.Timeout}
	}

	return &S3Provider{settings: s, client: s3.New(opts)}, nil
}

func (p *S3Provider) Name() string              { return p.settings.Name }
func (p *S3Provider) Platform() domain.Platform { return p.settings.Platform }
func (p *S3Provider) Settings() Settings        { return p.settings }

// Probe asks for the bucket head, which exercises endpoint, credentials
// and bucket existence in one round-trip.
func (p *S3Provider) Probe(ctx context.Context) error {
	_, err := p.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(p.settings.Bucket),
	})
	if err != nil {
		return fmt.Errorf("head bucket %s: %w", p.settings.Bucket, err)
	}
	return nil
}

// Upload puts the payload under the request's remote path.
func (p *S3Provider) Upload(ctx context.Context, req domain.UploadRequest) (*UploadResult, error) {
	key := strings.TrimPrefix(req.RemotePath, "/")

	out, err := p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(p.settings.Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(req.Payload),
		ContentLength: aws.Int64(int64(len(req.Payload))),
		ContentType:   aws.String("application/octet-stream"),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			switch apiErr.ErrorCode() {
			case "SlowDown", "RequestLimitExceeded", "Throttling":
				return nil, fmt.Errorf("%w: %s", ErrThrottled, apiErr.ErrorMessage())
			}
		}
		return nil, fmt.Errorf("put object %s: %w", key, err)
	}

	ref := ""
	if out.ETag != nil {
		ref = strings.Trim(*out.ETag, `"`)
	}
	return &UploadResult{
		BytesTransferred: int64(len(req.Payload)),
		RemoteRef:        ref,
	}, nil
}

// Close is a no-op; the SDK client holds no sockets of its own.
func (p *S3Provider) Close() error { return nil }
