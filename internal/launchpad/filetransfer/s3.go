package filetransfer

import (
	"context"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/pkg/errors"

	"github.com/armadaproject/launchpad/internal/launchpad/configuration"
)

type objectGetter interface {
	FGetObject(ctx context.Context, bucketName, objectName, filePath string, opts minio.GetObjectOptions) error
}

// S3Service downloads s3://bucket/key sources from an S3 compatible object store.
type S3Service struct {
	client objectGetter
}

func NewS3Service(config configuration.S3Config) (*S3Service, error) {
	if strings.Contains(config.Endpoint, "://") {
		return nil, errors.Errorf("s3 endpoint must not include a scheme: %q", config.Endpoint)
	}
	client, err := minio.New(config.Endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(config.AccessKey, config.SecretKey, ""),
		Secure:    config.UseSSL,
		Region:    config.Region,
		Transport: newTransport(),
	})
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return &S3Service{client: client}, nil
}

func (s *S3Service) GetFile(ctx context.Context, source, destination string) error {
	bucket, key, err := parseS3Uri(source)
	if err != nil {
		return transferError(source, destination, err)
	}
	// The client downloads to a temporary file next to destination and renames it when complete.
	if err := s.client.FGetObject(ctx, bucket, key, destination, minio.GetObjectOptions{}); err != nil {
		return transferError(source, destination, err)
	}
	return nil
}

func parseS3Uri(source string) (string, string, error) {
	u, err := url.Parse(source)
	if err != nil {
		return "", "", errors.WithStack(err)
	}
	if strings.ToLower(u.Scheme) != "s3" {
		return "", "", errors.Errorf("not an s3 uri: %s", source)
	}
	key := strings.TrimPrefix(u.Path, "/")
	if u.Host == "" || key == "" {
		return "", "", errors.Errorf("s3 uri must have the form s3://bucket/key: %s", source)
	}
	return u.Host, key, nil
}

func newTransport() *http.Transport {
	dialer := &net.Dialer{
		Timeout:   5 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}
