package filetransfer

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
)

// HTTPService downloads http:// and https:// sources.
type HTTPService struct {
	client *http.Client
}

func NewHTTPService(timeout time.Duration) *HTTPService {
	return &HTTPService{client: &http.Client{Timeout: timeout}}
}

func (s *HTTPService) GetFile(ctx context.Context, source, destination string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return transferError(source, destination, err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return transferError(source, destination, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return transferError(source, destination, errors.Errorf("unexpected status %s", resp.Status))
	}
	return writeFile(source, destination, func(w io.Writer) error {
		_, err := io.Copy(w, resp.Body)
		return err
	})
}
