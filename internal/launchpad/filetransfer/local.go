package filetransfer

import (
	"context"
	"io"
	"net/url"
	"os"

	"github.com/pkg/errors"
)

// LocalService copies files from the local filesystem. Sources are plain paths or file:// URIs.
type LocalService struct{}

func NewLocalService() *LocalService {
	return &LocalService{}
}

func (s *LocalService) GetFile(ctx context.Context, source, destination string) error {
	path, err := localPath(source)
	if err != nil {
		return transferError(source, destination, err)
	}
	if err := ctx.Err(); err != nil {
		return transferError(source, destination, err)
	}
	in, err := os.Open(path)
	if err != nil {
		return transferError(source, destination, err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return transferError(source, destination, err)
	}
	if info.IsDir() {
		return transferError(source, destination, errors.Errorf("%s is a directory", path))
	}
	return writeFile(source, destination, func(w io.Writer) error {
		_, err := io.Copy(w, in)
		return err
	})
}

func localPath(source string) (string, error) {
	switch scheme(source) {
	case "":
		return source, nil
	case "file":
		u, err := url.Parse(source)
		if err != nil {
			return "", errors.WithStack(err)
		}
		return u.Path, nil
	}
	return "", errors.Errorf("unsupported scheme for local file %s", source)
}
