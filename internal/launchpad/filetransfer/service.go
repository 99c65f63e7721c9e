// Package filetransfer fetches the files referred to by clusters, commands, applications and jobs to local disk.
//
// Adapters exist for local paths, HTTP(S) and S3. The Router picks an adapter by URI scheme and RetryingService
// adds retries on top of any Service; nothing else in the module retries transfers.
package filetransfer

import (
	"context"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/armadaproject/launchpad/internal/common/launchpadcontext"
	"github.com/armadaproject/launchpad/internal/common/launchpaderrors"
)

// Service fetches a single file.
//
// GetFile copies source to the local path destination, overwriting any file already there. The parent directory of
// destination must exist. If the source can't be reached or doesn't exist, a *launchpaderrors.ErrTransfer is
// returned and destination is left unchanged.
type Service interface {
	GetFile(ctx context.Context, source, destination string) error
}

func transferError(source, destination string, err error) error {
	return errors.WithStack(&launchpaderrors.ErrTransfer{Source: source, Destination: destination, Err: err})
}

// writeFile writes the content produced by write to a temporary file next to destination,
// then renames it over destination so readers never see a partial file.
func writeFile(source, destination string, write func(w io.Writer) error) error {
	dir, name := filepath.Split(destination)
	if dir == "" {
		dir = "."
	}
	tmp, err := os.CreateTemp(dir, "."+name+".*.tmp")
	if err != nil {
		return errors.WithStack(&launchpaderrors.ErrIO{Op: "create", Path: destination, Err: err})
	}
	defer func() {
		// Only succeeds if the rename below didn't happen.
		_ = os.Remove(tmp.Name())
	}()

	if err := write(tmp); err != nil {
		_ = tmp.Close()
		return transferError(source, destination, err)
	}
	if err := tmp.Close(); err != nil {
		return errors.WithStack(&launchpaderrors.ErrIO{Op: "write", Path: destination, Err: err})
	}
	if err := os.Rename(tmp.Name(), destination); err != nil {
		return errors.WithStack(&launchpaderrors.ErrIO{Op: "rename", Path: destination, Err: err})
	}
	return nil
}

// scheme returns the lower-cased URI scheme of source, or "" if source is a plain path.
func scheme(source string) string {
	if !strings.Contains(source, "://") {
		return ""
	}
	u, err := url.Parse(source)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Scheme)
}

func loggerFor(ctx context.Context) *logrus.Entry {
	if c, ok := ctx.(*launchpadcontext.Context); ok && c.Log != nil {
		return c.Log
	}
	return logrus.NewEntry(logrus.StandardLogger())
}
