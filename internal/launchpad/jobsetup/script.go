package jobsetup

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/armadaproject/launchpad/internal/common/launchpaderrors"
)

// LauncherScriptName is the name of the launcher script within the job's working directory.
const LauncherScriptName = "launcher.sh"

// LauncherScript is the shell preamble the job launcher runs before the resolved command's executable.
// It only ever has lines of the form `source <absolute-path>;` appended to it, one per staged setup file.
// A LauncherScript is owned by a single workflow run and is not threadsafe.
type LauncherScript struct {
	path   string
	file   *os.File
	writer *bufio.Writer
	closed bool
}

// OpenLauncherScript creates the launcher script in workingDir, truncating any previous content.
func OpenLauncherScript(workingDir string) (*LauncherScript, error) {
	path := filepath.Join(workingDir, LauncherScriptName)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o755)
	if err != nil {
		return nil, errors.WithStack(&launchpaderrors.ErrIO{Op: "open", Path: path, Err: err})
	}
	return &LauncherScript{
		path:   path,
		file:   file,
		writer: bufio.NewWriter(file),
	}, nil
}

func (s *LauncherScript) Path() string {
	return s.path
}

// AppendSource appends a line sourcing the file at path. Relative paths are made absolute first.
func (s *LauncherScript) AppendSource(path string) error {
	if s.closed {
		return errors.WithStack(&launchpaderrors.ErrIO{Op: "write", Path: s.path, Err: os.ErrClosed})
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return errors.WithStack(&launchpaderrors.ErrIO{Op: "write", Path: s.path, Err: err})
	}
	if _, err := fmt.Fprintf(s.writer, "source %s;\n", abs); err != nil {
		return errors.WithStack(&launchpaderrors.ErrIO{Op: "write", Path: s.path, Err: err})
	}
	return nil
}

// Close flushes the script and closes the underlying file. Calling Close more than once is a no-op.
func (s *LauncherScript) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	flushErr := s.writer.Flush()
	closeErr := s.file.Close()
	if flushErr != nil {
		return errors.WithStack(&launchpaderrors.ErrIO{Op: "flush", Path: s.path, Err: flushErr})
	}
	if closeErr != nil {
		return errors.WithStack(&launchpaderrors.ErrIO{Op: "close", Path: s.path, Err: closeErr})
	}
	return nil
}
