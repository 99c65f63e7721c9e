// Package jobsetup stages the files a job needs into its working directory and writes the launcher script.
//
// A Workflow runs a fixed, ordered list of tasks (application, cluster, command, job). Every task stages the setup,
// dependency and config files of its entities under <workingDir>/<kind>/<id>/{setup,dependency,config}/<file> and
// appends one `source <path>;` line to the launcher script per setup file. Tasks run one after another and the
// first failure aborts the run; files already staged are left in place.
package jobsetup

import (
	"os"

	"github.com/pkg/errors"

	"github.com/armadaproject/launchpad/internal/common/launchpaderrors"
	"github.com/armadaproject/launchpad/internal/launchpad/filetransfer"
	"github.com/armadaproject/launchpad/internal/launchpad/model"
)

const (
	DefaultDirMode          os.FileMode = 0o755
	DefaultFetchConcurrency             = 4
)

// Context is threaded through the tasks of a single workflow run. It is never shared between jobs.
type Context struct {
	Env      *model.JobExecutionEnvironment
	Transfer filetransfer.Service
	Script   *LauncherScript
	// Mode of the directories created under the working directory
	DirMode os.FileMode
	// Maximum number of files of a single entity fetched at once
	FetchConcurrency int
}

// checkPreconditions returns *launchpaderrors.ErrPreconditionFailed naming the first missing input of task.
func (c *Context) checkPreconditions(task string) error {
	operation := task + " task"
	if c == nil {
		return errors.WithStack(&launchpaderrors.ErrPreconditionFailed{Operation: operation, Key: "context"})
	}
	if c.Env == nil {
		return errors.WithStack(&launchpaderrors.ErrPreconditionFailed{Operation: operation, Key: "jobExecutionEnvironment"})
	}
	if c.Transfer == nil {
		return errors.WithStack(&launchpaderrors.ErrPreconditionFailed{Operation: operation, Key: "fileTransferService"})
	}
	if c.Script == nil {
		return errors.WithStack(&launchpaderrors.ErrPreconditionFailed{Operation: operation, Key: "launcherScript"})
	}
	return nil
}

func (c *Context) dirMode() os.FileMode {
	if c.DirMode == 0 {
		return DefaultDirMode
	}
	return c.DirMode
}

func (c *Context) fetchConcurrency() int {
	if c.FetchConcurrency < 1 {
		return 1
	}
	return c.FetchConcurrency
}
