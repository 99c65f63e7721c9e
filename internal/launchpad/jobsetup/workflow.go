package jobsetup

import (
	"os"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"golang.org/x/exp/slices"

	"github.com/armadaproject/launchpad/internal/common/launchpadcontext"
	"github.com/armadaproject/launchpad/internal/common/launchpaderrors"
	"github.com/armadaproject/launchpad/internal/common/logging"
	launchpadslices "github.com/armadaproject/launchpad/internal/common/slices"
	"github.com/armadaproject/launchpad/internal/launchpad/filetransfer"
	"github.com/armadaproject/launchpad/internal/launchpad/metrics"
	"github.com/armadaproject/launchpad/internal/launchpad/model"
)

type Options struct {
	DirMode          os.FileMode
	FetchConcurrency int
}

// Workflow runs a fixed sequence of tasks against a job's working directory.
type Workflow struct {
	tasks   []Task
	options Options
	metrics *metrics.Metrics
}

// NewWorkflow returns a workflow running the named tasks. If names is empty, every task in DefaultTaskOrder runs.
// Names must be registered, unique and in the relative order of DefaultTaskOrder.
func NewWorkflow(names []string, options Options) (*Workflow, error) {
	if len(names) == 0 {
		names = DefaultTaskOrder
	}
	var result *multierror.Error
	seen := make(map[string]bool)
	lastIndex := -1
	tasks := make([]Task, 0, len(names))
	for _, name := range names {
		newTask, ok := Registry[name]
		if !ok {
			result = multierror.Append(result, &launchpaderrors.ErrBadRequest{
				Name:    "tasks",
				Value:   name,
				Message: "unknown task",
			})
			continue
		}
		if seen[name] {
			result = multierror.Append(result, &launchpaderrors.ErrBadRequest{
				Name:    "tasks",
				Value:   name,
				Message: "task is listed more than once",
			})
			continue
		}
		seen[name] = true
		index := slices.Index(DefaultTaskOrder, name)
		if index < lastIndex {
			result = multierror.Append(result, &launchpaderrors.ErrBadRequest{
				Name:    "tasks",
				Value:   name,
				Message: "tasks must be listed in the order application, cluster, command, job",
			})
			continue
		}
		lastIndex = index
		tasks = append(tasks, newTask())
	}
	if err := result.ErrorOrNil(); err != nil {
		return nil, err
	}
	return newWorkflow(tasks, options), nil
}

func newWorkflow(tasks []Task, options Options) *Workflow {
	return &Workflow{
		tasks:   tasks,
		options: options,
		metrics: metrics.Get(),
	}
}

// taskNames returns the names of the tasks in the order they run.
func (w *Workflow) taskNames() []string {
	return launchpadslices.Map(w.tasks, Task.Name)
}

// Run stages everything env needs into its working directory, which must already exist.
// The launcher script is rewritten from scratch on every run and is closed before Run returns.
// The first task to fail aborts the run and files staged up to that point are left in place.
func (w *Workflow) Run(
	ctx *launchpadcontext.Context,
	env *model.JobExecutionEnvironment,
	transfer filetransfer.Service,
) (err error) {
	if env == nil {
		return errors.WithStack(&launchpaderrors.ErrPreconditionFailed{Operation: "job setup", Key: "jobExecutionEnvironment"})
	}
	if info, statErr := os.Stat(env.WorkingDir()); statErr != nil || !info.IsDir() {
		return errors.WithStack(&launchpaderrors.ErrPreconditionFailed{
			Operation: "job setup",
			Key:       "workingDir",
			Message:   env.WorkingDir() + " is not an existing directory",
		})
	}

	script, err := OpenLauncherScript(env.WorkingDir())
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := script.Close(); closeErr != nil {
			if err == nil {
				err = closeErr
			} else {
				err = multierror.Append(err, closeErr)
			}
		}
	}()

	ctx.Log.Debugf("setting up %s with tasks %s", env.WorkingDir(), strings.Join(w.taskNames(), ", "))
	jobCtx := &Context{
		Env:              env,
		Transfer:         transfer,
		Script:           script,
		DirMode:          w.options.DirMode,
		FetchConcurrency: w.options.FetchConcurrency,
	}
	for _, task := range w.tasks {
		taskCtx := launchpadcontext.WithLogField(ctx, "task", task.Name())
		start := time.Now()
		err := task.Execute(taskCtx, jobCtx)
		w.metrics.RecordTask(task.Name(), time.Since(start), err)
		if err != nil {
			logging.WithStacktrace(taskCtx.Log, err).Debugf("%s task failed", task.Name())
			return errors.WithMessagef(err, "%s task failed", task.Name())
		}
		taskCtx.Log.Debugf("%s task completed in %s", task.Name(), time.Since(start))
	}
	ctx.Log.Infof("job setup completed; launcher script written to %s", script.Path())
	return nil
}
