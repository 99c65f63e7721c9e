package jobsetup

import (
	"github.com/armadaproject/launchpad/internal/common/launchpadcontext"
	"github.com/armadaproject/launchpad/internal/launchpad/model"
)

// Task is one step of the job setup workflow.
//
// Execute fails with *launchpaderrors.ErrPreconditionFailed if jobCtx is missing anything the task needs. Tasks
// have side effects on the working directory and the launcher script only.
type Task interface {
	Name() string
	Execute(ctx *launchpadcontext.Context, jobCtx *Context) error
}

const (
	ApplicationTask = "application"
	ClusterTask     = "cluster"
	CommandTask     = "command"
	JobTask         = "job"
)

// DefaultTaskOrder is the order tasks always run in. A workflow may run a subset of these, in this relative order.
var DefaultTaskOrder = []string{ApplicationTask, ClusterTask, CommandTask, JobTask}

// Registry maps task names to constructors.
var Registry = map[string]func() Task{
	ApplicationTask: func() Task { return &stagingTask{name: ApplicationTask, entities: applicationEntities} },
	ClusterTask:     func() Task { return &stagingTask{name: ClusterTask, entities: clusterEntities} },
	CommandTask:     func() Task { return &stagingTask{name: CommandTask, entities: commandEntities} },
	JobTask:         func() Task { return &stagingTask{name: JobTask, entities: jobEntities} },
}

// stagingTask stages the files of the entities it selects from the environment.
type stagingTask struct {
	name     string
	entities func(env *model.JobExecutionEnvironment) []entity
}

func (t *stagingTask) Name() string {
	return t.name
}

func (t *stagingTask) Execute(ctx *launchpadcontext.Context, jobCtx *Context) error {
	if err := jobCtx.checkPreconditions(t.name); err != nil {
		return err
	}
	return stage(ctx, jobCtx, t.entities(jobCtx.Env))
}

func applicationEntities(env *model.JobExecutionEnvironment) []entity {
	apps := env.Applications()
	entities := make([]entity, len(apps))
	for i, app := range apps {
		entities[i] = entity{
			dir:          ApplicationsDir,
			id:           app.Id,
			setupFile:    app.SetupFile,
			dependencies: app.Dependencies,
			configs:      app.Configs,
		}
	}
	return entities
}

func clusterEntities(env *model.JobExecutionEnvironment) []entity {
	cluster := env.Cluster()
	return []entity{{
		dir:          ClustersDir,
		id:           cluster.Id,
		setupFile:    cluster.SetupFile,
		dependencies: cluster.Dependencies,
		configs:      cluster.Configs,
	}}
}

func commandEntities(env *model.JobExecutionEnvironment) []entity {
	command := env.Command()
	return []entity{{
		dir:          CommandsDir,
		id:           command.Id,
		setupFile:    command.SetupFile,
		dependencies: command.Dependencies,
		configs:      command.Configs,
	}}
}

func jobEntities(env *model.JobExecutionEnvironment) []entity {
	job := env.Job()
	return []entity{{
		dir:          JobsDir,
		id:           job.Id,
		setupFile:    job.SetupFile,
		dependencies: job.Dependencies,
		configs:      job.Configs,
	}}
}
