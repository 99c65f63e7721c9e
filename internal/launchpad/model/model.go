// Package model contains the entities the resolver matches on and the job setup workflow stages:
// clusters, commands, applications, job requests and the resolved execution environment.
package model

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/exp/slices"
)

type ClusterStatus string

const (
	ClusterUp           ClusterStatus = "UP"
	ClusterOutOfService ClusterStatus = "OUT_OF_SERVICE"
	ClusterTerminated   ClusterStatus = "TERMINATED"
)

var AllClusterStatuses = []ClusterStatus{ClusterUp, ClusterOutOfService, ClusterTerminated}

// ParseClusterStatus converts a case-insensitive status name into a ClusterStatus.
func ParseClusterStatus(s string) (ClusterStatus, error) {
	status := ClusterStatus(strings.ToUpper(strings.TrimSpace(s)))
	if !slices.Contains(AllClusterStatuses, status) {
		return "", errors.Errorf("unknown cluster status: %q", s)
	}
	return status, nil
}

// CommandStatus is shared by commands and applications.
type CommandStatus string

const (
	CommandActive     CommandStatus = "ACTIVE"
	CommandDeprecated CommandStatus = "DEPRECATED"
	CommandInactive   CommandStatus = "INACTIVE"
)

var AllCommandStatuses = []CommandStatus{CommandActive, CommandDeprecated, CommandInactive}

func ParseCommandStatus(s string) (CommandStatus, error) {
	status := CommandStatus(strings.ToUpper(strings.TrimSpace(s)))
	if !slices.Contains(AllCommandStatuses, status) {
		return "", errors.Errorf("unknown command status: %q", s)
	}
	return status, nil
}

// Cluster is a tagged pool of compute that jobs can run on.
type Cluster struct {
	Id      string
	Name    string
	Status  ClusterStatus
	Tags    []string
	Updated time.Time
	// Ids of the commands this cluster can run, highest priority first.
	CommandIds   []string
	SetupFile    string
	Dependencies []string
	Configs      []string
}

// HasTag returns true if tag is one of the cluster's tags.
func (c *Cluster) HasTag(tag string) bool {
	return slices.Contains(c.Tags, tag)
}

// CommandPosition returns the index of commandId in the cluster's command list or -1 if the command is not
// associated with this cluster.
func (c *Cluster) CommandPosition(commandId string) int {
	return slices.Index(c.CommandIds, commandId)
}

// Command is an executable configuration that can be run on one or more clusters.
type Command struct {
	Id           string
	Name         string
	Status       CommandStatus
	Tags         []string
	Executable   string
	SetupFile    string
	Dependencies []string
	Configs      []string
	// Ids of the applications this command needs, in the order they must be set up.
	ApplicationIds []string
	Updated        time.Time
}

func (c *Command) HasTag(tag string) bool {
	return slices.Contains(c.Tags, tag)
}

// Application is a reusable package of setup script, dependency files and config files.
type Application struct {
	Id           string
	Name         string
	Status       CommandStatus
	SetupFile    string
	Dependencies []string
	Configs      []string
}

// ClusterCriteria is the submitter's ordered fallback preference for clusters.
// Each element is one tier of tags; only the first tier that yields a cluster and command is used.
type ClusterCriteria [][]string

// JobRequest is what a user submits. Only the fields needed to resolve and set up the job are modelled here.
type JobRequest struct {
	Id              string
	Name            string
	User            string
	CommandArgs     string
	ClusterCriteria ClusterCriteria
	CommandCriteria []string
	// If set, overrides the applications declared by the resolved command.
	ApplicationIds []string
	SetupFile      string
	Dependencies   []string
	Configs        []string
}

// IsValidId returns true if id can name a directory of its own: it must be non-blank and a single path element.
func IsValidId(id string) bool {
	return strings.TrimSpace(id) != "" &&
		id != "." && id != ".." &&
		!strings.ContainsAny(id, `/\`)
}

// ClusterCommand is one (cluster, command) pair produced by joining clusters to their commands.
type ClusterCommand struct {
	Cluster *Cluster
	Command *Command
	// Index of Command in Cluster.CommandIds.
	Position int
}

// JobExecutionEnvironment is the resolved environment a job will be set up in.
// It is built once by the resolver and must not be modified afterwards, so all accessors return copies.
type JobExecutionEnvironment struct {
	workingDir   string
	job          JobRequest
	cluster      Cluster
	command      Command
	applications []Application
}

func NewJobExecutionEnvironment(
	workingDir string,
	job *JobRequest,
	cluster *Cluster,
	command *Command,
	applications []*Application,
) *JobExecutionEnvironment {
	env := &JobExecutionEnvironment{
		workingDir:   workingDir,
		applications: make([]Application, len(applications)),
	}
	if job != nil {
		env.job = job.DeepCopy()
	}
	if cluster != nil {
		env.cluster = cluster.DeepCopy()
	}
	if command != nil {
		env.command = command.DeepCopy()
	}
	for i, app := range applications {
		env.applications[i] = app.DeepCopy()
	}
	return env
}

func (e *JobExecutionEnvironment) WorkingDir() string { return e.workingDir }

func (e *JobExecutionEnvironment) Job() JobRequest { return e.job.DeepCopy() }

func (e *JobExecutionEnvironment) Cluster() Cluster { return e.cluster.DeepCopy() }

func (e *JobExecutionEnvironment) Command() Command { return e.command.DeepCopy() }

func (e *JobExecutionEnvironment) Applications() []Application {
	rv := make([]Application, len(e.applications))
	for i := range e.applications {
		rv[i] = e.applications[i].DeepCopy()
	}
	return rv
}

func (c *Cluster) DeepCopy() Cluster {
	rv := *c
	rv.Tags = slices.Clone(c.Tags)
	rv.CommandIds = slices.Clone(c.CommandIds)
	rv.Dependencies = slices.Clone(c.Dependencies)
	rv.Configs = slices.Clone(c.Configs)
	return rv
}

func (c *Command) DeepCopy() Command {
	rv := *c
	rv.Tags = slices.Clone(c.Tags)
	rv.Dependencies = slices.Clone(c.Dependencies)
	rv.Configs = slices.Clone(c.Configs)
	rv.ApplicationIds = slices.Clone(c.ApplicationIds)
	return rv
}

func (a *Application) DeepCopy() Application {
	rv := *a
	rv.Dependencies = slices.Clone(a.Dependencies)
	rv.Configs = slices.Clone(a.Configs)
	return rv
}

func (j *JobRequest) DeepCopy() JobRequest {
	rv := *j
	rv.ClusterCriteria = make(ClusterCriteria, len(j.ClusterCriteria))
	for i, tier := range j.ClusterCriteria {
		rv.ClusterCriteria[i] = slices.Clone(tier)
	}
	if j.ClusterCriteria == nil {
		rv.ClusterCriteria = nil
	}
	rv.CommandCriteria = slices.Clone(j.CommandCriteria)
	rv.ApplicationIds = slices.Clone(j.ApplicationIds)
	rv.Dependencies = slices.Clone(j.Dependencies)
	rv.Configs = slices.Clone(j.Configs)
	return rv
}
