package jobsetup

import (
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/armadaproject/launchpad/internal/common/launchpadcontext"
	"github.com/armadaproject/launchpad/internal/common/launchpaderrors"
	"github.com/armadaproject/launchpad/internal/launchpad/metrics"
	"github.com/armadaproject/launchpad/internal/launchpad/model"
)

type FileKind string

const (
	SetupFile      FileKind = "setup"
	DependencyFile FileKind = "dependency"
	ConfigFile     FileKind = "config"
)

// Directory names of the entity kinds within the working directory.
const (
	ApplicationsDir = "applications"
	ClustersDir     = "clusters"
	CommandsDir     = "commands"
	JobsDir         = "jobs"
)

// StagedPath returns the local path a file is staged to. It depends only on its arguments.
func StagedPath(workingDir string, entityDir string, entityId string, kind FileKind, fileName string) string {
	return filepath.Join(workingDir, entityDir, entityId, string(kind), fileName)
}

// entity is something with files to stage: an application, the cluster, the command or the job itself.
type entity struct {
	dir          string
	id           string
	setupFile    string
	dependencies []string
	configs      []string
}

type fetch struct {
	kind        FileKind
	source      string
	destination string
}

type stagingPlan struct {
	entity entity
	// Nil if the entity has no setup file.
	setup *fetch
	files []fetch
}

// planStaging computes where every file of entities goes. It fails with *launchpaderrors.ErrBadRequest, reporting
// every invalid reference at once, if any entity id or file reference can't be staged.
func planStaging(workingDir string, entities []entity) ([]stagingPlan, error) {
	var result *multierror.Error
	plans := make([]stagingPlan, 0, len(entities))
	for _, e := range entities {
		plan, err := planEntity(workingDir, e)
		if err != nil {
			result = multierror.Append(result, err)
			continue
		}
		plans = append(plans, plan)
	}
	if err := result.ErrorOrNil(); err != nil {
		return nil, err
	}
	return plans, nil
}

func planEntity(workingDir string, e entity) (stagingPlan, error) {
	if !model.IsValidId(e.id) {
		return stagingPlan{}, &launchpaderrors.ErrBadRequest{
			Name:    e.dir + ".id",
			Value:   e.id,
			Message: "id must be a non-blank single path element",
		}
	}
	var result *multierror.Error
	plan := stagingPlan{entity: e}
	if strings.TrimSpace(e.setupFile) != "" {
		f, err := planFile(workingDir, e, SetupFile, e.setupFile, "setupFile")
		if err != nil {
			result = multierror.Append(result, err)
		} else {
			plan.setup = &f
		}
	}
	seen := make(map[string]bool)
	add := func(kind FileKind, refs []string, field string) {
		for i, ref := range refs {
			name := fmt.Sprintf("%s[%s].%s[%d]", e.dir, e.id, field, i)
			if strings.TrimSpace(ref) == "" {
				result = multierror.Append(result, &launchpaderrors.ErrBadRequest{
					Name:    name,
					Value:   ref,
					Message: "file reference must be non-blank",
				})
				continue
			}
			f, err := planFile(workingDir, e, kind, ref, name)
			if err != nil {
				result = multierror.Append(result, err)
				continue
			}
			if seen[f.destination] {
				result = multierror.Append(result, &launchpaderrors.ErrBadRequest{
					Name:    name,
					Value:   ref,
					Message: fmt.Sprintf("another %s file is already staged to %s", kind, f.destination),
				})
				continue
			}
			seen[f.destination] = true
			plan.files = append(plan.files, f)
		}
	}
	add(DependencyFile, e.dependencies, "dependencies")
	add(ConfigFile, e.configs, "configs")
	if err := result.ErrorOrNil(); err != nil {
		return stagingPlan{}, err
	}
	return plan, nil
}

func planFile(workingDir string, e entity, kind FileKind, ref string, field string) (fetch, error) {
	name := fileName(ref)
	if name == "" {
		return fetch{}, &launchpaderrors.ErrBadRequest{
			Name:    field,
			Value:   ref,
			Message: "file reference has no file name",
		}
	}
	return fetch{
		kind:        kind,
		source:      ref,
		destination: StagedPath(workingDir, e.dir, e.id, kind, name),
	}, nil
}

// fileName returns the last element of the path of ref, which may be a local path or a URI,
// or "" if ref doesn't name a file.
func fileName(ref string) string {
	p := strings.TrimSpace(ref)
	if strings.Contains(p, "://") {
		u, err := url.Parse(p)
		if err != nil {
			return ""
		}
		p = u.Path
	}
	p = filepath.ToSlash(p)
	if p == "" || strings.HasSuffix(p, "/") {
		return ""
	}
	name := path.Base(p)
	if name == "." || name == ".." || name == "/" {
		return ""
	}
	return name
}

// stage stages the files of entities in order. All references are validated before anything is fetched.
func stage(ctx *launchpadcontext.Context, jobCtx *Context, entities []entity) error {
	plans, err := planStaging(jobCtx.Env.WorkingDir(), entities)
	if err != nil {
		return err
	}
	for _, plan := range plans {
		entityCtx := launchpadcontext.WithLogFields(ctx, logrus.Fields{"entity": plan.entity.dir, "id": plan.entity.id})
		if err := stageEntity(entityCtx, jobCtx, plan); err != nil {
			return errors.WithMessagef(err, "failed to stage %s %s", plan.entity.dir, plan.entity.id)
		}
	}
	return nil
}

// stageEntity fetches the setup file of an entity and appends it to the launcher script, then fetches its
// dependency and config files concurrently. All fetches have completed when it returns.
func stageEntity(ctx *launchpadcontext.Context, jobCtx *Context, plan stagingPlan) error {
	entityDir := filepath.Join(jobCtx.Env.WorkingDir(), plan.entity.dir, plan.entity.id)
	if err := mkdir(entityDir, jobCtx.dirMode()); err != nil {
		return err
	}

	if plan.setup != nil {
		if err := fetchFile(ctx, jobCtx, plan.entity, *plan.setup); err != nil {
			return err
		}
		if err := jobCtx.Script.AppendSource(plan.setup.destination); err != nil {
			return err
		}
	}
	if len(plan.files) == 0 {
		return nil
	}

	g, groupCtx := launchpadcontext.ErrGroup(ctx)
	g.SetLimit(jobCtx.fetchConcurrency())
	for _, f := range plan.files {
		f := f
		g.Go(func() error {
			return fetchFile(groupCtx, jobCtx, plan.entity, f)
		})
	}
	return g.Wait()
}

func fetchFile(ctx *launchpadcontext.Context, jobCtx *Context, e entity, f fetch) error {
	if err := mkdir(filepath.Dir(f.destination), jobCtx.dirMode()); err != nil {
		return err
	}
	if err := jobCtx.Transfer.GetFile(ctx, f.source, f.destination); err != nil {
		return errors.WithMessagef(err, "failed to fetch %s file", f.kind)
	}
	ctx.Log.Debugf("staged %s file %s at %s", f.kind, f.source, f.destination)
	metrics.Get().RecordStagedFile(e.dir, string(f.kind))
	return nil
}

func mkdir(dir string, mode os.FileMode) error {
	if err := os.MkdirAll(dir, mode); err != nil {
		return errors.WithStack(&launchpaderrors.ErrIO{Op: "mkdir", Path: dir, Err: err})
	}
	return nil
}
