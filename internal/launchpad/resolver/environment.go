package resolver

import (
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/armadaproject/launchpad/internal/common/launchpadcontext"
	"github.com/armadaproject/launchpad/internal/common/launchpaderrors"
	"github.com/armadaproject/launchpad/internal/launchpad/model"
)

// ResolveEnvironment resolves the cluster and command for request and loads the applications the job needs.
// The applications are the ones listed by the request if any, otherwise the ones the command declares.
// Every application must exist and be ACTIVE. The job id is checked here so that a job with an id it can't be
// staged under is rejected before anything is written.
func (r *Resolver) ResolveEnvironment(
	ctx *launchpadcontext.Context,
	workingDir string,
	request *model.JobRequest,
) (*model.JobExecutionEnvironment, error) {
	if request == nil {
		return nil, errors.WithStack(&launchpaderrors.ErrBadRequest{Name: "request", Value: "nil"})
	}
	if !model.IsValidId(request.Id) {
		return nil, errors.WithStack(&launchpaderrors.ErrBadRequest{
			Name:    "id",
			Value:   request.Id,
			Message: "job id must be a non-blank single path element",
		})
	}
	if strings.TrimSpace(workingDir) == "" {
		return nil, errors.WithStack(&launchpaderrors.ErrBadRequest{
			Name:    "workingDir",
			Value:   workingDir,
			Message: "working directory must be non-empty",
		})
	}

	cluster, command, err := r.Resolve(ctx, request.ClusterCriteria, request.CommandCriteria)
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to resolve job %s", request.Id)
	}

	applicationIds := command.ApplicationIds
	if len(request.ApplicationIds) > 0 {
		applicationIds = request.ApplicationIds
	}
	applications, err := r.catalog.GetApplications(ctx, applicationIds)
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to load applications of job %s", request.Id)
	}
	var result *multierror.Error
	for _, app := range applications {
		if app.Status != model.CommandActive {
			result = multierror.Append(result, &launchpaderrors.ErrBadRequest{
				Name:    "applicationIds",
				Value:   app.Id,
				Message: "application is " + string(app.Status),
			})
		}
	}
	if err := result.ErrorOrNil(); err != nil {
		return nil, err
	}

	return model.NewJobExecutionEnvironment(workingDir, request, cluster, command, applications), nil
}
