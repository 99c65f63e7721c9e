// Package launchpad wires the catalog, resolver, file transfer adapters and job setup workflow together.
package launchpad

import (
	"github.com/pkg/errors"

	"github.com/armadaproject/launchpad/internal/common/database"
	"github.com/armadaproject/launchpad/internal/common/launchpadcontext"
	"github.com/armadaproject/launchpad/internal/common/launchpaderrors"
	"github.com/armadaproject/launchpad/internal/common/logging"
	"github.com/armadaproject/launchpad/internal/launchpad/catalog"
	"github.com/armadaproject/launchpad/internal/launchpad/catalog/specs"
	"github.com/armadaproject/launchpad/internal/launchpad/configuration"
	"github.com/armadaproject/launchpad/internal/launchpad/filetransfer"
	"github.com/armadaproject/launchpad/internal/launchpad/jobsetup"
	"github.com/armadaproject/launchpad/internal/launchpad/metrics"
	"github.com/armadaproject/launchpad/internal/launchpad/model"
	"github.com/armadaproject/launchpad/internal/launchpad/resolver"
)

// Service resolves jobs against the catalog and sets up their working directories.
type Service struct {
	catalog         catalog.Catalog
	resolver        *resolver.Resolver
	workflow        *jobsetup.Workflow
	transfer        filetransfer.Service
	metricsTextfile string
	cleanup         func()
}

// New creates a Service from config. Close must be called once the Service is no longer needed.
func New(ctx *launchpadcontext.Context, config configuration.LaunchpadConfiguration) (*Service, error) {
	c, cleanup, err := NewCatalog(ctx, config.Catalog)
	if err != nil {
		return nil, err
	}
	transfer, err := NewTransferService(config.FileTransfer)
	if err != nil {
		cleanup()
		return nil, err
	}
	workflow, err := jobsetup.NewWorkflow(config.Workflow.Tasks, jobsetup.Options{
		DirMode:          config.Workflow.DirMode,
		FetchConcurrency: config.Workflow.FetchConcurrency,
	})
	if err != nil {
		cleanup()
		return nil, err
	}
	s := NewService(c, transfer, workflow)
	s.metricsTextfile = config.Metrics.TextfilePath
	s.cleanup = cleanup
	return s, nil
}

func NewService(c catalog.Catalog, transfer filetransfer.Service, workflow *jobsetup.Workflow) *Service {
	return &Service{
		catalog:  c,
		resolver: resolver.New(c),
		workflow: workflow,
		transfer: transfer,
		cleanup:  func() {},
	}
}

// NewCatalog returns the catalog selected by config and a function releasing its resources.
func NewCatalog(ctx *launchpadcontext.Context, config configuration.CatalogConfig) (catalog.Catalog, func(), error) {
	var c catalog.Catalog
	cleanup := func() {}
	switch config.Type {
	case configuration.CatalogTypeMemDb:
		db, err := catalog.LoadMemDb(config.FixturePath)
		if err != nil {
			return nil, nil, errors.WithMessagef(err, "failed to load catalog from %s", config.FixturePath)
		}
		ctx.Log.Infof("loaded catalog from %s", config.FixturePath)
		c = db
	case configuration.CatalogTypePostgres:
		pool, err := database.OpenPgxPool(ctx, config.Postgres)
		if err != nil {
			return nil, nil, err
		}
		pg, err := catalog.NewPostgresCatalog(pool)
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		c = pg
		cleanup = pool.Close
	default:
		return nil, nil, errors.WithStack(&launchpaderrors.ErrBadRequest{
			Name:    "catalog.type",
			Value:   config.Type,
			Message: "must be one of memdb or postgres",
		})
	}
	if config.ApplicationCacheSize > 0 {
		cached, err := catalog.NewApplicationCache(c, config.ApplicationCacheSize)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		c = cached
	}
	return c, cleanup, nil
}

// NewTransferService returns a service routing each locator to the adapter for its scheme, retrying failed
// transfers as configured. s3:// locators are only supported if S3 is configured.
func NewTransferService(config configuration.FileTransferConfig) (filetransfer.Service, error) {
	local := filetransfer.NewLocalService()
	web := filetransfer.NewHTTPService(config.HTTPTimeout)
	services := map[string]filetransfer.Service{
		"file":  local,
		"http":  web,
		"https": web,
	}
	if config.S3 != nil {
		s3, err := filetransfer.NewS3Service(*config.S3)
		if err != nil {
			return nil, err
		}
		services["s3"] = s3
	}
	return filetransfer.NewRetryingService(filetransfer.NewRouter(services), config.RetryAttempts, config.RetryDelay), nil
}

// Resolve picks the cluster, command and applications for request without touching workingDir.
func (s *Service) Resolve(
	ctx *launchpadcontext.Context,
	workingDir string,
	request *model.JobRequest,
) (*model.JobExecutionEnvironment, error) {
	return s.resolver.ResolveEnvironment(ctx, workingDir, request)
}

// Setup resolves request and stages everything it needs into workingDir.
// Nothing is staged if resolution fails.
func (s *Service) Setup(
	ctx *launchpadcontext.Context,
	workingDir string,
	request *model.JobRequest,
) (*model.JobExecutionEnvironment, error) {
	if request == nil {
		return nil, errors.WithStack(&launchpaderrors.ErrBadRequest{Name: "request", Value: "nil"})
	}
	ctx = launchpadcontext.WithLogField(ctx, "job", request.Id)
	env, err := s.Resolve(ctx, workingDir, request)
	if err != nil {
		return nil, err
	}
	if err := s.workflow.Run(ctx, env, s.transfer); err != nil {
		return env, errors.WithMessagef(err, "failed to set up job %s in %s", request.Id, workingDir)
	}
	return env, nil
}

// FindClusters returns the clusters matching spec.
func (s *Service) FindClusters(ctx *launchpadcontext.Context, spec specs.ClusterSpec) ([]*model.Cluster, error) {
	return s.catalog.FindClusters(ctx, spec)
}

// FindClusterCommands returns the cluster and command pairs matching spec, which must join commands.
func (s *Service) FindClusterCommands(ctx *launchpadcontext.Context, spec specs.ClusterSpec) ([]model.ClusterCommand, error) {
	return s.catalog.FindClusterCommands(ctx, spec)
}

// WriteMetrics writes all metrics to the configured textfile. It does nothing if no textfile is configured.
func (s *Service) WriteMetrics(ctx *launchpadcontext.Context) {
	if s.metricsTextfile == "" {
		return
	}
	if err := metrics.Get().WriteTextfile(s.metricsTextfile); err != nil {
		logging.WithStacktrace(ctx.Log, err).Warnf("failed to write metrics to %s", s.metricsTextfile)
	}
}

func (s *Service) Close() {
	s.cleanup()
}
