package catalog

import (
	"os"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"github.com/armadaproject/launchpad/internal/common/launchpaderrors"
	"github.com/armadaproject/launchpad/internal/launchpad/model"
)

// Fixture is the on-disk representation of a catalog.
//
//	clusters:
//	  - id: h2prod
//	    status: UP
//	    tags: [prod, yarn]
//	    updated: 2022-03-01T10:00:00Z
//	    commands: [hive, spark]
//	commands:
//	  - id: hive
//	    status: ACTIVE
//	    tags: [hive]
//	    applications: [hadoop]
//	applications:
//	  - id: hadoop
//	    status: ACTIVE
//	    setupFile: s3://launchpad/hadoop/setup.sh
type Fixture struct {
	Clusters     []ClusterFixture     `yaml:"clusters"`
	Commands     []CommandFixture     `yaml:"commands"`
	Applications []ApplicationFixture `yaml:"applications"`
}

type ClusterFixture struct {
	Id           string   `yaml:"id"`
	Name         string   `yaml:"name"`
	Status       string   `yaml:"status"`
	Tags         []string `yaml:"tags"`
	Updated      string   `yaml:"updated"`
	Commands     []string `yaml:"commands"`
	SetupFile    string   `yaml:"setupFile"`
	Dependencies []string `yaml:"dependencies"`
	Configs      []string `yaml:"configs"`
}

type CommandFixture struct {
	Id           string   `yaml:"id"`
	Name         string   `yaml:"name"`
	Status       string   `yaml:"status"`
	Tags         []string `yaml:"tags"`
	Executable   string   `yaml:"executable"`
	Updated      string   `yaml:"updated"`
	Applications []string `yaml:"applications"`
	SetupFile    string   `yaml:"setupFile"`
	Dependencies []string `yaml:"dependencies"`
	Configs      []string `yaml:"configs"`
}

type ApplicationFixture struct {
	Id           string   `yaml:"id"`
	Name         string   `yaml:"name"`
	Status       string   `yaml:"status"`
	SetupFile    string   `yaml:"setupFile"`
	Dependencies []string `yaml:"dependencies"`
	Configs      []string `yaml:"configs"`
}

// ReadFixture reads and parses the catalog file at path.
func ReadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WithStack(&launchpaderrors.ErrIO{Op: "read", Path: path, Err: err})
	}
	return ParseFixture(data)
}

func ParseFixture(data []byte) (*Fixture, error) {
	fixture := &Fixture{}
	if err := yaml.UnmarshalStrict(data, fixture); err != nil {
		return nil, errors.WithMessage(err, "failed to parse catalog fixture")
	}
	return fixture, nil
}

// Entities converts the fixture into model entities.
// All invalid entries are reported together.
func (f *Fixture) Entities() ([]*model.Cluster, []*model.Command, []*model.Application, error) {
	var result *multierror.Error
	clusters := make([]*model.Cluster, 0, len(f.Clusters))
	for _, c := range f.Clusters {
		if strings.TrimSpace(c.Id) == "" {
			result = multierror.Append(result, &launchpaderrors.ErrBadRequest{Name: "clusters.id", Value: c.Id, Message: "cluster id must be non-empty"})
			continue
		}
		status, err := model.ParseClusterStatus(c.Status)
		if err != nil {
			result = multierror.Append(result, &launchpaderrors.ErrBadRequest{Name: "clusters.status", Value: c.Status, Message: err.Error()})
			continue
		}
		updated, err := parseUpdated(c.Updated)
		if err != nil {
			result = multierror.Append(result, &launchpaderrors.ErrBadRequest{Name: "clusters.updated", Value: c.Updated, Message: err.Error()})
			continue
		}
		clusters = append(clusters, &model.Cluster{
			Id:           c.Id,
			Name:         c.Name,
			Status:       status,
			Tags:         c.Tags,
			Updated:      updated,
			CommandIds:   c.Commands,
			SetupFile:    c.SetupFile,
			Dependencies: c.Dependencies,
			Configs:      c.Configs,
		})
	}

	commands := make([]*model.Command, 0, len(f.Commands))
	for _, c := range f.Commands {
		if strings.TrimSpace(c.Id) == "" {
			result = multierror.Append(result, &launchpaderrors.ErrBadRequest{Name: "commands.id", Value: c.Id, Message: "command id must be non-empty"})
			continue
		}
		status, err := model.ParseCommandStatus(c.Status)
		if err != nil {
			result = multierror.Append(result, &launchpaderrors.ErrBadRequest{Name: "commands.status", Value: c.Status, Message: err.Error()})
			continue
		}
		updated, err := parseUpdated(c.Updated)
		if err != nil {
			result = multierror.Append(result, &launchpaderrors.ErrBadRequest{Name: "commands.updated", Value: c.Updated, Message: err.Error()})
			continue
		}
		commands = append(commands, &model.Command{
			Id:             c.Id,
			Name:           c.Name,
			Status:         status,
			Tags:           c.Tags,
			Executable:     c.Executable,
			SetupFile:      c.SetupFile,
			Dependencies:   c.Dependencies,
			Configs:        c.Configs,
			ApplicationIds: c.Applications,
			Updated:        updated,
		})
	}

	applications := make([]*model.Application, 0, len(f.Applications))
	for _, a := range f.Applications {
		if strings.TrimSpace(a.Id) == "" {
			result = multierror.Append(result, &launchpaderrors.ErrBadRequest{Name: "applications.id", Value: a.Id, Message: "application id must be non-empty"})
			continue
		}
		status, err := model.ParseCommandStatus(a.Status)
		if err != nil {
			result = multierror.Append(result, &launchpaderrors.ErrBadRequest{Name: "applications.status", Value: a.Status, Message: err.Error()})
			continue
		}
		applications = append(applications, &model.Application{
			Id:           a.Id,
			Name:         a.Name,
			Status:       status,
			SetupFile:    a.SetupFile,
			Dependencies: a.Dependencies,
			Configs:      a.Configs,
		})
	}

	if err := result.ErrorOrNil(); err != nil {
		return nil, nil, nil, err
	}
	return clusters, commands, applications, nil
}

// LoadMemDb returns an in-memory catalog populated from the catalog file at path.
func LoadMemDb(path string) (*MemDb, error) {
	fixture, err := ReadFixture(path)
	if err != nil {
		return nil, err
	}
	clusters, commands, applications, err := fixture.Entities()
	if err != nil {
		return nil, errors.WithMessagef(err, "invalid catalog fixture %s", path)
	}
	db, err := NewMemDb()
	if err != nil {
		return nil, err
	}
	if err := db.Upsert(clusters, commands, applications); err != nil {
		return nil, err
	}
	return db, nil
}

func parseUpdated(s string) (time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, errors.WithStack(err)
	}
	return t, nil
}
