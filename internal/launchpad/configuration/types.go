package configuration

import (
	"os"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/armadaproject/launchpad/internal/common/config"
)

type LaunchpadConfiguration struct {
	// Where clusters, commands and applications are read from
	Catalog CatalogConfig
	// Adapters used to fetch setup, dependency and config files
	FileTransfer FileTransferConfig
	// Job setup workflow
	Workflow WorkflowConfig
	Metrics  MetricsConfig
}

const (
	CatalogTypeMemDb    = "memdb"
	CatalogTypePostgres = "postgres"
)

type CatalogConfig struct {
	// Either memdb or postgres
	Type string `validate:"oneof=memdb postgres"`
	// Yaml file the memdb catalog is loaded from. Required if Type is memdb.
	FixturePath string `validate:"required_if=Type memdb"`
	Postgres    config.PostgresConfig
	// Number of applications cached in memory. Zero disables the cache.
	ApplicationCacheSize int `validate:"gte=0"`
}

type FileTransferConfig struct {
	// Number of attempts made for each file before giving up
	RetryAttempts uint `validate:"gte=1"`
	// Time between attempts
	RetryDelay time.Duration
	// Timeout of http and https downloads
	HTTPTimeout time.Duration `validate:"gt=0"`
	// If unset, s3:// locators are not supported
	S3 *S3Config
}

type S3Config struct {
	// host:port of the object store, without scheme
	Endpoint  string `validate:"required"`
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
}

type WorkflowConfig struct {
	// Names of the tasks to run. Must respect the order application, cluster, command, job.
	// If empty, all tasks run.
	Tasks []string
	// Mode of the directories created in the working directory, e.g. 0755
	DirMode os.FileMode `validate:"required"`
	// Maximum number of files of a single entity fetched concurrently
	FetchConcurrency int `validate:"gte=1"`
}

type MetricsConfig struct {
	// If set, metrics are written to this file in the prometheus text format when a command finishes
	TextfilePath string
}

func (c LaunchpadConfiguration) Validate() error {
	validate := validator.New()
	return validate.Struct(c)
}
