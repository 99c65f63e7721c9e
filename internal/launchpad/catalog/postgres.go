package catalog

import (
	"context"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/pkg/errors"

	"github.com/armadaproject/launchpad/internal/common/launchpaderrors"
	"github.com/armadaproject/launchpad/internal/launchpad/catalog/specs"
	"github.com/armadaproject/launchpad/internal/launchpad/model"
)

// The postgres catalog expects the following tables. Text columns are NOT NULL with empty string defaults and array
// columns are NOT NULL with empty array defaults.
//
//	clusters(id text primary key, name text, status text, tags text[], updated timestamptz,
//	         setup_file text, dependencies text[], configs text[])
//	commands(id text primary key, name text, status text, tags text[], executable text, updated timestamptz,
//	         setup_file text, dependencies text[], configs text[])
//	applications(id text primary key, name text, status text, setup_file text, dependencies text[], configs text[])
//	cluster_commands(cluster_id text, command_id text, position int, primary key (cluster_id, command_id))
//	command_applications(command_id text, application_id text, position int, primary key (command_id, application_id))
var (
	// Tables
	clustersT        = goqu.T("clusters")
	commandsT        = goqu.T("commands")
	applicationsT    = goqu.T("applications")
	clusterCommandsT = goqu.T("cluster_commands")

	// Columns: clusters table
	cluster_id           = goqu.I("clusters.id")
	cluster_name         = goqu.I("clusters.name")
	cluster_status       = goqu.I("clusters.status")
	cluster_tags         = goqu.I("clusters.tags")
	cluster_updated      = goqu.I("clusters.updated")
	cluster_setupFile    = goqu.I("clusters.setup_file")
	cluster_dependencies = goqu.I("clusters.dependencies")
	cluster_configs      = goqu.I("clusters.configs")

	// Columns: commands table
	command_id           = goqu.I("commands.id")
	command_name         = goqu.I("commands.name")
	command_status       = goqu.I("commands.status")
	command_tags         = goqu.I("commands.tags")
	command_executable   = goqu.I("commands.executable")
	command_updated      = goqu.I("commands.updated")
	command_setupFile    = goqu.I("commands.setup_file")
	command_dependencies = goqu.I("commands.dependencies")
	command_configs      = goqu.I("commands.configs")

	// Columns: applications table
	application_id           = goqu.I("applications.id")
	application_name         = goqu.I("applications.name")
	application_status       = goqu.I("applications.status")
	application_setupFile    = goqu.I("applications.setup_file")
	application_dependencies = goqu.I("applications.dependencies")
	application_configs      = goqu.I("applications.configs")

	// Columns: cluster_commands table
	clusterCommand_clusterId = goqu.I("cluster_commands.cluster_id")
	clusterCommand_commandId = goqu.I("cluster_commands.command_id")
	clusterCommand_position  = goqu.I("cluster_commands.position")

	// Ordered association lists, aggregated per row
	cluster_commandIds     = goqu.L("ARRAY(SELECT cc.command_id FROM cluster_commands cc WHERE cc.cluster_id = clusters.id ORDER BY cc.position)").As("command_ids")
	command_applicationIds = goqu.L("ARRAY(SELECT ca.application_id FROM command_applications ca WHERE ca.command_id = commands.id ORDER BY ca.position)").As("application_ids")
)

var fieldColumns = map[specs.Field]exp.IdentifierExpression{
	specs.ClusterId:       cluster_id,
	specs.ClusterName:     cluster_name,
	specs.ClusterStatus:   cluster_status,
	specs.ClusterTags:     cluster_tags,
	specs.ClusterUpdated:  cluster_updated,
	specs.CommandId:       command_id,
	specs.CommandStatus:   command_status,
	specs.CommandTags:     command_tags,
	specs.CommandPosition: clusterCommand_position,
}

var clusterColumns = []interface{}{
	cluster_id,
	cluster_name,
	cluster_status,
	cluster_tags,
	cluster_updated,
	cluster_setupFile,
	cluster_dependencies,
	cluster_configs,
	cluster_commandIds,
}

var commandColumns = []interface{}{
	command_id,
	command_name,
	command_status,
	command_tags,
	command_executable,
	command_updated,
	command_setupFile,
	command_dependencies,
	command_configs,
	command_applicationIds,
}

type querier interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
}

// PostgresCatalog is a Catalog backed by postgres.
// Specs are translated into a single SELECT each; tag membership uses = ANY over text[] columns.
type PostgresCatalog struct {
	db      querier
	dialect goqu.DialectWrapper
}

func NewPostgresCatalog(db *pgxpool.Pool) (*PostgresCatalog, error) {
	if db == nil {
		return nil, errors.WithStack(&launchpaderrors.ErrBadRequest{
			Name:    "db",
			Value:   "nil",
			Message: "db must be non-nil",
		})
	}
	return newPostgresCatalog(db), nil
}

func newPostgresCatalog(db querier) *PostgresCatalog {
	return &PostgresCatalog{
		db:      db,
		dialect: goqu.Dialect("postgres"),
	}
}

func (c *PostgresCatalog) FindClusters(ctx context.Context, spec specs.ClusterSpec) ([]*model.Cluster, error) {
	ds, err := c.findClustersQuery(spec)
	if err != nil {
		return nil, err
	}
	var rv []*model.Cluster
	err = c.query(ctx, ds, func(rows pgx.Rows) error {
		cluster, err := scanCluster(rows)
		if err != nil {
			return err
		}
		rv = append(rv, cluster)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rv, nil
}

func (c *PostgresCatalog) FindClusterCommands(ctx context.Context, spec specs.ClusterSpec) ([]model.ClusterCommand, error) {
	ds, err := c.findClusterCommandsQuery(spec)
	if err != nil {
		return nil, err
	}
	var rv []model.ClusterCommand
	err = c.query(ctx, ds, func(rows pgx.Rows) error {
		pair, err := scanClusterCommand(rows)
		if err != nil {
			return err
		}
		rv = append(rv, pair)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rv, nil
}

func (c *PostgresCatalog) GetCluster(ctx context.Context, id string) (*model.Cluster, error) {
	ds := c.dialect.From(clustersT).Select(clusterColumns...).Where(cluster_id.Eq(id))
	var rv *model.Cluster
	err := c.query(ctx, ds, func(rows pgx.Rows) error {
		cluster, err := scanCluster(rows)
		rv = cluster
		return err
	})
	if err != nil {
		return nil, err
	}
	if rv == nil {
		return nil, clusterNotFound(id)
	}
	return rv, nil
}

func (c *PostgresCatalog) GetCommand(ctx context.Context, id string) (*model.Command, error) {
	ds := c.dialect.From(commandsT).Select(commandColumns...).Where(command_id.Eq(id))
	var rv *model.Command
	err := c.query(ctx, ds, func(rows pgx.Rows) error {
		command, err := scanCommand(rows)
		rv = command
		return err
	})
	if err != nil {
		return nil, err
	}
	if rv == nil {
		return nil, commandNotFound(id)
	}
	return rv, nil
}

func (c *PostgresCatalog) GetApplications(ctx context.Context, ids []string) ([]*model.Application, error) {
	if len(ids) == 0 {
		return []*model.Application{}, nil
	}
	ds := c.dialect.
		From(applicationsT).
		Select(
			application_id,
			application_name,
			application_status,
			application_setupFile,
			application_dependencies,
			application_configs).
		Where(application_id.In(ids))
	byId := make(map[string]*model.Application, len(ids))
	err := c.query(ctx, ds, func(rows pgx.Rows) error {
		app := &model.Application{}
		var status string
		if err := rows.Scan(&app.Id, &app.Name, &status, &app.SetupFile, &app.Dependencies, &app.Configs); err != nil {
			return errors.WithStack(err)
		}
		app.Status = model.CommandStatus(status)
		byId[app.Id] = app
		return nil
	})
	if err != nil {
		return nil, err
	}
	rv := make([]*model.Application, len(ids))
	for i, id := range ids {
		app, ok := byId[id]
		if !ok {
			return nil, applicationNotFound(id)
		}
		copied := app.DeepCopy()
		rv[i] = &copied
	}
	return rv, nil
}

func (c *PostgresCatalog) findClustersQuery(spec specs.ClusterSpec) (*goqu.SelectDataset, error) {
	if err := validateSpec(spec, false); err != nil {
		return nil, err
	}
	where, err := whereExpressions(spec)
	if err != nil {
		return nil, err
	}
	ds := c.dialect.From(clustersT).Select(clusterColumns...)
	if spec.JoinCommands {
		ds = joinCommandTables(ds).Distinct()
	}
	var order []exp.OrderedExpression
	for _, o := range spec.Order {
		// Clusters are returned once regardless of their commands, so command orderings don't apply.
		if o.Field.IsCommandField() {
			continue
		}
		order = append(order, orderedColumn(o))
	}
	order = append(order, cluster_id.Asc())
	ds = ds.Where(where...).Order(order...)
	return page(ds, spec), nil
}

func (c *PostgresCatalog) findClusterCommandsQuery(spec specs.ClusterSpec) (*goqu.SelectDataset, error) {
	if err := validateSpec(spec, true); err != nil {
		return nil, err
	}
	where, err := whereExpressions(spec)
	if err != nil {
		return nil, err
	}
	columns := append(append(append([]interface{}{}, clusterColumns...), commandColumns...), clusterCommand_position)
	ds := joinCommandTables(c.dialect.From(clustersT).Select(columns...))
	if spec.Distinct {
		ds = ds.Distinct()
	}
	var order []exp.OrderedExpression
	for _, o := range spec.Order {
		order = append(order, orderedColumn(o))
	}
	order = append(order, cluster_id.Asc(), clusterCommand_position.Asc(), command_id.Asc())
	ds = ds.Where(where...).Order(order...)
	return page(ds, spec), nil
}

func joinCommandTables(ds *goqu.SelectDataset) *goqu.SelectDataset {
	return ds.
		Join(clusterCommandsT, goqu.On(clusterCommand_clusterId.Eq(cluster_id))).
		Join(commandsT, goqu.On(command_id.Eq(clusterCommand_commandId)))
}

func whereExpressions(spec specs.ClusterSpec) ([]exp.Expression, error) {
	rv := make([]exp.Expression, 0, len(spec.Conditions))
	for _, condition := range spec.Conditions {
		e, err := conditionExpression(condition)
		if err != nil {
			return nil, err
		}
		rv = append(rv, e)
	}
	return rv, nil
}

func conditionExpression(condition specs.Condition) (exp.Expression, error) {
	column, ok := fieldColumns[condition.Field]
	if !ok {
		return nil, errors.Errorf("no column for field %s", condition.Field)
	}
	switch condition.Op {
	case specs.Like:
		return column.Like(condition.Value), nil
	case specs.Equal:
		return column.Eq(condition.Value), nil
	case specs.In:
		return column.In(condition.Value), nil
	case specs.Member:
		return goqu.L("? = ANY(?)", condition.Value, column), nil
	case specs.GreaterThanOrEqual:
		return column.Gte(condition.Value), nil
	case specs.LessThan:
		return column.Lt(condition.Value), nil
	}
	return nil, errors.Errorf("unsupported operator %s", condition.Op)
}

func orderedColumn(o specs.Ordering) exp.OrderedExpression {
	if o.Descending {
		return fieldColumns[o.Field].Desc()
	}
	return fieldColumns[o.Field].Asc()
}

func page(ds *goqu.SelectDataset, spec specs.ClusterSpec) *goqu.SelectDataset {
	if spec.Limit > 0 {
		ds = ds.Limit(uint(spec.Limit))
	}
	if spec.Offset > 0 {
		ds = ds.Offset(uint(spec.Offset))
	}
	return ds
}

func (c *PostgresCatalog) query(ctx context.Context, ds *goqu.SelectDataset, scan func(rows pgx.Rows) error) error {
	sql, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return errors.WithStack(err)
	}
	rows, err := c.db.Query(ctx, sql, args...)
	if err != nil {
		return errors.WithStack(err)
	}
	defer rows.Close()
	for rows.Next() {
		if err := scan(rows); err != nil {
			return err
		}
	}
	return errors.WithStack(rows.Err())
}

func scanCluster(rows pgx.Rows) (*model.Cluster, error) {
	cluster := &model.Cluster{}
	var status string
	err := rows.Scan(
		&cluster.Id,
		&cluster.Name,
		&status,
		&cluster.Tags,
		&cluster.Updated,
		&cluster.SetupFile,
		&cluster.Dependencies,
		&cluster.Configs,
		&cluster.CommandIds,
	)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	cluster.Status = model.ClusterStatus(status)
	return cluster, nil
}

func scanCommand(rows pgx.Rows) (*model.Command, error) {
	command := &model.Command{}
	var status string
	err := rows.Scan(commandDestinations(command, &status)...)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	command.Status = model.CommandStatus(status)
	return command, nil
}

func commandDestinations(command *model.Command, status *string) []interface{} {
	return []interface{}{
		&command.Id,
		&command.Name,
		status,
		&command.Tags,
		&command.Executable,
		&command.Updated,
		&command.SetupFile,
		&command.Dependencies,
		&command.Configs,
		&command.ApplicationIds,
	}
}

func scanClusterCommand(rows pgx.Rows) (model.ClusterCommand, error) {
	cluster := &model.Cluster{}
	command := &model.Command{}
	var clusterStatus, commandStatus string
	var position int32
	destinations := []interface{}{
		&cluster.Id,
		&cluster.Name,
		&clusterStatus,
		&cluster.Tags,
		&cluster.Updated,
		&cluster.SetupFile,
		&cluster.Dependencies,
		&cluster.Configs,
		&cluster.CommandIds,
	}
	destinations = append(destinations, commandDestinations(command, &commandStatus)...)
	destinations = append(destinations, &position)
	if err := rows.Scan(destinations...); err != nil {
		return model.ClusterCommand{}, errors.WithStack(err)
	}
	cluster.Status = model.ClusterStatus(clusterStatus)
	command.Status = model.CommandStatus(commandStatus)
	return model.ClusterCommand{Cluster: cluster, Command: command, Position: int(position)}, nil
}
