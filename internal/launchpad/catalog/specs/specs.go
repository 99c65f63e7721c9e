// Package specs builds the predicates the catalog is queried with.
//
// A ClusterSpec is a pure value: a list of conditions that are ANDed together, plus query options (join to
// commands, duplicate elimination, ordering and paging). Building a spec never touches a catalog, so specs can be
// combined with And and reused by callers before being evaluated by a catalog implementation.
package specs

import (
	"fmt"
	"strings"
	"time"

	"github.com/armadaproject/launchpad/internal/launchpad/model"
)

// Field identifies the attribute a condition or ordering refers to.
type Field int

const (
	ClusterId Field = iota
	ClusterName
	ClusterStatus
	ClusterTags
	ClusterUpdated
	CommandId
	CommandStatus
	CommandTags
	// Position of the command in the cluster's ordered command list.
	CommandPosition
)

var fieldNames = map[Field]string{
	ClusterId:       "cluster.id",
	ClusterName:     "cluster.name",
	ClusterStatus:   "cluster.status",
	ClusterTags:     "cluster.tags",
	ClusterUpdated:  "cluster.updated",
	CommandId:       "command.id",
	CommandStatus:   "command.status",
	CommandTags:     "command.tags",
	CommandPosition: "command.position",
}

func (f Field) String() string {
	if name, ok := fieldNames[f]; ok {
		return name
	}
	return fmt.Sprintf("field(%d)", int(f))
}

// IsCommandField returns true if the field can only be evaluated after joining clusters to their commands.
func (f Field) IsCommandField() bool {
	return f == CommandId || f == CommandStatus || f == CommandTags || f == CommandPosition
}

type Operator int

const (
	// Like matches a string field against an SQL LIKE pattern. Value is a string.
	Like Operator = iota
	// Equal matches a field against a single value.
	Equal
	// In matches a field against any of a list of values. Value is a []string.
	In
	// Member matches if Value (a string) is one of the values of a set-valued field.
	Member
	// GreaterThanOrEqual and LessThan compare timestamps. Value is a time.Time.
	GreaterThanOrEqual
	LessThan
)

var operatorNames = map[Operator]string{
	Like:               "LIKE",
	Equal:              "=",
	In:                 "IN",
	Member:             "MEMBER OF",
	GreaterThanOrEqual: ">=",
	LessThan:           "<",
}

func (o Operator) String() string {
	if name, ok := operatorNames[o]; ok {
		return name
	}
	return fmt.Sprintf("operator(%d)", int(o))
}

// Condition is a single predicate term.
type Condition struct {
	Field Field
	Op    Operator
	Value interface{}
}

func (c Condition) String() string {
	if c.Op == Member {
		return fmt.Sprintf("%v %s %s", c.Value, c.Op, c.Field)
	}
	return fmt.Sprintf("%s %s %v", c.Field, c.Op, c.Value)
}

// Ordering sorts query results by a field.
type Ordering struct {
	Field      Field
	Descending bool
}

// ClusterSpec is a composable query over clusters and, optionally, their associated commands.
type ClusterSpec struct {
	// ANDed together.
	Conditions []Condition
	// If true the query produces one row per (cluster, command) pair.
	JoinCommands bool
	// If true duplicate (cluster, command) pairs are eliminated.
	Distinct bool
	Order    []Ordering
	// Zero means no limit.
	Limit  int
	Offset int
}

// And returns a spec whose conditions are those of s followed by those of other.
// Query options are combined: the join and distinct flags are ORed, orderings appended and other's paging wins if set.
func (s ClusterSpec) And(other ClusterSpec) ClusterSpec {
	rv := ClusterSpec{
		Conditions:   make([]Condition, 0, len(s.Conditions)+len(other.Conditions)),
		JoinCommands: s.JoinCommands || other.JoinCommands,
		Distinct:     s.Distinct || other.Distinct,
		Order:        make([]Ordering, 0, len(s.Order)+len(other.Order)),
		Limit:        s.Limit,
		Offset:       s.Offset,
	}
	rv.Conditions = append(append(rv.Conditions, s.Conditions...), other.Conditions...)
	rv.Order = append(append(rv.Order, s.Order...), other.Order...)
	if other.Limit != 0 || other.Offset != 0 {
		rv.Limit = other.Limit
		rv.Offset = other.Offset
	}
	return rv
}

// Where returns a copy of s with condition appended.
func (s ClusterSpec) Where(condition Condition) ClusterSpec {
	return s.And(ClusterSpec{Conditions: []Condition{condition}})
}

// OrderBy returns a copy of s which additionally sorts by field.
func (s ClusterSpec) OrderBy(field Field, descending bool) ClusterSpec {
	return s.And(ClusterSpec{Order: []Ordering{{Field: field, Descending: descending}}})
}

// Page returns a copy of s which skips offset results and returns at most limit.
func (s ClusterSpec) Page(offset, limit int) ClusterSpec {
	rv := s.And(ClusterSpec{})
	rv.Offset = offset
	rv.Limit = limit
	return rv
}

// ConditionsOn returns the conditions of s that refer to field.
func (s ClusterSpec) ConditionsOn(field Field) []Condition {
	var rv []Condition
	for _, c := range s.Conditions {
		if c.Field == field {
			rv = append(rv, c)
		}
	}
	return rv
}

func (s ClusterSpec) String() string {
	terms := make([]string, len(s.Conditions))
	for i, c := range s.Conditions {
		terms[i] = c.String()
	}
	return strings.Join(terms, " AND ")
}

// FindClusters returns a spec matching clusters by the given attributes.
// Every argument is optional and omitted independently of the others: a blank name, nil or empty statuses, nil or
// empty tags, and nil min or max updated times add no condition. Blank entries of tags add no condition, and every
// other tag adds exactly one membership condition.
func FindClusters(
	name string,
	statuses []model.ClusterStatus,
	tags []string,
	minUpdated *time.Time,
	maxUpdated *time.Time,
) ClusterSpec {
	var conditions []Condition
	if strings.TrimSpace(name) != "" {
		conditions = append(conditions, Condition{Field: ClusterName, Op: Like, Value: name})
	}
	if len(statuses) > 0 {
		values := make([]string, len(statuses))
		for i, status := range statuses {
			values[i] = string(status)
		}
		conditions = append(conditions, Condition{Field: ClusterStatus, Op: In, Value: values})
	}
	conditions = append(conditions, tagConditions(ClusterTags, tags)...)
	if minUpdated != nil {
		conditions = append(conditions, Condition{Field: ClusterUpdated, Op: GreaterThanOrEqual, Value: *minUpdated})
	}
	if maxUpdated != nil {
		conditions = append(conditions, Condition{Field: ClusterUpdated, Op: LessThan, Value: *maxUpdated})
	}
	return ClusterSpec{Conditions: conditions}
}

// FindClustersAndCommands returns a spec joining clusters to their commands, restricted to UP clusters carrying all
// of clusterTags and ACTIVE commands carrying all of commandTags. The spec always requests duplicate elimination and
// always carries both status conditions, whichever tags are supplied.
func FindClustersAndCommands(clusterTags []string, commandTags []string) ClusterSpec {
	conditions := []Condition{
		{Field: CommandStatus, Op: Equal, Value: string(model.CommandActive)},
		{Field: ClusterStatus, Op: Equal, Value: string(model.ClusterUp)},
	}
	conditions = append(conditions, tagConditions(ClusterTags, clusterTags)...)
	conditions = append(conditions, tagConditions(CommandTags, commandTags)...)
	return ClusterSpec{
		Conditions:   conditions,
		JoinCommands: true,
		Distinct:     true,
	}
}

func tagConditions(field Field, tags []string) []Condition {
	var conditions []Condition
	for _, tag := range tags {
		if strings.TrimSpace(tag) == "" {
			continue
		}
		conditions = append(conditions, Condition{Field: field, Op: Member, Value: tag})
	}
	return conditions
}
