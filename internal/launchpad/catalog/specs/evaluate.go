package specs

import (
	"time"

	"github.com/pkg/errors"
	"golang.org/x/exp/slices"

	"github.com/armadaproject/launchpad/internal/launchpad/model"
)

// Validate returns an error if s can't be evaluated, e.g. because it refers to command fields without joining
// clusters to their commands, or pairs an operator with a value of the wrong type.
func (s ClusterSpec) Validate() error {
	for _, c := range s.Conditions {
		if c.Field.IsCommandField() && !s.JoinCommands {
			return errors.Errorf("condition %s requires joining clusters to commands", c)
		}
		if err := c.validate(); err != nil {
			return err
		}
	}
	for _, o := range s.Order {
		if o.Field.IsCommandField() && !s.JoinCommands {
			return errors.Errorf("ordering by %s requires joining clusters to commands", o.Field)
		}
	}
	if s.Limit < 0 || s.Offset < 0 {
		return errors.Errorf("invalid page: offset %d limit %d", s.Offset, s.Limit)
	}
	return nil
}

func (c Condition) validate() error {
	ok := false
	switch c.Op {
	case Like, Member:
		_, ok = c.Value.(string)
	case Equal:
		switch c.Value.(type) {
		case string, int:
			ok = true
		}
	case In:
		_, ok = c.Value.([]string)
	case GreaterThanOrEqual, LessThan:
		_, ok = c.Value.(time.Time)
	}
	if !ok {
		return errors.Errorf("invalid value %v of type %T for condition on %s", c.Value, c.Value, c.Field)
	}
	return nil
}

// MatchesCluster returns true if c satisfies every condition of s that refers to cluster fields.
// Conditions on command fields are ignored.
func (s ClusterSpec) MatchesCluster(c *model.Cluster) bool {
	for _, condition := range s.Conditions {
		if condition.Field.IsCommandField() {
			continue
		}
		if !condition.matches(clusterFieldValue(c, condition.Field)) {
			return false
		}
	}
	return true
}

// MatchesPair returns true if the pair satisfies every condition of s.
func (s ClusterSpec) MatchesPair(pair model.ClusterCommand) bool {
	for _, condition := range s.Conditions {
		var value interface{}
		if condition.Field.IsCommandField() {
			value = commandFieldValue(pair, condition.Field)
		} else {
			value = clusterFieldValue(pair.Cluster, condition.Field)
		}
		if !condition.matches(value) {
			return false
		}
	}
	return true
}

// SortClusters sorts clusters by the orderings of s. Cluster id is always the final sort key so the order is total.
func (s ClusterSpec) SortClusters(clusters []*model.Cluster) {
	slices.SortStableFunc(clusters, func(a, b *model.Cluster) bool {
		for _, o := range s.Order {
			if c := compare(clusterFieldValue(a, o.Field), clusterFieldValue(b, o.Field)); c != 0 {
				return (c < 0) != o.Descending
			}
		}
		return a.Id < b.Id
	})
}

// SortPairs sorts pairs by the orderings of s, falling back to cluster id, command position and command id.
func (s ClusterSpec) SortPairs(pairs []model.ClusterCommand) {
	order := append(slices.Clone(s.Order),
		Ordering{Field: ClusterId},
		Ordering{Field: CommandPosition},
		Ordering{Field: CommandId},
	)
	slices.SortStableFunc(pairs, func(a, b model.ClusterCommand) bool {
		for _, o := range order {
			var av, bv interface{}
			if o.Field.IsCommandField() {
				av, bv = commandFieldValue(a, o.Field), commandFieldValue(b, o.Field)
			} else {
				av, bv = clusterFieldValue(a.Cluster, o.Field), clusterFieldValue(b.Cluster, o.Field)
			}
			if c := compare(av, bv); c != 0 {
				return (c < 0) != o.Descending
			}
		}
		return false
	})
}

// PageBounds returns the slice bounds of the page of s within n results.
func (s ClusterSpec) PageBounds(n int) (int, int) {
	start := s.Offset
	if start > n {
		start = n
	}
	end := n
	if s.Limit > 0 && start+s.Limit < n {
		end = start + s.Limit
	}
	return start, end
}

func clusterFieldValue(c *model.Cluster, field Field) interface{} {
	switch field {
	case ClusterId:
		return c.Id
	case ClusterName:
		return c.Name
	case ClusterStatus:
		return string(c.Status)
	case ClusterTags:
		return c.Tags
	case ClusterUpdated:
		return c.Updated
	}
	return nil
}

func commandFieldValue(pair model.ClusterCommand, field Field) interface{} {
	switch field {
	case CommandId:
		return pair.Command.Id
	case CommandStatus:
		return string(pair.Command.Status)
	case CommandTags:
		return pair.Command.Tags
	case CommandPosition:
		return pair.Position
	}
	return nil
}

func (c Condition) matches(fieldValue interface{}) bool {
	switch c.Op {
	case Like:
		s, ok := fieldValue.(string)
		return ok && likeMatch(c.Value.(string), s)
	case Equal:
		switch fieldValue.(type) {
		case string, int:
			return fieldValue == c.Value
		}
		return false
	case In:
		s, ok := fieldValue.(string)
		return ok && slices.Contains(c.Value.([]string), s)
	case Member:
		set, ok := fieldValue.([]string)
		return ok && slices.Contains(set, c.Value.(string))
	case GreaterThanOrEqual:
		t, ok := fieldValue.(time.Time)
		return ok && !t.Before(c.Value.(time.Time))
	case LessThan:
		t, ok := fieldValue.(time.Time)
		return ok && t.Before(c.Value.(time.Time))
	}
	return false
}

func compare(a, b interface{}) int {
	switch av := a.(type) {
	case string:
		bv := b.(string)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		}
	case int:
		bv := b.(int)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		}
	case time.Time:
		bv := b.(time.Time)
		switch {
		case av.Before(bv):
			return -1
		case av.After(bv):
			return 1
		}
	}
	return 0
}

// likeMatch reports whether s matches the SQL LIKE pattern: % matches any run of characters, _ matches exactly one
// and a backslash escapes the next character.
func likeMatch(pattern, s string) bool {
	p := []rune(pattern)
	r := []rune(s)
	pi, si := 0, 0
	// Position of the last % seen in the pattern and the input position it was tried against.
	star, mark := -1, 0
	for si < len(r) {
		if pi < len(p) {
			switch {
			case p[pi] == '%':
				star, mark = pi, si
				pi++
				continue
			case p[pi] == '\\' && pi+1 < len(p):
				if p[pi+1] == r[si] {
					pi += 2
					si++
					continue
				}
			case p[pi] == '_' || p[pi] == r[si]:
				pi++
				si++
				continue
			}
		}
		if star == -1 {
			return false
		}
		pi = star + 1
		mark++
		si = mark
	}
	for pi < len(p) && p[pi] == '%' {
		pi++
	}
	return pi == len(p)
}
