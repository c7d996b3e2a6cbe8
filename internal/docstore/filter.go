package docstore

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"
)

// evaluate applies filters, ordering and limit in process. Used by the
// backends that cannot push the query down.
func evaluate(snaps []Snapshot, q Query) []Snapshot {
	out := make([]Snapshot, 0, len(snaps))
	for _, s := range snaps {
		if matchesAll(s.Data, q.Filters) {
			out = append(out, s)
		}
	}

	if q.OrderBy != nil {
		o := *q.OrderBy
		slices.SortStableFunc(out, func(a, b Snapshot) int {
			c := compareOrdered(a.Data[o.Field], b.Data[o.Field], o.Kind)
			if o.Descending {
				return -c
			}
			return c
		})
	} else {
		slices.SortFunc(out, func(a, b Snapshot) int { return strings.Compare(a.Ref.ID, b.Ref.ID) })
	}

	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out
}

func matchesAll(doc Document, filters []Filter) bool {
	for _, f := range filters {
		if !matches(doc, f) {
			return false
		}
	}
	return true
}

func matches(doc Document, f Filter) bool {
	v, ok := doc[f.Field]
	if !ok || v == nil {
		return f.Op == OpNeq && f.Value != nil
	}
	c, comparable := compareToTarget(v, f.Value)
	if !comparable {
		return f.Op == OpNeq
	}
	switch f.Op {
	case OpEq:
		return c == 0
	case OpNeq:
		return c != 0
	case OpLt:
		return c < 0
	case OpLte:
		return c <= 0
	case OpGt:
		return c > 0
	case OpGte:
		return c >= 0
	}
	return false
}

// compareToTarget compares a decoded JSON value with a filter value using the
// filter value's type.
func compareToTarget(v, target any) (int, bool) {
	switch t := target.(type) {
	case time.Time:
		s, ok := v.(string)
		if !ok {
			return 0, false
		}
		parsed, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return 0, false
		}
		return parsed.Compare(t), true
	case bool:
		b, ok := v.(bool)
		if !ok {
			return 0, false
		}
		if b == t {
			return 0, true
		}
		if !b {
			return -1, true
		}
		return 1, true
	case string:
		s, ok := v.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(s, t), true
	case fmt.Stringer:
		s, ok := v.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(s, t.String()), true
	}

	tf, ok := toFloat(target)
	if !ok {
		s, isString := v.(string)
		if !isString {
			return 0, false
		}
		return strings.Compare(s, fmt.Sprint(target)), true
	}
	vf, ok := toFloat(v)
	if !ok {
		return 0, false
	}
	return cmp.Compare(vf, tf), true
}

func compareOrdered(a, b any, kind Kind) int {
	switch kind {
	case KindTime:
		return compareTimes(a, b)
	case KindNumber:
		af, _ := toFloat(a)
		bf, _ := toFloat(b)
		return cmp.Compare(af, bf)
	default:
		return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
	}
}

func compareTimes(a, b any) int {
	return parseTime(a).Compare(parseTime(b))
}

func parseTime(v any) time.Time {
	s, _ := v.(string)
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}
