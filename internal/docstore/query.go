package docstore

import (
	"sort"
)

// Evaluate applies q to the documents of one collection. With an OrderBy
// field, documents lacking it are dropped and the rest sorted ascending by
// its value, then by id. Without one, documents are ordered by id.
func Evaluate(q Query, docs []DocumentSnapshot) Snapshot {
	out := make([]DocumentSnapshot, 0, len(docs))
	for _, d := range docs {
		if q.OrderBy != "" {
			if _, ok := d.Data[q.OrderBy]; !ok {
				continue
			}
		}
		out = append(out, d)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if q.OrderBy != "" {
			if c := compareValues(out[i].Data[q.OrderBy], out[j].Data[q.OrderBy]); c != 0 {
				return c < 0
			}
		}
		return out[i].ID < out[j].ID
	})
	return Snapshot{Collection: q.Collection, Docs: out}
}

// type ranks: null < bool < number < string < anything else
func rank(v any) int {
	switch v.(type) {
	case nil:
		return 0
	case bool:
		return 1
	case int, int32, int64, float32, float64:
		return 2
	case string:
		return 3
	}
	return 4
}

func compareValues(a, b any) int {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		return ra - rb
	}
	switch x := a.(type) {
	case bool:
		y := b.(bool)
		switch {
		case x == y:
			return 0
		case !x:
			return -1
		}
		return 1
	case string:
		y := b.(string)
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		}
		return 0
	}
	if ra == 2 {
		fx, fy := toFloat(a), toFloat(b)
		switch {
		case fx < fy:
			return -1
		case fx > fy:
			return 1
		}
	}
	return 0
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case float32:
		return float64(n)
	case float64:
		return n
	}
	return 0
}
