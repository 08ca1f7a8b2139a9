package docstore

import (
	"sort"
)

// Matches reports whether doc passes every equality filter of q.
func Matches(doc Document, filters []Filter) bool {
	for _, f := range filters {
		v, ok := doc.Fields[f.Field]
		if !ok || Text(v) != f.Value {
			return false
		}
	}
	return true
}

// Evaluate applies q to an unordered set of documents of q.Parent.
func Evaluate(docs []Document, q Query) []Document {
	out := make([]Document, 0, len(docs))
	for _, d := range docs {
		if d.Parent != q.Parent || !Matches(d, q.Filters) {
			continue
		}
		if q.OrderBy != "" {
			if _, ok := d.Fields[q.OrderBy]; !ok {
				continue
			}
		}
		out = append(out, d)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return after(out[i], out[j], q.OrderBy)
	})

	if q.After != nil {
		cut := len(out)
		for i, d := range out {
			if pastCursor(d, *q.After, q.OrderBy) {
				cut = i
				break
			}
		}
		out = out[cut:]
	}

	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out
}

// CursorOf returns the position of doc in a query ordered by field.
func CursorOf(doc Document, field string) Cursor {
	return Cursor{Value: doc.String(field), ID: doc.ID}
}

// after reports whether a sorts ahead of b in descending order.
func after(a, b Document, field string) bool {
	if field != "" {
		av, bv := a.String(field), b.String(field)
		if av != bv {
			return av > bv
		}
	}
	return a.ID > b.ID
}

// pastCursor reports whether d comes strictly after cursor c in descending order.
func pastCursor(d Document, c Cursor, field string) bool {
	if field != "" {
		v := d.String(field)
		if v != c.Value {
			return v < c.Value
		}
	}
	return d.ID < c.ID
}
