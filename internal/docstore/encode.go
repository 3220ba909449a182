package docstore

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Resolve returns a copy of fields with every ServerTimestamp replaced by now
// in UTC.
func Resolve(fields Fields, now time.Time) Fields {
	out := make(Fields, len(fields))
	for k, v := range fields {
		if IsServerTimestamp(v) {
			out[k] = now.UTC()
			continue
		}
		out[k] = v
	}
	return out
}

// Merge overlays patch onto base without modifying either.
func Merge(base, patch Fields) Fields {
	out := make(Fields, len(base)+len(patch))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range patch {
		out[k] = v
	}
	return out
}

func Marshal(fields Fields) ([]byte, error) {
	data, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	return data, nil
}

func Unmarshal(data []byte) (Fields, error) {
	var fields Fields
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}
	if fields == nil {
		fields = Fields{}
	}
	return fields, nil
}

// Decode converts document fields into a typed value through its JSON tags.
func Decode(fields Fields, v any) error {
	data, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode document: %w", err)
	}
	return nil
}

// Matches reports whether doc satisfies f. A nil filter matches everything.
func Matches(doc Document, f *Filter) bool {
	if f == nil {
		return true
	}
	v, ok := doc.Fields[f.Field]
	if !ok {
		return false
	}
	return equal(v, f.Value)
}

// Apply filters and orders docs according to q.
func Apply(docs []Document, q Query) []Document {
	out := make([]Document, 0, len(docs))
	for _, d := range docs {
		if Matches(d, q.Where) {
			out = append(out, d)
		}
	}
	if q.OrderBy != "" {
		Sort(out, q.OrderBy, q.Direction)
	}
	return out
}

// Sort orders docs by field. Documents missing the field always sort last;
// ties are broken by id so snapshots are stable.
func Sort(docs []Document, field string, dir Direction) {
	sort.SliceStable(docs, func(i, j int) bool {
		a, aok := docs[i].Fields[field]
		b, bok := docs[j].Fields[field]
		if aok && a == nil {
			aok = false
		}
		if bok && b == nil {
			bok = false
		}
		switch {
		case !aok && !bok:
			return docs[i].ID < docs[j].ID
		case !aok:
			return false
		case !bok:
			return true
		}
		c := compare(a, b)
		if c == 0 {
			return docs[i].ID < docs[j].ID
		}
		if dir == Descending {
			return c > 0
		}
		return c < 0
	})
}

func equal(a, b any) bool {
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		return ok && fa == fb
	}
	if ta, ok := toTime(a); ok {
		if tb, ok := toTime(b); ok {
			return ta.Equal(tb)
		}
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func compare(a, b any) int {
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			switch {
			case fa < fb:
				return -1
			case fa > fb:
				return 1
			}
			return 0
		}
	}
	if ta, ok := toTime(a); ok {
		if tb, ok := toTime(b); ok {
			return ta.Compare(tb)
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func toTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, t)
		return parsed, err == nil
	}
	return time.Time{}, false
}
