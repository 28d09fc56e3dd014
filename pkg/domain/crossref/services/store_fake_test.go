package crossref_services

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	crossref_out "github.com/replay-api/gameday-index/pkg/domain/crossref/ports/out"
)

// fakeStore is an in-memory DocumentStore speaking the pipeline subset the
// services emit: $match (equality, $in, $or, dotted paths through arrays),
// $sort, $project inclusion, plus the update operators of reference
// maintenance.
type fakeStore struct {
	mu          sync.Mutex
	collections map[string][]bson.M
	failOn      map[string]error // collection -> injected error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		collections: map[string][]bson.M{},
		failOn:      map[string]error{},
	}
}

func (f *fakeStore) insert(collection string, docs ...bson.M) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.collections[collection] = append(f.collections[collection], docs...)
}

func (f *fakeStore) FindOne(_ context.Context, collection string, filter bson.M) (bson.M, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failOn[collection]; err != nil {
		return nil, err
	}
	for _, doc := range f.collections[collection] {
		if matchFilter(doc, filter) {
			return cloneDoc(doc), nil
		}
	}
	return nil, nil
}

func (f *fakeStore) CountDocuments(_ context.Context, collection string, filter bson.M) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, doc := range f.collections[collection] {
		if matchFilter(doc, filter) {
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) Aggregate(_ context.Context, collection string, pipeline []bson.M) ([]bson.M, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failOn[collection]; err != nil {
		return nil, err
	}
	docs := make([]bson.M, 0, len(f.collections[collection]))
	for _, d := range f.collections[collection] {
		docs = append(docs, cloneDoc(d))
	}
	for _, stage := range pipeline {
		for op, arg := range stage {
			switch op {
			case "$match":
				var kept []bson.M
				for _, d := range docs {
					if matchFilter(d, arg.(bson.M)) {
						kept = append(kept, d)
					}
				}
				docs = kept
			case "$sort":
				docs = sortDocs(docs, arg)
			case "$project":
				docs = projectDocs(docs, arg.(bson.M))
			default:
				return nil, fmt.Errorf("fakeStore: unsupported stage %s", op)
			}
		}
	}
	return docs, nil
}

func (f *fakeStore) ReplaceOne(_ context.Context, collection string, filter bson.M, doc bson.M, upsert bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failOn[collection]; err != nil {
		return err
	}
	for i, existing := range f.collections[collection] {
		if matchFilter(existing, filter) {
			f.collections[collection][i] = cloneDoc(doc)
			return nil
		}
	}
	if upsert {
		f.collections[collection] = append(f.collections[collection], cloneDoc(doc))
	}
	return nil
}

func (f *fakeStore) BulkWrite(_ context.Context, collection string, ops []crossref_out.UpdateOp) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failOn[collection]; err != nil {
		return err
	}
	for _, op := range ops {
		f.applyOp(collection, op)
	}
	return nil
}

func (f *fakeStore) applyOp(collection string, op crossref_out.UpdateOp) {
	var target bson.M
	for _, existing := range f.collections[collection] {
		if matchFilter(existing, op.Filter) {
			target = existing
			break
		}
	}
	inserted := false
	if target == nil {
		if !op.Upsert {
			return
		}
		target = bson.M{}
		for k, v := range op.Filter {
			if !strings.HasPrefix(k, "$") {
				setPath(target, k, v)
			}
		}
		f.collections[collection] = append(f.collections[collection], target)
		inserted = true
	}

	for operator, arg := range op.Update {
		fields, _ := arg.(bson.M)
		switch operator {
		case "$set":
			for path, v := range fields {
				setPath(target, path, v)
			}
		case "$setOnInsert":
			if inserted {
				for path, v := range fields {
					setPath(target, path, v)
				}
			}
		case "$unset":
			for path := range fields {
				unsetPath(target, path)
			}
		case "$pull":
			for path, v := range fields {
				arr := asAnySlice(getPath(target, path))
				var kept []any
				for _, item := range arr {
					if !pullMatches(item, v) {
						kept = append(kept, item)
					}
				}
				setPath(target, path, kept)
			}
		case "$addToSet":
			for path, v := range fields {
				arr := asAnySlice(getPath(target, path))
				found := false
				for _, item := range arr {
					if reflect.DeepEqual(item, v) {
						found = true
						break
					}
				}
				if !found {
					setPath(target, path, append(arr, v))
				}
			}
		}
	}
}

// pullMatches mirrors $pull semantics: a document value is a query condition
// on the element, anything else is an equality match.
func pullMatches(item, cond any) bool {
	if m, ok := cond.(bson.M); ok {
		doc, ok := item.(bson.M)
		return ok && matchFilter(doc, m)
	}
	return reflect.DeepEqual(item, cond)
}

// --- filter evaluation ---

func matchFilter(doc bson.M, filter bson.M) bool {
	for key, cond := range filter {
		if key == "$or" {
			if !matchOr(doc, cond) {
				return false
			}
			continue
		}
		if !matchField(doc, key, cond) {
			return false
		}
	}
	return true
}

func matchOr(doc bson.M, cond any) bool {
	for _, b := range asAnySlice(cond) {
		if m, ok := b.(bson.M); ok && matchFilter(doc, m) {
			return true
		}
	}
	return false
}

func matchField(doc bson.M, path string, cond any) bool {
	values := valuesAtPath(doc, path)
	if m, ok := cond.(bson.M); ok {
		if in, ok := m["$in"]; ok {
			for _, allowed := range asAnySlice(in) {
				for _, v := range values {
					if reflect.DeepEqual(v, allowed) {
						return true
					}
				}
			}
			return false
		}
	}
	for _, v := range values {
		if reflect.DeepEqual(v, cond) {
			return true
		}
	}
	return false
}

// valuesAtPath walks the dotted path with implicit array traversal and
// expands terminal arrays into their elements, mirroring match semantics.
func valuesAtPath(doc bson.M, path string) []any {
	current := []any{doc}
	for _, seg := range strings.Split(path, ".") {
		var next []any
		for _, v := range current {
			switch t := v.(type) {
			case bson.M:
				if inner, ok := t[seg]; ok {
					next = append(next, inner)
				}
			case map[string]any:
				if inner, ok := t[seg]; ok {
					next = append(next, inner)
				}
			case []any:
				for _, el := range t {
					if m, ok := el.(bson.M); ok {
						if inner, ok := m[seg]; ok {
							next = append(next, inner)
						}
					}
				}
			}
		}
		current = next
	}
	var out []any
	for _, v := range current {
		if arr, ok := v.([]any); ok {
			out = append(out, arr...)
			continue
		}
		out = append(out, v)
	}
	return out
}

// --- stages ---

func sortDocs(docs []bson.M, arg any) []bson.M {
	type sortKey struct {
		field string
		dir   int
	}
	var keys []sortKey
	switch spec := arg.(type) {
	case bson.D:
		for _, e := range spec {
			keys = append(keys, sortKey{e.Key, asIntDir(e.Value)})
		}
	case bson.M:
		for k, v := range spec {
			keys = append(keys, sortKey{k, asIntDir(v)})
		}
	}
	sorted := make([]bson.M, len(docs))
	copy(sorted, docs)
	sort.SliceStable(sorted, func(i, j int) bool {
		for _, k := range keys {
			c := compareValues(firstValue(sorted[i], k.field), firstValue(sorted[j], k.field))
			if c == 0 {
				continue
			}
			if k.dir < 0 {
				return c > 0
			}
			return c < 0
		}
		return false
	})
	return sorted
}

func projectDocs(docs []bson.M, spec bson.M) []bson.M {
	inclusion := false
	for _, v := range spec {
		if asIntDir(v) == 1 {
			inclusion = true
		}
	}
	out := make([]bson.M, 0, len(docs))
	for _, d := range docs {
		if !inclusion {
			kept := cloneDoc(d)
			for path := range spec {
				unsetPath(kept, path)
			}
			out = append(out, kept)
			continue
		}
		kept := bson.M{}
		if id, ok := d["_id"]; ok {
			kept["_id"] = id
		}
		for path, v := range spec {
			if asIntDir(v) != 1 {
				continue
			}
			if val, ok := d[path]; ok {
				kept[path] = val
			}
		}
		out = append(out, kept)
	}
	return out
}

// --- small helpers ---

func firstValue(doc bson.M, path string) any {
	vs := valuesAtPath(doc, path)
	if len(vs) == 0 {
		return nil
	}
	return vs[0]
}

func compareValues(a, b any) int {
	switch av := a.(type) {
	case string:
		bv, _ := b.(string)
		return strings.Compare(av, bv)
	case int:
		bv, _ := b.(int)
		return av - bv
	case time.Time:
		bv, _ := b.(time.Time)
		switch {
		case av.Before(bv):
			return -1
		case av.After(bv):
			return 1
		}
		return 0
	}
	return 0
}

func asIntDir(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int32:
		return int(n)
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}

func asAnySlice(v any) []any {
	switch t := v.(type) {
	case []any:
		return t
	case bson.A:
		return []any(t)
	case []bson.M:
		out := make([]any, len(t))
		for i, m := range t {
			out[i] = m
		}
		return out
	case []string:
		out := make([]any, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out
	case nil:
		return nil
	}
	return nil
}

func getPath(doc bson.M, path string) any {
	segs := strings.Split(path, ".")
	cur := doc
	for _, seg := range segs[:len(segs)-1] {
		next, ok := cur[seg].(bson.M)
		if !ok {
			return nil
		}
		cur = next
	}
	return cur[segs[len(segs)-1]]
}

func setPath(doc bson.M, path string, v any) {
	segs := strings.Split(path, ".")
	cur := doc
	for _, seg := range segs[:len(segs)-1] {
		next, ok := cur[seg].(bson.M)
		if !ok {
			next = bson.M{}
			cur[seg] = next
		}
		cur = next
	}
	cur[segs[len(segs)-1]] = v
}

func unsetPath(doc bson.M, path string) {
	segs := strings.Split(path, ".")
	cur := doc
	for _, seg := range segs[:len(segs)-1] {
		next, ok := cur[seg].(bson.M)
		if !ok {
			return
		}
		cur = next
	}
	delete(cur, segs[len(segs)-1])
}

func cloneDoc(doc bson.M) bson.M {
	out := bson.M{}
	for k, v := range doc {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case bson.M:
		return cloneDoc(t)
	case map[string]any:
		return cloneDoc(bson.M(t))
	case []any:
		out := make([]any, len(t))
		for i, el := range t {
			out[i] = cloneValue(el)
		}
		return out
	}
	return v
}
