package metrics

import (
	"fmt"
	"path"
	"reflect"
	"strings"
)

// declaration is a measure declared by a struct field
type declaration struct {
	name        string
	group       string
	unit        string
	description string
	tagKeys     []string
	extraViews  []string
}

// allocator creates the measure of a declaration. It returns nil for unsupported field types.
type allocator func(field reflect.Type, d declaration) interface{}

// allocate walks a pointer to a struct and sets every field tagged with "metric".
//
// Supported tags are:
//   - metric: the name of the measure
//   - group: a path element added to the names of all nested measures
//   - unit: count (default), bytes, sumbytes, milliseconds or bps
//   - description: the description of the measure and its views
//   - tags: comma separated tag keys captured by views
//   - extraviews: comma separated additional aggregations (count, sum, lastvalue)
//
// Untagged fields holding a struct are walked recursively. Other fields are ignored.
func allocate(root string, alloc allocator, m interface{}) {
	v := reflect.ValueOf(m)
	if v.Kind() != reflect.Ptr || v.IsNil() || v.Elem().Kind() != reflect.Struct {
		panic(fmt.Sprintf("metrics must be declared with a pointer to a struct, got: %T", m))
	}
	walk(root, alloc, v.Elem())
}

func walk(parent string, alloc allocator, s reflect.Value) {
	t := s.Type()
	for i := 0; i < t.NumField(); i++ {
		field, value := t.Field(i), s.Field(i)
		if !value.CanSet() {
			continue
		}
		group := path.Join(parent, field.Tag.Get("group"))

		if name, ok := field.Tag.Lookup("metric"); ok {
			if value.Kind() != reflect.Ptr {
				continue
			}
			d := declaration{
				name:        name,
				group:       group,
				unit:        field.Tag.Get("unit"),
				description: field.Tag.Get("description"),
				tagKeys:     splitList(field.Tag.Get("tags")),
				extraViews:  splitList(field.Tag.Get("extraviews")),
			}
			if measure := alloc(field.Type, d); measure != nil {
				value.Set(reflect.ValueOf(measure))
			}
			continue
		}

		if value.Kind() == reflect.Struct {
			walk(group, alloc, value)
		}
	}
}

func splitList(list string) []string {
	var res []string
	for _, e := range strings.Split(list, ",") {
		if e = strings.TrimSpace(e); e != "" {
			res = append(res, e)
		}
	}
	return res
}
