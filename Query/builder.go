// Package Query turns list-request parameters into a store query plus a
// response projection. Malformed expressions never fail a request: they
// degrade to "no constraint".
package Query

import (
	"encoding/json"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"taskatlas/Store"
)

// DefaultTaskLimit caps task listings that ask for neither an explicit
// limit nor a count.
const DefaultTaskLimit = 100

var fieldPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Options is a parsed list request.
type Options struct {
	Filter  map[string]any
	Sort    []Store.SortField
	Include []string
	Exclude []string
	Skip    int
	Limit   int
	Count   bool

	// HasLimit records whether the caller set limit explicitly, which
	// suppresses any default cap.
	HasLimit bool
}

// Parse reads the recognized query parameters off a request:
// where (JSON object of field equalities), sort (JSON object of field:1/-1
// or a comma list with a "-" prefix for descending), select (JSON object of
// field:1/0 or a comma list), skip, limit, count.
func Parse(c *fiber.Ctx) Options {
	var o Options

	if raw := c.Query("where"); raw != "" {
		var where map[string]any
		if err := json.Unmarshal([]byte(raw), &where); err == nil {
			o.Filter = map[string]any{}
			for field, want := range where {
				if !fieldPattern.MatchString(field) {
					continue
				}
				switch want.(type) {
				case string, bool, float64:
					o.Filter[field] = want
				}
			}
		}
	}

	if raw := c.Query("sort"); raw != "" {
		o.Sort = parseSort(raw)
	}

	if raw := c.Query("select"); raw != "" {
		o.Include, o.Exclude = parseSelect(raw)
	}

	if n, err := strconv.Atoi(c.Query("skip")); err == nil && n > 0 {
		o.Skip = n
	}
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n >= 0 {
			o.Limit = n
			o.HasLimit = true
		}
	}
	if v, err := strconv.ParseBool(c.Query("count")); err == nil {
		o.Count = v
	}

	return o
}

// StoreQuery lowers the options into a Store.Query, applying defaultLimit
// when the request named no limit of its own. A defaultLimit of 0 means
// uncapped.
func (o Options) StoreQuery(defaultLimit int) Store.Query {
	limit := o.Limit
	if !o.HasLimit && defaultLimit > 0 {
		limit = defaultLimit
	}
	return Store.Query{
		Filter: o.Filter,
		Sort:   o.Sort,
		Skip:   o.Skip,
		Limit:  limit,
	}
}

// Project applies the select projection to decoded documents. The id field
// always survives an include projection, matching how document stores treat
// their primary key.
func (o Options) Project(docs []map[string]any) []map[string]any {
	if len(o.Include) == 0 && len(o.Exclude) == 0 {
		return docs
	}
	out := make([]map[string]any, len(docs))
	for i, doc := range docs {
		projected := map[string]any{}
		if len(o.Include) > 0 {
			if id, ok := doc["id"]; ok {
				projected["id"] = id
			}
			for _, field := range o.Include {
				if v, ok := doc[field]; ok {
					projected[field] = v
				}
			}
		} else {
			for field, v := range doc {
				projected[field] = v
			}
			for _, field := range o.Exclude {
				delete(projected, field)
			}
		}
		out[i] = projected
	}
	return out
}

func parseSort(raw string) []Store.SortField {
	var fields []Store.SortField
	if strings.HasPrefix(strings.TrimSpace(raw), "{") {
		var spec map[string]float64
		if err := json.Unmarshal([]byte(raw), &spec); err != nil {
			return nil
		}
		names := make([]string, 0, len(spec))
		for name := range spec {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			if !fieldPattern.MatchString(name) {
				continue
			}
			fields = append(fields, Store.SortField{Field: name, Desc: spec[name] < 0})
		}
		return fields
	}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		desc := strings.HasPrefix(part, "-")
		name := strings.TrimPrefix(part, "-")
		if !fieldPattern.MatchString(name) {
			continue
		}
		fields = append(fields, Store.SortField{Field: name, Desc: desc})
	}
	return fields
}

func parseSelect(raw string) (include, exclude []string) {
	if strings.HasPrefix(strings.TrimSpace(raw), "{") {
		var spec map[string]float64
		if err := json.Unmarshal([]byte(raw), &spec); err != nil {
			return nil, nil
		}
		names := make([]string, 0, len(spec))
		for name := range spec {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			if !fieldPattern.MatchString(name) {
				continue
			}
			if spec[name] != 0 {
				include = append(include, name)
			} else {
				exclude = append(exclude, name)
			}
		}
		// mixing include and exclude is ambiguous; includes win
		if len(include) > 0 {
			exclude = nil
		}
		return include, exclude
	}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if fieldPattern.MatchString(part) {
			include = append(include, part)
		}
	}
	return include, nil
}
