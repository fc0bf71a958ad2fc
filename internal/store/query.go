package store

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
)

const (
	DefaultPage  = 1
	DefaultLimit = 100
)

// ListQuery is a parsed list request: filter, sort, projection and page.
type ListQuery struct {
	Filter     bson.M
	Sort       bson.D
	Projection bson.D
	Page       int64
	Limit      int64
}

// Skip is the number of documents before the requested page.
func (q ListQuery) Skip() int64 { return (q.Page - 1) * q.Limit }

var (
	reservedParams = map[string]bool{"page": true, "sort": true, "limit": true, "fields": true}
	filterKey      = regexp.MustCompile(`^([A-Za-z][A-Za-z0-9_]*)(?:\[(gte|gt|lte|lt)\])?$`)
	fieldName      = regexp.MustCompile(`^-?[A-Za-z][A-Za-z0-9_]*$`)
)

// ParseListQuery turns query parameters into a ListQuery.
//
//	?difficulty=easy&price[lt]=1500&sort=-price,name&fields=name,price&page=2&limit=10
//
// A parameter that arrives more than once filters with $in. Keys that are
// not plain field names, optionally with a gte|gt|lte|lt suffix, are ignored.
// Sort defaults to newest first.
func ParseListQuery(q url.Values) ListQuery {
	lq := ListQuery{
		Filter: bson.M{},
		Sort:   bson.D{{Key: "createdAt", Value: -1}},
		Page:   positive(q.Get("page"), DefaultPage),
		Limit:  positive(q.Get("limit"), DefaultLimit),
	}

	for key, vals := range q {
		if reservedParams[key] || len(vals) == 0 {
			continue
		}
		m := filterKey.FindStringSubmatch(key)
		if m == nil {
			continue
		}
		field, op := m[1], m[2]
		if op != "" {
			cond, _ := lq.Filter[field].(bson.M)
			if cond == nil {
				cond = bson.M{}
			}
			cond["$"+op] = scalar(vals[len(vals)-1])
			lq.Filter[field] = cond
			continue
		}
		if len(vals) > 1 {
			in := make(bson.A, len(vals))
			for i, v := range vals {
				in[i] = scalar(v)
			}
			lq.Filter[field] = bson.M{"$in": in}
			continue
		}
		lq.Filter[field] = scalar(vals[0])
	}

	if s := q.Get("sort"); s != "" {
		if d := parseSort(s); len(d) > 0 {
			lq.Sort = d
		}
	}
	if f := q.Get("fields"); f != "" {
		lq.Projection = parseFields(f)
	}
	return lq
}

func parseSort(s string) bson.D {
	var d bson.D
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if !fieldName.MatchString(part) {
			continue
		}
		dir := 1
		if strings.HasPrefix(part, "-") {
			dir = -1
			part = part[1:]
		}
		d = append(d, bson.E{Key: part, Value: dir})
	}
	return d
}

// parseFields builds an inclusion projection, or an exclusion one when every
// field is prefixed with '-'. Mixed lists keep only the inclusions.
func parseFields(s string) bson.D {
	var incl, excl bson.D
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if !fieldName.MatchString(part) {
			continue
		}
		if strings.HasPrefix(part, "-") {
			excl = append(excl, bson.E{Key: part[1:], Value: 0})
			continue
		}
		incl = append(incl, bson.E{Key: part, Value: 1})
	}
	if len(incl) > 0 {
		return incl
	}
	return excl
}

// scalar keeps numbers numeric so range filters compare as numbers.
func scalar(s string) any {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

func positive(s string, def int64) int64 {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 1 {
		return def
	}
	return n
}
