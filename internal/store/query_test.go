package store

import (
	"net/url"
	"reflect"
	"testing"

	"go.mongodb.org/mongo-driver/bson"
)

func TestParseListQuery_Defaults(t *testing.T) {
	q := ParseListQuery(url.Values{})

	if len(q.Filter) != 0 {
		t.Fatalf("filter = %v, want empty", q.Filter)
	}
	if !reflect.DeepEqual(q.Sort, bson.D{{Key: "createdAt", Value: -1}}) {
		t.Fatalf("sort = %v", q.Sort)
	}
	if q.Page != DefaultPage || q.Limit != DefaultLimit || q.Skip() != 0 {
		t.Fatalf("page/limit/skip = %d/%d/%d", q.Page, q.Limit, q.Skip())
	}
	if q.Projection != nil {
		t.Fatalf("projection = %v, want nil", q.Projection)
	}
}

func TestParseListQuery_Operators(t *testing.T) {
	q := ParseListQuery(url.Values{
		"price[lt]":      {"1500"},
		"price[gte]":     {"500"},
		"difficulty":     {"easy"},
		"ratingsAverage": {"4.7"},
	})

	price, ok := q.Filter["price"].(bson.M)
	if !ok {
		t.Fatalf("price filter = %#v", q.Filter["price"])
	}
	if price["$lt"] != int64(1500) || price["$gte"] != int64(500) {
		t.Fatalf("price = %v", price)
	}
	if q.Filter["difficulty"] != "easy" {
		t.Fatalf("difficulty = %v", q.Filter["difficulty"])
	}
	if q.Filter["ratingsAverage"] != 4.7 {
		t.Fatalf("ratingsAverage = %v", q.Filter["ratingsAverage"])
	}
}

func TestParseListQuery_RepeatedBecomesIn(t *testing.T) {
	q := ParseListQuery(url.Values{"duration": {"5", "9"}})

	want := bson.M{"$in": bson.A{int64(5), int64(9)}}
	if !reflect.DeepEqual(q.Filter["duration"], want) {
		t.Fatalf("duration = %#v, want %#v", q.Filter["duration"], want)
	}
}

func TestParseListQuery_IgnoresUnsafeKeys(t *testing.T) {
	q := ParseListQuery(url.Values{
		"price[$ne]":   {"1"},
		"price[regex]": {"x"},
		"a.b":          {"1"},
		"$where":       {"1"},
	})
	if len(q.Filter) != 0 {
		t.Fatalf("filter = %v, want empty", q.Filter)
	}
}

func TestParseListQuery_SortFieldsPaging(t *testing.T) {
	q := ParseListQuery(url.Values{
		"sort":   {"-price,ratingsAverage,$bad"},
		"fields": {"name,price,-secret"},
		"page":   {"3"},
		"limit":  {"10"},
	})

	wantSort := bson.D{{Key: "price", Value: -1}, {Key: "ratingsAverage", Value: 1}}
	if !reflect.DeepEqual(q.Sort, wantSort) {
		t.Fatalf("sort = %v", q.Sort)
	}
	wantProj := bson.D{{Key: "name", Value: 1}, {Key: "price", Value: 1}}
	if !reflect.DeepEqual(q.Projection, wantProj) {
		t.Fatalf("projection = %v", q.Projection)
	}
	if q.Skip() != 20 || q.Limit != 10 {
		t.Fatalf("skip/limit = %d/%d", q.Skip(), q.Limit)
	}
	if _, ok := q.Filter["page"]; ok {
		t.Fatal("reserved param leaked into filter")
	}
}

func TestParseListQuery_ExclusionProjection(t *testing.T) {
	q := ParseListQuery(url.Values{"fields": {"-description,-images"}})
	want := bson.D{{Key: "description", Value: 0}, {Key: "images", Value: 0}}
	if !reflect.DeepEqual(q.Projection, want) {
		t.Fatalf("projection = %v", q.Projection)
	}
}

func TestParseListQuery_BadPaging(t *testing.T) {
	q := ParseListQuery(url.Values{"page": {"-1"}, "limit": {"abc"}})
	if q.Page != DefaultPage || q.Limit != DefaultLimit {
		t.Fatalf("page/limit = %d/%d", q.Page, q.Limit)
	}
}
