package databases

import (
	"time"

	"go.mongodb.org/mongo-driver/mongo/options"
)

// nowFunc is swappable in tests
var nowFunc = time.Now

type mongoPaginate struct {
	limit int64
	page  int64
}

func newMongoPaginate(limit, page int) *mongoPaginate {
	return &mongoPaginate{
		limit: int64(limit),
		page:  int64(page),
	}
}

func (mp *mongoPaginate) getPaginatedOpts() *options.FindOptions {
	l := mp.limit
	skip := mp.page*mp.limit - mp.limit
	if skip < 0 {
		skip = 0
	}
	fOpt := options.FindOptions{Limit: &l, Skip: &skip}

	return &fOpt
}

// Paginate builds find options for a 1-based page of the given size
func Paginate(limit, page int) *options.FindOptions {
	if limit < 1 {
		limit = 10
	}
	if page < 1 {
		page = 1
	}
	return newMongoPaginate(limit, page).getPaginatedOpts()
}
