// README: List/stats query shapes and pagination math.
package order

import (
	"math"
	"time"

	"fooddash/internal/types"
)

const (
	DefaultPage  = 1
	DefaultLimit = 10
)

type SortField string

const (
	SortCreatedAt   SortField = "createdAt"
	SortUpdatedAt   SortField = "updatedAt"
	SortTotalAmount SortField = "totalAmount"
	SortStatus      SortField = "status"
)

func (f SortField) Valid() bool {
	switch f {
	case SortCreatedAt, SortUpdatedAt, SortTotalAmount, SortStatus:
		return true
	}
	return false
}

// Filter narrows the order set. An empty OwnerID means every owner.
type Filter struct {
	OwnerID string
	Status  *Status
	From    *time.Time
	To      *time.Time
}

type ListQuery struct {
	Filter
	SortBy    SortField
	Ascending bool
	Page      int
	Limit     int
}

// normalize applies defaults and clamps the page size to maxLimit.
func (q *ListQuery) normalize(maxLimit int) {
	if !q.SortBy.Valid() {
		q.SortBy = SortCreatedAt
	}
	if q.Page < 1 {
		q.Page = DefaultPage
	}
	if q.Limit < 1 {
		q.Limit = DefaultLimit
	}
	if maxLimit > 0 && q.Limit > maxLimit {
		q.Limit = maxLimit
	}
	// Keep (page-1)*limit inside int64 so the skip never goes negative.
	if maxPage := math.MaxInt64 / int64(q.Limit); int64(q.Page) > maxPage {
		q.Page = int(maxPage)
	}
}

func (q ListQuery) skip() int64 {
	return int64(q.Page-1) * int64(q.Limit)
}

type ListResult struct {
	Orders []Order
	Total  int64
}

type Pagination struct {
	Total       int64 `json:"total"`
	TotalPages  int64 `json:"totalPages"`
	CurrentPage int   `json:"currentPage"`
	Limit       int   `json:"limit"`
	HasNextPage bool  `json:"hasNextPage"`
	HasPrevPage bool  `json:"hasPrevPage"`
}

// NewPagination computes totalPages = ceil(total/limit).
func NewPagination(total int64, page, limit int) Pagination {
	var pages int64
	if limit > 0 {
		pages = (total + int64(limit) - 1) / int64(limit)
	}
	return Pagination{
		Total:       total,
		TotalPages:  pages,
		CurrentPage: page,
		Limit:       limit,
		HasNextPage: int64(page) < pages,
		HasPrevPage: page > 1,
	}
}

type StatusStat struct {
	Status      Status      `json:"status"`
	Count       int64       `json:"count"`
	TotalAmount types.Money `json:"totalAmount"`
}

type Stats struct {
	Stats       []StatusStat `json:"stats"`
	TotalOrders int64        `json:"totalOrders"`
	TotalAmount types.Money  `json:"totalAmount"`
}
