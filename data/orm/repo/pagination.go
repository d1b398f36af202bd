package repo

import (
	"context"
	"math"

	"polyrepo/polymorphic"
)

// PageRequest 分页参数，Page 从 1 开始
type PageRequest struct {
	Page    int    `json:"page"`
	Size    int    `json:"size"`
	OrderBy string `json:"order_by"`
	Desc    bool   `json:"desc"`
}

// PagedResult 分页结果
type PagedResult[T any] struct {
	Data       []T   `json:"data"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	Size       int   `json:"size"`
	TotalPages int   `json:"total_pages"`
}

// ListPage 按条件分页查询，结果不回填关联
func (r *Repo[T]) ListPage(ctx context.Context, criteria polymorphic.Criteria, req PageRequest) (*PagedResult[T], error) {
	if req.Page < 1 {
		req.Page = 1
	}
	if req.Size <= 0 {
		req.Size = 20
	}

	total, err := r.Count(ctx, criteria)
	if err != nil {
		return nil, err
	}

	q := r.query(ctx).Criteria(criteria)
	if req.OrderBy != "" && q.isAllowedField(req.OrderBy) {
		q = q.Order(req.OrderBy, req.Desc)
	}
	q = q.Offset((req.Page - 1) * req.Size).Limit(req.Size)

	var entities []T
	if err := q.Find(&entities); err != nil {
		return nil, r.wrap(ctx, err, "list page "+r.model.Table())
	}

	return &PagedResult[T]{
		Data:       entities,
		Total:      total,
		Page:       req.Page,
		Size:       req.Size,
		TotalPages: int(math.Ceil(float64(total) / float64(req.Size))),
	}, nil
}
