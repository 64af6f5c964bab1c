package dataset

import "encoding/json"

// MaxPageSize caps a single page regardless of what the caller asks for.
const MaxPageSize = 1000

// DefaultPageSize applies when the caller does not set a page size.
const DefaultPageSize = 100

// Pagination describes the window a page was cut from.
type Pagination struct {
	Page       int  `json:"page"`
	PageSize   int  `json:"page_size"`
	Total      int  `json:"total"`
	TotalPages int  `json:"total_pages"`
	HasNext    bool `json:"has_next"`
	HasPrev    bool `json:"has_prev"`
}

// Page returns one page of the dataset for key. A page outside [1,
// totalPages] yields an empty slice rather than an error, with the window
// metadata still describing the full dataset.
func (l *Loader) Page(key string, page, pageSize int) ([]json.RawMessage, Pagination, error) {
	items, err := l.Get(key)
	if err != nil {
		return nil, Pagination{}, err
	}
	paged, pg := paginate(items, page, pageSize)
	return paged, pg, nil
}

// All returns the complete dataset for key with no pagination applied.
func (l *Loader) All(key string) ([]json.RawMessage, error) {
	return l.Get(key)
}

func paginate(items []json.RawMessage, page, pageSize int) ([]json.RawMessage, Pagination) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}

	total := len(items)
	totalPages := (total + pageSize - 1) / pageSize

	pg := Pagination{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
	}
	if page < 1 || page > totalPages {
		return []json.RawMessage{}, pg
	}

	start := (page - 1) * pageSize
	end := start + pageSize
	if end > total {
		end = total
	}
	pg.HasNext = page < totalPages
	pg.HasPrev = page > 1
	return items[start:end], pg
}
