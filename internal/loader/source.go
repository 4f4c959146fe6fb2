// Package loader feeds grid tables from a paged data source: progressive
// chunked loading, and refreshes where only the newest request may win.
package loader

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/JonMunkholm/casegrid/internal/grid"
)

// Order is the fecha_asignacion ordering requested from the source.
type Order string

const (
	OrderDesc Order = "DESC"
	OrderAsc  Order = "ASC"
)

// ParseOrder accepts asc/desc in any case; anything else is DESC.
func ParseOrder(s string) Order {
	if strings.EqualFold(s, "asc") {
		return OrderAsc
	}
	return OrderDesc
}

// Scope narrows a load to one team lead or one operator. The zero value
// loads everything.
type Scope struct {
	Lider   string `json:"lider,omitempty"`
	Usuario string `json:"usuario,omitempty"`
}

// PageParams selects one page of source rows.
type PageParams struct {
	DateFrom time.Time
	Scope    Scope
	Page     int // 1-based
	Limit    int
	Order    Order
}

// PageMeta describes where a page sits in the full result.
type PageMeta struct {
	Total      int  `json:"total"`
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	TotalPages int  `json:"totalPages"`
	HasNext    bool `json:"hasNext"`
	HasPrev    bool `json:"hasPrev"`
}

// NewPageMeta derives the page flags from a total count.
func NewPageMeta(total, page, limit int) PageMeta {
	if limit < 1 {
		limit = 1
	}
	pages := (total + limit - 1) / limit
	return PageMeta{
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: pages,
		HasNext:    page < pages,
		HasPrev:    page > 1,
	}
}

// Page is one chunk of rows from a Source.
type Page struct {
	Rows []grid.Record
	Meta PageMeta
}

// Source loads pages of records.
type Source interface {
	LoadPage(ctx context.Context, p PageParams) (Page, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, p PageParams) (Page, error)

func (f SourceFunc) LoadPage(ctx context.Context, p PageParams) (Page, error) { return f(ctx, p) }

// LoadAll pages through src in chunks of p.Limit starting at page 1 until
// the source reports no next page or maxRows is reached (0 means no cap).
// onChunk, when set, sees each chunk as it arrives.
func LoadAll(ctx context.Context, src Source, p PageParams, maxRows int, onChunk func(Page)) ([]grid.Record, error) {
	if p.Limit < 1 {
		return nil, fmt.Errorf("loader: chunk size must be positive, got %d", p.Limit)
	}
	var rows []grid.Record
	for page := 1; ; page++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p.Page = page
		chunk, err := src.LoadPage(ctx, p)
		if err != nil {
			return nil, fmt.Errorf("load page %d: %w", page, err)
		}
		if onChunk != nil {
			onChunk(chunk)
		}
		rows = append(rows, chunk.Rows...)
		if maxRows > 0 && len(rows) >= maxRows {
			return rows[:maxRows], nil
		}
		if !chunk.Meta.HasNext || len(chunk.Rows) == 0 {
			return rows, nil
		}
	}
}
