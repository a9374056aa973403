package handlers

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	defaultPageLimit = int64(20)
	maxPageLimit     = int64(100)
	// keeps (page-1)*limit inside int64
	maxPage = math.MaxInt64 / maxPageLimit
)

var errInvalidPagination = errors.New("page and limit must be positive integers")

type pagination struct {
	Page    int64
	Limit   int64
	Enabled bool
}

// parsePaginationParams reads page and limit. Pagination is enabled only when
// at least one of them is present; limit is capped at 100.
func parsePaginationParams(pageStr, limitStr string) (pagination, error) {
	p := pagination{Page: 1, Limit: defaultPageLimit}
	pageStr = strings.TrimSpace(pageStr)
	limitStr = strings.TrimSpace(limitStr)

	if pageStr != "" {
		page, err := strconv.ParseInt(pageStr, 10, 64)
		if err != nil || page < 1 || page > maxPage {
			return pagination{}, errInvalidPagination
		}
		p.Page = page
		p.Enabled = true
	}

	if limitStr != "" {
		limit, err := strconv.ParseInt(limitStr, 10, 64)
		if err != nil || limit < 1 {
			return pagination{}, errInvalidPagination
		}
		p.Limit = min(limit, maxPageLimit)
		p.Enabled = true
	}

	return p, nil
}

func (p pagination) apply(opts *options.FindOptions) *options.FindOptions {
	if !p.Enabled {
		return opts
	}
	return opts.SetSkip((p.Page - 1) * p.Limit).SetLimit(p.Limit)
}

func (p pagination) meta(total int64) gin.H {
	totalPages := int64(0)
	if total > 0 {
		totalPages = int64(math.Ceil(float64(total) / float64(p.Limit)))
	}
	return gin.H{
		"page":       p.Page,
		"limit":      p.Limit,
		"total":      total,
		"totalPages": totalPages,
	}
}
