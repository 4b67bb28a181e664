package handler

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"admincore/internal/model"
	"admincore/internal/query"
)

const (
	defaultPage     = 1
	defaultPageSize = 20
	maxPageSize     = 500
)

// reserved query parameters; every other one is a filter.
var reserved = map[string]bool{
	"search": true, "sort_by": true, "order": true, "page": true, "page_size": true,
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "invalid id")
		return 0, false
	}
	return id, true
}

func parseQuery(c *gin.Context) (query.Params, error) {
	p := query.Params{
		Filters:  map[string]string{},
		Search:   c.Query("search"),
		SortBy:   c.Query("sort_by"),
		Order:    query.Order(strings.ToLower(c.Query("order"))),
		Page:     defaultPage,
		PageSize: defaultPageSize,
	}
	for key, values := range c.Request.URL.Query() {
		if reserved[key] || len(values) == 0 {
			continue
		}
		p.Filters[key] = values[0]
	}
	var err error
	if p.Page, err = intParam(c, "page", defaultPage); err != nil {
		return p, err
	}
	if p.PageSize, err = intParam(c, "page_size", defaultPageSize); err != nil {
		return p, err
	}
	if p.PageSize > maxPageSize {
		return p, model.NewValidationError("page_size", "must be at most "+strconv.Itoa(maxPageSize))
	}
	return p, nil
}

func intParam(c *gin.Context, name string, def int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, model.NewValidationError(name, "must be an integer")
	}
	return n, nil
}

// parseDate accepts a calendar date or an RFC 3339 timestamp.
func parseDate(field, raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.DateOnly, raw); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Time{}, model.NewValidationError(field, "must be YYYY-MM-DD")
}
