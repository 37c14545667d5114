package http

import (
	"strconv"

	"contest-service/internal/app"
	"contest-service/internal/domain"
	"github.com/gin-gonic/gin"
)

// listQuery reads pageIndex (1-based), pageSize and keyword.
func listQuery(c *gin.Context) (domain.ListQuery, error) {
	page, err := intParam(c, "pageIndex", 1)
	if err != nil {
		return domain.ListQuery{}, err
	}
	size, err := intParam(c, "pageSize", app.DefaultPageSize)
	if err != nil {
		return domain.ListQuery{}, err
	}
	if page < 1 {
		page = 1
	}
	q := app.NormalizeQuery(domain.ListQuery{Keyword: c.Query("keyword"), Limit: size})
	q.Offset = (page - 1) * q.Limit
	return q, nil
}

func intParam(c *gin.Context, name string, fallback int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, domain.Invalidf(name + " must be an integer")
	}
	return n, nil
}

func boolParam(c *gin.Context, name string) (bool, error) {
	raw := c.Query(name)
	if raw == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, domain.Invalidf(name + " must be a boolean")
	}
	return b, nil
}
