// README: Base handler utilities (JSON helpers, binding, query parsing).
package handlers

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"fooddash/internal/apperr"
	"fooddash/internal/http/respond"
)

func writeJSON(c *gin.Context, status int, v any) {
	respond.JSON(c, status, v)
}

func writeError(c *gin.Context, err error) {
	respond.Error(c, err)
}

func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		writeError(c, apperr.Wrap(apperr.KindValidation, "invalid request body", err))
		return false
	}
	return true
}

func queryInt(c *gin.Context, key string) (int, error) {
	v := c.Query(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, apperr.New(apperr.KindValidation, fmt.Sprintf("%s must be an integer", key))
	}
	return n, nil
}

func queryBool(c *gin.Context, key string) (*bool, error) {
	v := c.Query(key)
	if v == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return nil, apperr.New(apperr.KindValidation, fmt.Sprintf("%s must be true or false", key))
	}
	return &b, nil
}

// queryTime accepts RFC 3339 or a bare date. A bare endDate covers the
// whole day.
func queryTime(c *gin.Context, key string, endOfDay bool) (*time.Time, error) {
	v := c.Query(key)
	if v == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return nil, apperr.New(apperr.KindValidation, fmt.Sprintf("%s must be a date (YYYY-MM-DD) or RFC 3339 timestamp", key))
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Millisecond)
	}
	return &t, nil
}
