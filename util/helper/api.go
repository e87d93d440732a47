package helper_util

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

const maxPageSize = 1000

// GetSizeParam reads the "size" query parameter, falling back to def.
func GetSizeParam(c *gin.Context, def int) (int, error) {
	raw := c.Query("size")
	if raw == "" {
		return def, nil
	}
	size, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	if size <= 0 || size > maxPageSize {
		return 0, fmt.Errorf("size must be between 1 and %d", maxPageSize)
	}
	return size, nil
}

// GetTimeRangeParams reads the RFC3339 "from" and "to" query parameters.
// Missing values are returned as the zero time.
func GetTimeRangeParams(c *gin.Context) (from, to time.Time, err error) {
	if from, err = ParseOptionalTime(c.Query("from")); err != nil {
		return from, to, fmt.Errorf("invalid from: %w", err)
	}
	if to, err = ParseOptionalTime(c.Query("to")); err != nil {
		return from, to, fmt.Errorf("invalid to: %w", err)
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return from, to, fmt.Errorf("to is before from")
	}
	return from, to, nil
}
