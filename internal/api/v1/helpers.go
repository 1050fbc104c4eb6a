package v1

import (
	"strconv"

	"barebones/internal/pkg/util"

	"github.com/gin-gonic/gin"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// paramID parses a positive id path parameter
func paramID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// page reads ?page=&size= into offset and limit
func page(c *gin.Context) (int, int) {
	return util.Page(c.Query("page"), c.Query("size"), defaultPageSize, maxPageSize)
}
