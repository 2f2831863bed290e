package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"table-order-api/apperr"
	"table-order-api/store"
)

// Store is the shared transactional order store, wired once at startup.
var Store *store.OrderStore

// SetStore injects the store used by every order handler.
func SetStore(s *store.OrderStore) { Store = s }

// writeError maps a taxonomy error onto the HTTP response: stable code plus
// human-readable message.
func writeError(c *gin.Context, err error) {
	c.JSON(apperr.HTTPStatus(err), gin.H{
		"code":  apperr.CodeOf(err),
		"error": apperr.MessageOf(err),
	})
}

// paramID parses a numeric path parameter.
func paramID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		writeError(c, apperr.Validationf("invalid %s", name))
		return 0, false
	}
	return uint(id), true
}
