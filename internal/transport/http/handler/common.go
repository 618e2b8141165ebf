package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"docsearch/internal/transport/http/middleware"
	"docsearch/internal/transport/http/response"
)

// requireUser writes a 401 and returns false when the context carries no user.
func requireUser(c *gin.Context) (uint, bool) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return 0, false
	}
	return userID, true
}

func sanitizeSSE(input string) string {
	replaced := strings.ReplaceAll(input, "\r\n", "\\n")
	replaced = strings.ReplaceAll(replaced, "\n", "\\n")
	return replaced
}
