package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"codeberg.org/anonchat/server/internal/errors"
	"codeberg.org/anonchat/server/internal/identity"
)

// mints an anonymous identity. This is the only authentication the system
// has; a failure here is fatal to the caller's session and is surfaced for a
// user-initiated retry rather than retried automatically.
func AnonymousHandler(ids *identity.Provider) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := ids.Issue()
		if err != nil {
			errors.InternalError(c, "failed to issue identity", err)
			return
		}

		c.JSON(http.StatusCreated, AnonymousResponse{
			UserID: id.UserID,
			Token:  id.Token,
		})
	}
}
