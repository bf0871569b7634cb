package auth

import (
	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"
	mgin "github.com/ulule/limiter/v3/drivers/middleware/gin"
	memorystore "github.com/ulule/limiter/v3/drivers/store/memory"

	"codeberg.org/anonchat/server/internal/identity"
)

// identities are cheap to mint, so the endpoint is rate limited per IP
const identityRateLimit = "30-M"

func RegisterRoutes(router *gin.RouterGroup, ids *identity.Provider) error {
	rate, err := limiter.NewRateFromFormatted(identityRateLimit)
	if err != nil {
		return err
	}

	rateLimiter := mgin.NewMiddleware(limiter.New(memorystore.NewStore(), rate))

	router.POST("/auth/anonymous", rateLimiter, AnonymousHandler(ids))
	return nil
}
