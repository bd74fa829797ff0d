package middleware

import (
	"context"
	"crypto/subtle"
	"strings"
	"time"

	"payout-core/internal/handler/response"
	"payout-core/internal/platform"
	"payout-core/pkg/errno"
	"payout-core/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// UserVerifier 用平台校验用户访问令牌 (由 platform.Client 实现)
type UserVerifier interface {
	Me(ctx context.Context, accessToken string) (*platform.Me, error)
}

// AdminAuth 后台接口鉴权: 比对 X-API-Key
func AdminAuth(adminKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader("X-API-Key")
		if adminKey == "" || subtle.ConstantTimeCompare([]byte(key), []byte(adminKey)) != 1 {
			response.Error(c, errno.ErrUnauthorized)
			c.Abort()
			return
		}
		c.Next()
	}
}

// PiAuth 用户接口鉴权: 拿 Bearer 令牌去平台换 uid，放进 Context
func PiAuth(verifier UserVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(auth, "Bearer ")
		if !ok || token == "" {
			response.Error(c, errno.ErrTokenInvalid)
			c.Abort()
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
		defer cancel()

		me, err := verifier.Me(ctx, token)
		if err != nil {
			logger.Warn("访问令牌校验失败", zap.Error(err))
			response.Error(c, errno.ErrTokenInvalid)
			c.Abort()
			return
		}

		c.Set("uid", me.UID)
		c.Next()
	}
}
