package middleware

import (
	"college_orbit_backend/internal/util"
	"college_orbit_backend/pkg/logger"
	"context"
	"crypto/subtle"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// TimezoneHeader 客户端上报的时区偏移（分钟，UTC - 本地）
const TimezoneHeader = "X-Timezone-Offset"

func AuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := ""
		authHeader := c.GetHeader("Authorization")
		if authHeader != "" {
			tokenString = strings.TrimPrefix(authHeader, "Bearer ")
		}

		// 日历订阅客户端无法设置请求头
		if tokenString == "" {
			tokenString = c.Query("token")
		}

		if tokenString == "" {
			util.Unauthorized(c)
			c.Abort()
			return
		}

		claims, err := util.ParseJWT(tokenString, secret)
		if err != nil {
			logger.Log.Debug("JWT rejected", zap.Error(err))
			util.Unauthorized(c)
			c.Abort()
			return
		}

		c.Set("user", claims)
		c.Next()
	}
}

// CronSecret 校验定时任务触发请求；secret 为空时拒绝所有请求
func CronSecret(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		got := c.GetHeader(util.CronSecretHeader)
		if secret == "" || subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
			util.Unauthorized(c)
			c.Abort()
			return
		}
		c.Next()
	}
}

type TimezoneRecorder interface {
	UpdateTimezoneOffset(ctx context.Context, userID uint, offset int) error
}

// TimezoneMiddleware 记录请求头中的时区偏移，供定时任务使用
func TimezoneMiddleware(repo TimezoneRecorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := util.GetUserFromContext(c)
		raw := c.GetHeader(TimezoneHeader)
		if claims != nil && raw != "" {
			offset, err := strconv.Atoi(raw)
			if err == nil && offset >= util.MinTimezoneOffset && offset <= util.MaxTimezoneOffset {
				// 异步更新，不阻塞主流程
				go func(userID uint) {
					ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					if err := repo.UpdateTimezoneOffset(ctx, userID, offset); err != nil {
						logger.Log.Warn("Failed to record timezone offset", zap.Uint("userID", userID), zap.Error(err))
					}
				}(claims.UserID)
			}
		}
		c.Next()
	}
}
