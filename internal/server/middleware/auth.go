// Package middleware provides HTTP middleware for authentication, logging, and request processing.
package middleware

import (
	"context"
	"strings"
	"time"

	pkglog "ExitLane/pkg/log"

	"github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/middleware"
	"github.com/go-kratos/kratos/v2/transport"
	"github.com/go-kratos/kratos/v2/transport/http"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

// apiKeyMaskedContextKey is the context key for storing the masked API key
const apiKeyMaskedContextKey contextKey = "api_key_masked"

// ErrUnauthorized is returned when the API key is missing or wrong.
var ErrUnauthorized = errors.Unauthorized("UNAUTHORIZED", "invalid or missing API key")

// Auth 返回一个 HTTP 认证中间件
// 提取并校验 API Key，记录认证日志
//
// 支持 "Authorization: Bearer {key}" 和 "X-API-Key: {key}" 两种形式。
// expectedKey 为空时跳过校验（本地开发模式）。
func Auth(expectedKey string, logger *pkglog.LogHelper) middleware.Middleware {
	return func(handler middleware.Handler) middleware.Handler {
		return func(ctx context.Context, req interface{}) (interface{}, error) {
			if expectedKey == "" {
				return handler(ctx, req)
			}

			startTime := time.Now()

			var apiKey string
			if tr, ok := transport.FromServerContext(ctx); ok {
				if ht, ok := tr.(http.Transporter); ok {
					httpReq := ht.Request()

					authHeader := httpReq.Header.Get("Authorization")
					if authHeader != "" {
						apiKey = strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
					}
					if apiKey == "" {
						apiKey = httpReq.Header.Get("X-API-Key")
					}
				}
			}

			if apiKey != expectedKey {
				logger.Auth("Rejected request: invalid API key",
					"api_key_masked", maskAPIKey(apiKey),
					"duration_ms", time.Since(startTime).Milliseconds(),
				)
				return nil, ErrUnauthorized
			}

			maskedKey := maskAPIKey(apiKey)
			logger.Auth("Authenticated request ("+maskedKey+")",
				"api_key_masked", maskedKey,
				"duration_ms", time.Since(startTime).Milliseconds(),
			)

			ctx = context.WithValue(ctx, apiKeyMaskedContextKey, maskedKey)
			return handler(ctx, req)
		}
	}
}

// maskAPIKey 脱敏 API Key，仅显示前 8 位
// 示例: "sk-1234567890abcdef" -> "sk-12345***"
func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:8] + "***"
}
