package middleware

import (
	"context"
	"strings"

	"github.com/cloudwego/hertz/pkg/app"

	"github.com/YetiPanda/jade-ecosystem-sub005/internal/config"
	"github.com/YetiPanda/jade-ecosystem-sub005/internal/entity"
	"github.com/YetiPanda/jade-ecosystem-sub005/pkg/errcode"
	"github.com/YetiPanda/jade-ecosystem-sub005/pkg/jwt"
	"github.com/YetiPanda/jade-ecosystem-sub005/pkg/response"
)

const (
	// AuthorizationHeader is the header key for authorization
	AuthorizationHeader = "Authorization"
	// BearerPrefix is the prefix for bearer token
	BearerPrefix = "Bearer "
	// UserIdKey is the context key for user Id
	UserIdKey = "user_id"
	// UserTypeKey is the context key for user type
	UserTypeKey = "user_type"
)

// JWTAuth is the JWT authentication middleware
func JWTAuth() app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		authHeader := string(c.GetHeader(AuthorizationHeader))
		if authHeader == "" {
			response.ErrorWithCode(ctx, c, errcode.ErrTokenMissing)
			c.Abort()
			return
		}

		if !strings.HasPrefix(authHeader, BearerPrefix) {
			response.ErrorWithCode(ctx, c, errcode.ErrTokenInvalid)
			c.Abort()
			return
		}

		tokenString := strings.TrimPrefix(authHeader, BearerPrefix)
		claims, err := jwt.ParseToken(tokenString, config.GlobalConfig.JWT.Secret)
		if err != nil {
			response.ErrorWithCode(ctx, c, errcode.ErrTokenInvalid)
			c.Abort()
			return
		}

		c.Set(UserIdKey, claims.UserId)
		c.Set(UserTypeKey, claims.UserType)

		c.Next(ctx)
	}
}

// GetIdentity reads the authenticated identity the middleware stored.
func GetIdentity(c *app.RequestContext) entity.Identity {
	var id entity.Identity
	if v, ok := c.Get(UserIdKey); ok {
		id.UserId = v.(string)
	}
	if v, ok := c.Get(UserTypeKey); ok {
		id.UserType = v.(string)
	}
	return id
}

// GetUserId gets user Id from context
func GetUserId(c *app.RequestContext) string {
	if v, ok := c.Get(UserIdKey); ok {
		return v.(string)
	}
	return ""
}
