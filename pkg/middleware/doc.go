// Package middleware provides HTTP middleware for authentication and rate limiting.
//
// AuthMiddleware resolves the bearer session token and stores the identity in
// the request context:
//
//	router.Use(middleware.NewAuthMiddleware(authService).Handler)
//	identity := middleware.GetIdentity(r.Context())
//
// RequireAdmin rejects non-administrators with 403 before the handler runs.
//
// RateLimit throttles credential submissions per client address with either
// an in-process token bucket or a Redis fixed window shared by all instances:
//
//	limiter := middleware.NewDistributedRateLimiter(redisClient, nil, "")
//	login := middleware.RateLimit(limiter, logger)(loginHandler)
package middleware
