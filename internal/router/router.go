package router

import (
	"fmt"
	"strings"

	"github.com/accountd/internal/cache"
	"github.com/accountd/internal/config"
	publichandlers "github.com/accountd/internal/http/handlers/public"
	"github.com/accountd/internal/logger"
	"github.com/accountd/internal/provider"

	"github.com/gin-gonic/gin"
)

// SetupRouter 初始化路由
func SetupRouter(cfg *config.Config, c *provider.Container) *gin.Engine {
	log := logger.L
	if log == nil {
		log = logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	}
	r := gin.New()

	publicHandler := publichandlers.New(c)
	redisPrefix := strings.TrimSpace(cfg.Redis.Prefix)
	if redisPrefix == "" {
		redisPrefix = "acct"
	}
	redisClient := cache.Client()
	loginRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:login", redisPrefix),
		WindowSeconds: cfg.Security.LoginRateLimit.WindowSeconds,
		MaxRequests:   cfg.Security.LoginRateLimit.MaxRequests,
	}
	codeRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:code", redisPrefix),
		WindowSeconds: cfg.Security.CodeRateLimit.WindowSeconds,
		MaxRequests:   cfg.Security.CodeRateLimit.MaxRequests,
	}

	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(log))
	r.Use(CORSMiddleware(cfg.CORS))

	apiV1 := r.Group("/api/v1")
	{
		public := apiV1.Group("/public")
		{
			public.GET("/health", publicHandler.Health)
			public.GET("/captcha/image", publicHandler.GetImageCaptcha)
		}

		account := apiV1.Group("/account")
		{
			account.POST("/create", RateLimitMiddleware(redisClient, codeRule, KeyByIPAndJSONField("email")), publicHandler.CreateAccount)
			account.POST("/activate", publicHandler.ActivateAccount)
			account.POST("/authenticate", RateLimitMiddleware(redisClient, loginRule, KeyByIPAndJSONField("email")), publicHandler.Authenticate)
			account.POST("/reset-password", RateLimitMiddleware(redisClient, codeRule, KeyByIPAndJSONField("email")), publicHandler.RequestPasswordReset)
			account.POST("/update-password", publicHandler.UpdatePassword)
		}

		user := apiV1.Group("")
		user.Use(UserJWTAuthMiddleware(cfg.JWT.SecretKey, c.UserRepo))
		{
			user.GET("/me", publicHandler.Whoami)
			user.GET("/mail-queue", publicHandler.ListMailQueue)
		}
	}

	return r
}
