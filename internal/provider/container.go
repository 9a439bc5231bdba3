package provider

import (
	"github.com/accountd/internal/cache"
	"github.com/accountd/internal/config"
	"github.com/accountd/internal/logger"
	"github.com/accountd/internal/models"
	"github.com/accountd/internal/repository"
	"github.com/accountd/internal/service"
)

// Container 依赖注入容器
type Container struct {
	Config *config.Config

	// Repositories
	UserRepo       repository.UserRepository
	EmailQueueRepo repository.EmailQueueRepository

	// Services
	VerifyCodeService    *service.VerifyCodeService
	OutboundEmailService *service.OutboundEmailService
	AccountService       *service.AccountService
	CaptchaService       *service.CaptchaService
}

// NewContainer 初始化容器
func NewContainer(cfg *config.Config) *Container {
	// 初始化缓存
	if err := cache.InitRedis(&cfg.Redis); err != nil {
		logger.Warnw("provider_init_redis_failed", "error", err)
	}

	c := &Container{Config: cfg}

	// 1. 初始化 Repositories
	c.initRepositories()

	// 2. 初始化 Services
	c.initServices()

	return c
}

func (c *Container) initRepositories() {
	db := models.DB
	c.UserRepo = repository.NewUserRepository(db)
	c.EmailQueueRepo = repository.NewEmailQueueRepository(db)
}

func (c *Container) initServices() {
	var codeStore cache.CodeStore
	if cache.Enabled() {
		codeStore = cache.NewRedisCodeStore()
	} else {
		logger.Warnw("provider_code_store_fallback_memory")
		codeStore = cache.NewMemoryCodeStore()
	}

	c.VerifyCodeService = service.NewVerifyCodeService(&c.Config.Email.VerifyCode, codeStore)
	c.OutboundEmailService = service.NewOutboundEmailService(c.Config, c.EmailQueueRepo)
	c.AccountService = service.NewAccountService(c.Config, c.UserRepo, c.VerifyCodeService, c.OutboundEmailService)
	c.CaptchaService = service.NewCaptchaService(c.Config.Captcha)
}
