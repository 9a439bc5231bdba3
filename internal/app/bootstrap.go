package app

import (
	"errors"

	"github.com/accountd/internal/config"
	"github.com/accountd/internal/mailer"
	"github.com/accountd/internal/provider"
	"github.com/accountd/internal/router"
)

// BuildRunner 构建服务运行器
func BuildRunner(cfg *config.Config, mode string) (*Runner, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}

	container := provider.NewContainer(cfg)

	var services []Service

	// 初始化 HTTP 服务
	if mode == ModeAll || mode == ModeAPI {
		engine := router.SetupRouter(cfg, container)
		addr := cfg.Server.Host + ":" + cfg.Server.Port
		httpService := NewHTTPService(addr, engine)
		services = append(services, httpService)
	}

	// 初始化投递调度服务
	if mode == ModeAll || mode == ModeDispatcher {
		transport := mailer.NewSMTPTransport(&cfg.Email)
		dispatcher := mailer.NewDispatcher(
			container.EmailQueueRepo,
			transport,
			cfg.Mailer.BatchSizeOrDefault(),
			cfg.Mailer.StallThreshold(),
		)
		mailerService, err := mailer.NewService(dispatcher, cfg.Mailer.SweepInterval())
		if err != nil {
			return nil, err
		}
		services = append(services, mailerService)
	}

	if len(services) == 0 {
		return nil, errors.New("no services initialized (check mode and config)")
	}

	return NewRunner(services...), nil
}

// Run 应用启动入口
func Run(opts Options) error {
	opts = normalizeOptions(opts)
	if opts.Config == nil {
		return errors.New("config is nil")
	}

	runner, err := BuildRunner(opts.Config, opts.Mode)
	if err != nil {
		return err
	}

	addr := opts.Config.Server.Host + ":" + opts.Config.Server.Port
	opts.Logger.Infow("app_start", "addr", addr, "mode", opts.Mode)
	return RunWithOptions(runner, opts)
}
