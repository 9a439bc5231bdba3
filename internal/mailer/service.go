package mailer

import (
	"context"
	"errors"
	"time"

	"github.com/accountd/internal/logger"
)

// Service 邮件调度服务，按固定周期驱动 Dispatcher.Sweep
type Service struct {
	name       string
	dispatcher *Dispatcher
	interval   time.Duration
	done       chan struct{}
}

// NewService 创建邮件调度服务
func NewService(dispatcher *Dispatcher, interval time.Duration) (*Service, error) {
	if dispatcher == nil {
		return nil, errors.New("dispatcher is nil")
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Service{
		name:       "mailer",
		dispatcher: dispatcher,
		interval:   interval,
		done:       make(chan struct{}),
	}, nil
}

// Name 服务名称
func (s *Service) Name() string {
	if s == nil || s.name == "" {
		return "mailer"
	}
	return s.name
}

// Start 启动调度循环，阻塞直到 ctx 取消
func (s *Service) Start(ctx context.Context) error {
	if s == nil || s.dispatcher == nil {
		return errors.New("mailer not initialized")
	}
	defer close(s.done)

	runOnce := func() {
		if err := s.dispatcher.Sweep(ctx); err != nil {
			logger.Warnw("mailer_sweep_failed", "error", err)
		}
	}
	runOnce()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			runOnce()
		}
	}
}

// Stop 等待调度循环退出
func (s *Service) Stop(ctx context.Context) error {
	if s == nil {
		return nil
	}
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
