package service

import (
	"fmt"
	"strings"

	"github.com/accountd/internal/config"
	"github.com/accountd/internal/constants"
	"github.com/accountd/internal/models"
	"github.com/accountd/internal/repository"
)

// OutboundEmailService 出站邮件生产者。
// 只负责校验消息形态并写入队列表，实际投递由 mailer 调度器完成。
type OutboundEmailService struct {
	cfg       *config.Config
	queueRepo repository.EmailQueueRepository
}

// NewOutboundEmailService 创建出站邮件服务
func NewOutboundEmailService(cfg *config.Config, queueRepo repository.EmailQueueRepository) *OutboundEmailService {
	return &OutboundEmailService{cfg: cfg, queueRepo: queueRepo}
}

// Enqueue 校验并入队一封邮件，返回队列行 ID。
// 入队成功只代表消息已持久化，不代表已投递。
func (s *OutboundEmailService) Enqueue(msg *models.EmailQueue) (uint, error) {
	if msg == nil || len(msg.To) == 0 {
		return 0, ErrMissingRecipient
	}
	if strings.TrimSpace(msg.Subject) == "" {
		return 0, ErrMissingSubject
	}
	if strings.TrimSpace(msg.TextContent) == "" && strings.TrimSpace(msg.HTML) == "" {
		return 0, ErrMissingBody
	}

	if strings.TrimSpace(msg.From) == "" {
		msg.From = s.cfg.Email.From
	}
	msg.Status = constants.EmailStatusInQueue
	msg.StatusDescription = ""
	msg.AttemptsRemaining = s.cfg.Mailer.RetryBudgetOrDefault()

	if err := s.queueRepo.Create(msg); err != nil {
		return 0, fmt.Errorf("enqueue message: %w", err)
	}
	return msg.ID, nil
}

// EnqueueActivationEmail 入队账号激活邮件
func (s *OutboundEmailService) EnqueueActivationEmail(toEmail, fullName, code string) (uint, error) {
	msg := &models.EmailQueue{
		To:          models.StringArray{toEmail},
		Subject:     "Account Activation Email",
		TextContent: fmt.Sprintf("Welcome %s. Your account activation code is: %s", fullName, code),
		HTML:        fmt.Sprintf("<h1>Welcome %s.</h1><br/><p>Your account activation code is: %s</p>", fullName, code),
	}
	return s.Enqueue(msg)
}

// EnqueuePasswordResetEmail 入队重置密码邮件
func (s *OutboundEmailService) EnqueuePasswordResetEmail(toEmail, fullName, code string) (uint, error) {
	msg := &models.EmailQueue{
		To:          models.StringArray{toEmail},
		Subject:     "Reset Password Email",
		TextContent: fmt.Sprintf("Hello %s. Your password reset code is: %s", fullName, code),
		HTML:        fmt.Sprintf("<h1>Hello %s.</h1><br/><p>Your password reset code is: %s</p>", fullName, code),
	}
	return s.Enqueue(msg)
}

// ListByStatus 按状态分页查询队列（运维用途）
func (s *OutboundEmailService) ListByStatus(status string, page, pageSize int) ([]models.EmailQueue, int64, error) {
	return s.queueRepo.ListByStatus(strings.ToLower(strings.TrimSpace(status)), page, pageSize)
}
