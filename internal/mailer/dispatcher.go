package mailer

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/accountd/internal/logger"
	"github.com/accountd/internal/models"
	"github.com/accountd/internal/repository"
)

// Dispatcher 周期性扫描邮件队列并投递。
// 一个部署中同一队列表只允许一个活跃的 Dispatcher，
// 行选取不带抢占标记，多实例并发扫描会重复投递。
type Dispatcher struct {
	repo           repository.EmailQueueRepository
	transport      Transport
	batchSize      int
	stallThreshold time.Duration
	now            func() time.Time
}

// NewDispatcher 创建队列调度器
func NewDispatcher(repo repository.EmailQueueRepository, transport Transport, batchSize int, stallThreshold time.Duration) *Dispatcher {
	return &Dispatcher{
		repo:           repo,
		transport:      transport,
		batchSize:      batchSize,
		stallThreshold: stallThreshold,
		now:            time.Now,
	}
}

// Sweep 执行一轮扫描：选取可投递的行，按行并发尝试投递，
// 再将整批结果在单个事务内落盘。投递失败是数据而非错误，
// 只有存储层故障会让 Sweep 返回 error。
func (d *Dispatcher) Sweep(ctx context.Context) error {
	stallBefore := d.now().Add(-d.stallThreshold)
	rows, err := d.repo.SelectEligible(d.batchSize, stallBefore)
	if err != nil {
		return fmt.Errorf("select eligible messages: %w", err)
	}
	if len(rows) == 0 {
		return nil
	}

	outcomes := make([]repository.DeliveryOutcome, len(rows))
	var wg sync.WaitGroup
	for i := range rows {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcomes[i] = d.attempt(ctx, &rows[i])
		}(i)
	}
	wg.Wait()

	if err := d.repo.ReconcileBatch(outcomes); err != nil {
		return fmt.Errorf("reconcile sweep outcomes: %w", err)
	}

	sent, failed := 0, 0
	for i, outcome := range outcomes {
		if outcome.Sent {
			sent++
			cleanupAttachments(&rows[i])
		} else {
			failed++
			logger.Warnw("email_delivery_failed",
				"message_id", outcome.MessageID,
				"reason", outcome.Description,
				"attempts_remaining", rows[i].AttemptsRemaining-1,
			)
		}
	}
	logger.Infow("email_sweep_done", "batch", len(rows), "sent", sent, "failed", failed)
	return nil
}

// attempt 对单行执行一次投递，panic 一律折算为失败结果
func (d *Dispatcher) attempt(_ context.Context, msg *models.EmailQueue) (outcome repository.DeliveryOutcome) {
	outcome = repository.DeliveryOutcome{MessageID: msg.ID}
	defer func() {
		if r := recover(); r != nil {
			outcome.Sent = false
			outcome.Description = fmt.Sprintf("transport panic: %v", r)
		}
	}()

	if err := d.transport.Send(msg); err != nil {
		outcome.Sent = false
		outcome.Description = err.Error()
		return outcome
	}
	outcome.Sent = true
	outcome.Description = fmt.Sprintf("delivered at %s", d.now().UTC().Format(time.RFC3339))
	return outcome
}

// cleanupAttachments 投递成功后删除标记为用后即删的附件文件
func cleanupAttachments(msg *models.EmailQueue) {
	for _, attachment := range msg.Attachments {
		if !attachment.DeleteOnSuccess || attachment.Filepath == "" {
			continue
		}
		if err := os.Remove(attachment.Filepath); err != nil && !os.IsNotExist(err) {
			logger.Warnw("email_attachment_cleanup_failed",
				"message_id", msg.ID,
				"filepath", attachment.Filepath,
				"error", err,
			)
		}
	}
}
