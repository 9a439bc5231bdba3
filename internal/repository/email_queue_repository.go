package repository

import (
	"errors"
	"fmt"
	"time"

	"github.com/accountd/internal/constants"
	"github.com/accountd/internal/models"

	"gorm.io/gorm"
)

// DeliveryOutcome 单条消息的一次投递结果
type DeliveryOutcome struct {
	MessageID   uint   // email_queue 行 ID
	Sent        bool   // 本次投递是否成功
	Description string // 诊断信息（成功回执或失败原因）
}

// EmailQueueRepository 邮件队列数据访问接口
type EmailQueueRepository interface {
	Create(msg *models.EmailQueue) error
	GetByID(id uint) (*models.EmailQueue, error)
	SelectEligible(limit int, stallBefore time.Time) ([]models.EmailQueue, error)
	ReconcileBatch(outcomes []DeliveryOutcome) error
	ListByStatus(status string, page, pageSize int) ([]models.EmailQueue, int64, error)
}

// GormEmailQueueRepository GORM 实现
type GormEmailQueueRepository struct {
	db *gorm.DB
}

// NewEmailQueueRepository 创建邮件队列仓库
func NewEmailQueueRepository(db *gorm.DB) *GormEmailQueueRepository {
	return &GormEmailQueueRepository{db: db}
}

// Create 入队一条待发送邮件
func (r *GormEmailQueueRepository) Create(msg *models.EmailQueue) error {
	return r.db.Create(msg).Error
}

// GetByID 根据 ID 获取队列行，未找到返回 nil
func (r *GormEmailQueueRepository) GetByID(id uint) (*models.EmailQueue, error) {
	var msg models.EmailQueue
	if err := r.db.First(&msg, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &msg, nil
}

// SelectEligible 选取一批可投递的队列行：
// 剩余预算大于零，且处于 in_queue、failed，或停滞超过阈值的 in_progress。
// sent 与预算耗尽的行永不入选。
func (r *GormEmailQueueRepository) SelectEligible(limit int, stallBefore time.Time) ([]models.EmailQueue, error) {
	if limit <= 0 {
		limit = constants.DefaultSweepBatchSize
	}
	var rows []models.EmailQueue
	err := r.db.
		Where("attempts_remaining > 0").
		Where("status = ? OR status = ? OR (status = ? AND updated_at < ?)",
			constants.EmailStatusInQueue,
			constants.EmailStatusFailed,
			constants.EmailStatusInProgress,
			stallBefore,
		).
		Order("id ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ReconcileBatch 在单个事务内落盘一批投递结果：
// 成功置为 sent 并记录诊断；失败置为 failed、记录诊断并将剩余预算减一。
// 任何一条写入失败则整批回滚，由下一轮扫描重新拾起。
func (r *GormEmailQueueRepository) ReconcileBatch(outcomes []DeliveryOutcome) error {
	if len(outcomes) == 0 {
		return nil
	}
	return r.db.Transaction(func(tx *gorm.DB) error {
		for _, outcome := range outcomes {
			updates := map[string]interface{}{
				"status_description": outcome.Description,
			}
			if outcome.Sent {
				updates["status"] = constants.EmailStatusSent
			} else {
				updates["status"] = constants.EmailStatusFailed
				updates["attempts_remaining"] = gorm.Expr("attempts_remaining - 1")
			}
			result := tx.Model(&models.EmailQueue{}).
				Where("id = ? AND status <> ? AND attempts_remaining > 0", outcome.MessageID, constants.EmailStatusSent).
				Updates(updates)
			if result.Error != nil {
				return fmt.Errorf("reconcile message %d: %w", outcome.MessageID, result.Error)
			}
		}
		return nil
	})
}

// ListByStatus 按状态分页查询队列行，status 为空时返回全部
func (r *GormEmailQueueRepository) ListByStatus(status string, page, pageSize int) ([]models.EmailQueue, int64, error) {
	query := r.db.Model(&models.EmailQueue{})
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applyPagination(query, page, pageSize)

	var rows []models.EmailQueue
	if err := query.Order("id DESC").Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}
