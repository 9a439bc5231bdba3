package constants

// 邮件投递状态常量
const (
	EmailStatusInQueue    = "in_queue"
	EmailStatusInProgress = "in_progress"
	EmailStatusSent       = "sent"
	EmailStatusFailed     = "failed"
)

// 验证码用途常量
const (
	CodePurposeActivate      = "activate"
	CodePurposeResetPassword = "reset_password"
)

// 用户状态常量
const (
	UserStatusActive   = "active"
	UserStatusDisabled = "disabled"
)

// 投递队列默认参数
const (
	DefaultRetryBudget           = 3
	DefaultSweepBatchSize        = 50
	DefaultStallThresholdMinutes = 5
	DefaultSweepIntervalSeconds  = 5
)

// 验证码默认参数
const (
	DefaultCodeLength     = 6
	DefaultCodeTTLMinutes = 5
)
