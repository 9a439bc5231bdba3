package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// StringArray 字符串数组类型，JSON 序列化后落库
type StringArray []string

// Value 实现 driver.Valuer 接口
func (s StringArray) Value() (driver.Value, error) {
	if s == nil {
		return nil, nil
	}
	return json.Marshal(s)
}

// Scan 实现 sql.Scanner 接口
func (s *StringArray) Scan(value interface{}) error {
	if value == nil {
		*s = StringArray{}
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("failed to scan StringArray value")
	}
	if len(bytes) == 0 {
		*s = StringArray{}
		return nil
	}
	return json.Unmarshal(bytes, s)
}

// EmailAttachment 邮件附件描述
type EmailAttachment struct {
	Filename        string `json:"filename"`          // 邮件中展示的文件名
	Filepath        string `json:"filepath"`          // 本地文件路径
	DeleteOnSuccess bool   `json:"delete_on_success"` // 发送成功后删除本地文件
}

// AttachmentArray 附件数组类型，JSON 序列化后落库
type AttachmentArray []EmailAttachment

// Value 实现 driver.Valuer 接口
func (a AttachmentArray) Value() (driver.Value, error) {
	if a == nil {
		return nil, nil
	}
	return json.Marshal(a)
}

// Scan 实现 sql.Scanner 接口
func (a *AttachmentArray) Scan(value interface{}) error {
	if value == nil {
		*a = AttachmentArray{}
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("failed to scan AttachmentArray value")
	}
	if len(bytes) == 0 {
		*a = AttachmentArray{}
		return nil
	}
	return json.Unmarshal(bytes, a)
}

// EmailQueue 出站邮件队列表。投递状态机：
// in_queue -> in_progress -> sent / failed，failed 在预算耗尽前可重试。
// AttemptsRemaining 只减不增，归零后该行不再被调度；sent 为终态，行永不删除。
type EmailQueue struct {
	ID                uint            `gorm:"primarykey" json:"id"`                                // 主键
	From              string          `gorm:"not null" json:"from"`                                // 发件人
	To                StringArray     `gorm:"type:text;not null" json:"to"`                        // 收件人
	Cc                StringArray     `gorm:"type:text" json:"cc"`                                 // 抄送
	Bcc               StringArray     `gorm:"type:text" json:"bcc"`                                // 密送
	Subject           string          `gorm:"not null" json:"subject"`                             // 主题
	TextContent       string          `gorm:"type:text" json:"text_content"`                       // 纯文本正文
	HTML              string          `gorm:"type:text" json:"html"`                               // HTML 正文
	Attachments       AttachmentArray `gorm:"type:text" json:"attachments"`                        // 附件列表
	Status            string          `gorm:"index;not null;default:'in_queue'" json:"status"`     // 投递状态
	StatusDescription string          `gorm:"type:text" json:"status_description"`                 // 最近一次投递结果描述
	AttemptsRemaining int             `gorm:"not null;default:3" json:"attempts_remaining"`        // 剩余尝试次数
	CreatedAt         time.Time       `gorm:"index" json:"created_at"`                             // 创建时间
	UpdatedAt         time.Time       `gorm:"index" json:"updated_at"`                             // 更新时间
}

// TableName 指定表名
func (EmailQueue) TableName() string {
	return "email_queue"
}
