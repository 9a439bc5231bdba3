package mailer

import (
	"bytes"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"mime"
	"mime/multipart"
	"net/mail"
	"net/smtp"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"

	"github.com/accountd/internal/config"
	"github.com/accountd/internal/models"
)

// Transport 邮件投递能力。返回 nil 表示投递成功，
// 返回的错误文本会作为诊断信息写回队列行。
type Transport interface {
	Send(msg *models.EmailQueue) error
}

// SMTPTransport 基于 SMTP 的投递实现
type SMTPTransport struct {
	cfg *config.EmailConfig
}

// NewSMTPTransport 创建 SMTP 投递器
func NewSMTPTransport(cfg *config.EmailConfig) *SMTPTransport {
	return &SMTPTransport{cfg: cfg}
}

// Send 投递一封队列邮件
func (t *SMTPTransport) Send(msg *models.EmailQueue) error {
	if t.cfg == nil || t.cfg.Host == "" || t.cfg.Port == 0 {
		return fmt.Errorf("smtp not configured")
	}
	if msg == nil || len(msg.To) == 0 {
		return fmt.Errorf("message has no recipients")
	}

	from := strings.TrimSpace(msg.From)
	if from == "" {
		from = t.cfg.From
	}
	if from == "" {
		return fmt.Errorf("message has no sender")
	}

	payload, err := buildMIMEMessage(from, t.cfg.FromName, msg)
	if err != nil {
		return err
	}

	// Bcc 参与 RCPT 但不出现在报文头
	recipients := make([]string, 0, len(msg.To)+len(msg.Cc)+len(msg.Bcc))
	recipients = append(recipients, msg.To...)
	recipients = append(recipients, msg.Cc...)
	recipients = append(recipients, msg.Bcc...)

	addr := fmt.Sprintf("%s:%d", t.cfg.Host, t.cfg.Port)
	var auth smtp.Auth
	if t.cfg.Username != "" || t.cfg.Password != "" {
		auth = smtp.PlainAuth("", t.cfg.Username, t.cfg.Password, t.cfg.Host)
	}

	if t.cfg.UseSSL {
		return sendMailWithSSL(addr, auth, t.cfg.Host, from, recipients, payload)
	}
	if t.cfg.UseTLS {
		return sendMailWithStartTLS(addr, auth, t.cfg.Host, from, recipients, payload)
	}
	return sendMailPlain(addr, auth, from, recipients, payload)
}

func buildFromAddress(from, name string) string {
	if strings.TrimSpace(name) == "" {
		return from
	}
	encoded := mime.QEncoding.Encode("UTF-8", name)
	return (&mail.Address{Name: encoded, Address: from}).String()
}

// buildMIMEMessage 组装 multipart 报文：
// multipart/mixed 外层承载附件，multipart/alternative 内层承载纯文本与 HTML 正文
func buildMIMEMessage(from, fromName string, msg *models.EmailQueue) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(fmt.Sprintf("From: %s\r\n", buildFromAddress(from, fromName)))
	buf.WriteString(fmt.Sprintf("To: %s\r\n", strings.Join(msg.To, ", ")))
	if len(msg.Cc) > 0 {
		buf.WriteString(fmt.Sprintf("Cc: %s\r\n", strings.Join(msg.Cc, ", ")))
	}
	buf.WriteString(fmt.Sprintf("Subject: %s\r\n", mime.QEncoding.Encode("UTF-8", msg.Subject)))
	buf.WriteString("MIME-Version: 1.0\r\n")

	mixed := multipart.NewWriter(&buf)
	buf.WriteString(fmt.Sprintf("Content-Type: multipart/mixed; boundary=%q\r\n", mixed.Boundary()))
	buf.WriteString("\r\n")

	if err := writeBodyParts(mixed, msg); err != nil {
		return nil, err
	}
	for _, attachment := range msg.Attachments {
		if err := writeAttachmentPart(mixed, attachment); err != nil {
			return nil, err
		}
	}
	if err := mixed.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeBodyParts(mixed *multipart.Writer, msg *models.EmailQueue) error {
	var alt bytes.Buffer
	altWriter := multipart.NewWriter(&alt)

	if msg.TextContent != "" {
		header := textproto.MIMEHeader{}
		header.Set("Content-Type", "text/plain; charset=UTF-8")
		part, err := altWriter.CreatePart(header)
		if err != nil {
			return err
		}
		if _, err := part.Write([]byte(msg.TextContent)); err != nil {
			return err
		}
	}
	if msg.HTML != "" {
		header := textproto.MIMEHeader{}
		header.Set("Content-Type", "text/html; charset=UTF-8")
		part, err := altWriter.CreatePart(header)
		if err != nil {
			return err
		}
		if _, err := part.Write([]byte(msg.HTML)); err != nil {
			return err
		}
	}
	if err := altWriter.Close(); err != nil {
		return err
	}

	header := textproto.MIMEHeader{}
	header.Set("Content-Type", fmt.Sprintf("multipart/alternative; boundary=%q", altWriter.Boundary()))
	part, err := mixed.CreatePart(header)
	if err != nil {
		return err
	}
	_, err = part.Write(alt.Bytes())
	return err
}

func writeAttachmentPart(mixed *multipart.Writer, attachment models.EmailAttachment) error {
	data, err := os.ReadFile(attachment.Filepath)
	if err != nil {
		return fmt.Errorf("read attachment %s: %w", attachment.Filepath, err)
	}
	filename := attachment.Filename
	if filename == "" {
		filename = filepath.Base(attachment.Filepath)
	}

	header := textproto.MIMEHeader{}
	header.Set("Content-Type", "application/octet-stream")
	header.Set("Content-Transfer-Encoding", "base64")
	header.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	part, err := mixed.CreatePart(header)
	if err != nil {
		return err
	}

	encoded := base64.StdEncoding.EncodeToString(data)
	// base64 正文按 76 列折行
	for len(encoded) > 0 {
		n := 76
		if n > len(encoded) {
			n = len(encoded)
		}
		if _, err := part.Write([]byte(encoded[:n])); err != nil {
			return err
		}
		if _, err := part.Write([]byte("\r\n")); err != nil {
			return err
		}
		encoded = encoded[n:]
	}
	return nil
}

func sendMailWithSSL(addr string, auth smtp.Auth, host, from string, to []string, msg []byte) error {
	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: host})
	if err != nil {
		return err
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, host)
	if err != nil {
		return err
	}
	defer client.Close()

	if auth != nil {
		if ok, _ := client.Extension("AUTH"); ok {
			if err := client.Auth(auth); err != nil {
				return err
			}
		}
	}

	return sendSMTPData(client, from, to, msg)
}

func sendMailWithStartTLS(addr string, auth smtp.Auth, host, from string, to []string, msg []byte) error {
	client, err := smtp.Dial(addr)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.StartTLS(&tls.Config{ServerName: host}); err != nil {
		return err
	}

	if auth != nil {
		if ok, _ := client.Extension("AUTH"); ok {
			if err := client.Auth(auth); err != nil {
				return err
			}
		}
	}

	return sendSMTPData(client, from, to, msg)
}

func sendMailPlain(addr string, auth smtp.Auth, from string, to []string, msg []byte) error {
	client, err := smtp.Dial(addr)
	if err != nil {
		return err
	}
	defer client.Close()

	if auth != nil {
		if ok, _ := client.Extension("AUTH"); ok {
			if err := client.Auth(auth); err != nil {
				return err
			}
		}
	}

	return sendSMTPData(client, from, to, msg)
}

func sendSMTPData(client *smtp.Client, from string, to []string, msg []byte) error {
	if err := client.Mail(from); err != nil {
		return err
	}
	for _, rcpt := range to {
		if err := client.Rcpt(rcpt); err != nil {
			return err
		}
	}
	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return client.Quit()
}
