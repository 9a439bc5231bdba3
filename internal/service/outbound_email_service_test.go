package service

import (
	"fmt"
	"testing"
	"time"

	"github.com/accountd/internal/config"
	"github.com/accountd/internal/constants"
	"github.com/accountd/internal/models"
	"github.com/accountd/internal/repository"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func setupOutboundEmailServiceTest(t *testing.T) (*OutboundEmailService, repository.EmailQueueRepository) {
	t.Helper()
	dsn := fmt.Sprintf("file:outbound_email_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(&models.EmailQueue{}); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	cfg := &config.Config{
		Email:  config.EmailConfig{From: "noreply@example.com"},
		Mailer: config.MailerConfig{RetryBudget: 3},
	}
	queueRepo := repository.NewEmailQueueRepository(db)
	return NewOutboundEmailService(cfg, queueRepo), queueRepo
}

func TestEnqueueValidatesMessageShape(t *testing.T) {
	svc, _ := setupOutboundEmailServiceTest(t)

	cases := []struct {
		name string
		msg  *models.EmailQueue
		want error
	}{
		{name: "nil message", msg: nil, want: ErrMissingRecipient},
		{
			name: "no recipients",
			msg:  &models.EmailQueue{Subject: "Hi", TextContent: "body"},
			want: ErrMissingRecipient,
		},
		{
			name: "no subject",
			msg:  &models.EmailQueue{To: models.StringArray{"a@example.com"}, TextContent: "body"},
			want: ErrMissingSubject,
		},
		{
			name: "no body",
			msg:  &models.EmailQueue{To: models.StringArray{"a@example.com"}, Subject: "Hi"},
			want: ErrMissingBody,
		},
	}
	for _, tc := range cases {
		if _, err := svc.Enqueue(tc.msg); err != tc.want {
			t.Fatalf("%s: want %v got %v", tc.name, tc.want, err)
		}
	}
}

func TestEnqueueAppliesDefaults(t *testing.T) {
	svc, queueRepo := setupOutboundEmailServiceTest(t)

	id, err := svc.Enqueue(&models.EmailQueue{
		To:      models.StringArray{"a@example.com"},
		Subject: "Hi",
		HTML:    "<p>hello</p>",
		// 故意传入脏状态，Enqueue 必须覆盖
		Status:            constants.EmailStatusSent,
		AttemptsRemaining: 99,
	})
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	got, err := queueRepo.GetByID(id)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Status != constants.EmailStatusInQueue {
		t.Fatalf("status want in_queue got %s", got.Status)
	}
	if got.AttemptsRemaining != 3 {
		t.Fatalf("attempts want 3 got %d", got.AttemptsRemaining)
	}
	if got.From != "noreply@example.com" {
		t.Fatalf("from fallback want config sender got %q", got.From)
	}
}

func TestEnqueueHTMLOnlyBodyIsAccepted(t *testing.T) {
	svc, _ := setupOutboundEmailServiceTest(t)
	if _, err := svc.Enqueue(&models.EmailQueue{
		To:      models.StringArray{"a@example.com"},
		Subject: "Hi",
		HTML:    "<p>hello</p>",
	}); err != nil {
		t.Fatalf("html-only body must be accepted: %v", err)
	}
}

func TestEnqueueActivationEmailContent(t *testing.T) {
	svc, queueRepo := setupOutboundEmailServiceTest(t)

	id, err := svc.EnqueueActivationEmail("alice@example.com", "Alice Doe", "123456")
	if err != nil {
		t.Fatalf("EnqueueActivationEmail failed: %v", err)
	}
	got, err := queueRepo.GetByID(id)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Subject != "Account Activation Email" {
		t.Fatalf("subject want %q got %q", "Account Activation Email", got.Subject)
	}
	wantHTML := "<h1>Welcome Alice Doe.</h1><br/><p>Your account activation code is: 123456</p>"
	if got.HTML != wantHTML {
		t.Fatalf("html want %q got %q", wantHTML, got.HTML)
	}
	if len(got.To) != 1 || got.To[0] != "alice@example.com" {
		t.Fatalf("to want alice@example.com got %v", got.To)
	}
}

func TestEnqueuePasswordResetEmailContent(t *testing.T) {
	svc, queueRepo := setupOutboundEmailServiceTest(t)

	id, err := svc.EnqueuePasswordResetEmail("alice@example.com", "Alice", "654321")
	if err != nil {
		t.Fatalf("EnqueuePasswordResetEmail failed: %v", err)
	}
	got, err := queueRepo.GetByID(id)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Subject != "Reset Password Email" {
		t.Fatalf("subject want %q got %q", "Reset Password Email", got.Subject)
	}
	if got.TextContent == "" || got.HTML == "" {
		t.Fatalf("reset email must carry both text and html bodies")
	}
}
