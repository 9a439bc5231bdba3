package mailer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/accountd/internal/constants"
	"github.com/accountd/internal/models"
	"github.com/accountd/internal/repository"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

// stubTransport 按消息 ID 依次回放预置结果
type stubTransport struct {
	mu      sync.Mutex
	scripts map[uint][]error
	calls   map[uint]int
	panics  map[uint]bool
}

func newStubTransport() *stubTransport {
	return &stubTransport{
		scripts: make(map[uint][]error),
		calls:   make(map[uint]int),
		panics:  make(map[uint]bool),
	}
}

func (t *stubTransport) Send(msg *models.EmailQueue) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls[msg.ID]++
	if t.panics[msg.ID] {
		panic("transport exploded")
	}
	script := t.scripts[msg.ID]
	if len(script) == 0 {
		return nil
	}
	result := script[0]
	t.scripts[msg.ID] = script[1:]
	return result
}

func (t *stubTransport) callCount(id uint) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls[id]
}

func setupDispatcherTest(t *testing.T) (*Dispatcher, *stubTransport, repository.EmailQueueRepository, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:dispatcher_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(&models.EmailQueue{}); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	repo := repository.NewEmailQueueRepository(db)
	transport := newStubTransport()
	dispatcher := NewDispatcher(repo, transport, 50, 5*time.Minute)
	return dispatcher, transport, repo, db
}

func enqueueTestMessage(t *testing.T, repo repository.EmailQueueRepository) *models.EmailQueue {
	t.Helper()
	msg := &models.EmailQueue{
		From:              "noreply@example.com",
		To:                models.StringArray{"user@example.com"},
		Subject:           "Account Activation Email",
		TextContent:       "Your account activation code is: 123456",
		Status:            constants.EmailStatusInQueue,
		AttemptsRemaining: constants.DefaultRetryBudget,
	}
	if err := repo.Create(msg); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	return msg
}

func TestDispatcherSweepEmptyQueueIsNoOp(t *testing.T) {
	dispatcher, transport, _, _ := setupDispatcherTest(t)

	if err := dispatcher.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if len(transport.calls) != 0 {
		t.Fatalf("empty sweep must not touch the transport")
	}
}

func TestDispatcherSweepDeliversAndMarksSent(t *testing.T) {
	dispatcher, transport, repo, _ := setupDispatcherTest(t)
	msg := enqueueTestMessage(t, repo)

	if err := dispatcher.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}

	got, err := repo.GetByID(msg.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Status != constants.EmailStatusSent {
		t.Fatalf("status want sent got %s", got.Status)
	}
	if got.AttemptsRemaining != constants.DefaultRetryBudget {
		t.Fatalf("success must not consume budget, got %d", got.AttemptsRemaining)
	}
	if got.StatusDescription == "" {
		t.Fatalf("sent row should carry a delivery note")
	}
	if transport.callCount(msg.ID) != 1 {
		t.Fatalf("transport calls want 1 got %d", transport.callCount(msg.ID))
	}
}

func TestDispatcherRetriesUntilSuccess(t *testing.T) {
	dispatcher, transport, repo, _ := setupDispatcherTest(t)
	msg := enqueueTestMessage(t, repo)
	transport.scripts[msg.ID] = []error{
		errors.New("connection refused"),
		errors.New("451 temporary failure"),
		nil,
	}

	// 第一轮：失败，预算 3 -> 2
	if err := dispatcher.Sweep(context.Background()); err != nil {
		t.Fatalf("sweep 1 failed: %v", err)
	}
	got, _ := repo.GetByID(msg.ID)
	if got.Status != constants.EmailStatusFailed || got.AttemptsRemaining != 2 {
		t.Fatalf("after sweep 1 want failed/2 got %s/%d", got.Status, got.AttemptsRemaining)
	}
	if got.StatusDescription != "connection refused" {
		t.Fatalf("diagnostic want %q got %q", "connection refused", got.StatusDescription)
	}

	// 第二轮：失败，预算 2 -> 1
	if err := dispatcher.Sweep(context.Background()); err != nil {
		t.Fatalf("sweep 2 failed: %v", err)
	}
	got, _ = repo.GetByID(msg.ID)
	if got.Status != constants.EmailStatusFailed || got.AttemptsRemaining != 1 {
		t.Fatalf("after sweep 2 want failed/1 got %s/%d", got.Status, got.AttemptsRemaining)
	}

	// 第三轮：成功，预算不再扣减
	if err := dispatcher.Sweep(context.Background()); err != nil {
		t.Fatalf("sweep 3 failed: %v", err)
	}
	got, _ = repo.GetByID(msg.ID)
	if got.Status != constants.EmailStatusSent || got.AttemptsRemaining != 1 {
		t.Fatalf("after sweep 3 want sent/1 got %s/%d", got.Status, got.AttemptsRemaining)
	}

	// 终态后不再被扫描
	if err := dispatcher.Sweep(context.Background()); err != nil {
		t.Fatalf("sweep 4 failed: %v", err)
	}
	if transport.callCount(msg.ID) != 3 {
		t.Fatalf("transport calls want 3 got %d", transport.callCount(msg.ID))
	}
}

func TestDispatcherFreezesRowAfterBudgetExhausted(t *testing.T) {
	dispatcher, transport, repo, _ := setupDispatcherTest(t)
	msg := enqueueTestMessage(t, repo)
	transport.scripts[msg.ID] = []error{
		errors.New("hard bounce"),
		errors.New("hard bounce"),
		errors.New("hard bounce"),
	}

	for i := 0; i < 5; i++ {
		if err := dispatcher.Sweep(context.Background()); err != nil {
			t.Fatalf("sweep %d failed: %v", i+1, err)
		}
	}

	got, err := repo.GetByID(msg.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Status != constants.EmailStatusFailed {
		t.Fatalf("status want failed got %s", got.Status)
	}
	if got.AttemptsRemaining != 0 {
		t.Fatalf("attempts want 0 got %d", got.AttemptsRemaining)
	}
	if transport.callCount(msg.ID) != constants.DefaultRetryBudget {
		t.Fatalf("transport calls want %d got %d", constants.DefaultRetryBudget, transport.callCount(msg.ID))
	}
}

func TestDispatcherRecoversTransportPanic(t *testing.T) {
	dispatcher, transport, repo, _ := setupDispatcherTest(t)
	msg := enqueueTestMessage(t, repo)
	healthy := enqueueTestMessage(t, repo)
	transport.panics[msg.ID] = true

	if err := dispatcher.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep must survive a panicking transport: %v", err)
	}

	got, _ := repo.GetByID(msg.ID)
	if got.Status != constants.EmailStatusFailed {
		t.Fatalf("panicking row want failed got %s", got.Status)
	}
	if got.AttemptsRemaining != constants.DefaultRetryBudget-1 {
		t.Fatalf("panic must consume one attempt, got %d", got.AttemptsRemaining)
	}

	// 同批其他行不受影响
	other, _ := repo.GetByID(healthy.ID)
	if other.Status != constants.EmailStatusSent {
		t.Fatalf("healthy row want sent got %s", other.Status)
	}
}

func TestDispatcherReclaimsStalledInProgressRow(t *testing.T) {
	dispatcher, transport, repo, db := setupDispatcherTest(t)
	msg := enqueueTestMessage(t, repo)

	stale := time.Now().UTC().Add(-10 * time.Minute)
	if err := db.Model(&models.EmailQueue{}).Where("id = ?", msg.ID).
		UpdateColumns(map[string]interface{}{
			"status":     constants.EmailStatusInProgress,
			"updated_at": stale,
		}).Error; err != nil {
		t.Fatalf("set stale in_progress failed: %v", err)
	}

	if err := dispatcher.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}

	got, _ := repo.GetByID(msg.ID)
	if got.Status != constants.EmailStatusSent {
		t.Fatalf("stalled row should be reclaimed and delivered, got %s", got.Status)
	}
	if transport.callCount(msg.ID) != 1 {
		t.Fatalf("transport calls want 1 got %d", transport.callCount(msg.ID))
	}
}

func TestDispatcherSkipsFreshInProgressRow(t *testing.T) {
	dispatcher, transport, repo, db := setupDispatcherTest(t)
	msg := enqueueTestMessage(t, repo)

	if err := db.Model(&models.EmailQueue{}).Where("id = ?", msg.ID).
		UpdateColumn("status", constants.EmailStatusInProgress).Error; err != nil {
		t.Fatalf("set in_progress failed: %v", err)
	}

	if err := dispatcher.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if transport.callCount(msg.ID) != 0 {
		t.Fatalf("fresh in_progress row must not be re-attempted")
	}
}

func TestDispatcherDeletesAttachmentsOnSuccess(t *testing.T) {
	dispatcher, _, repo, _ := setupDispatcherTest(t)

	dir := t.TempDir()
	keepPath := filepath.Join(dir, "keep.pdf")
	dropPath := filepath.Join(dir, "drop.pdf")
	for _, p := range []string{keepPath, dropPath} {
		if err := os.WriteFile(p, []byte("attachment"), 0o600); err != nil {
			t.Fatalf("write attachment failed: %v", err)
		}
	}

	msg := &models.EmailQueue{
		From:        "noreply@example.com",
		To:          models.StringArray{"user@example.com"},
		Subject:     "Invoice",
		TextContent: "see attachments",
		Attachments: models.AttachmentArray{
			{Filename: "keep.pdf", Filepath: keepPath, DeleteOnSuccess: false},
			{Filename: "drop.pdf", Filepath: dropPath, DeleteOnSuccess: true},
		},
		Status:            constants.EmailStatusInQueue,
		AttemptsRemaining: constants.DefaultRetryBudget,
	}
	if err := repo.Create(msg); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}

	if err := dispatcher.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}

	if _, err := os.Stat(keepPath); err != nil {
		t.Fatalf("keep.pdf must survive delivery: %v", err)
	}
	if _, err := os.Stat(dropPath); !os.IsNotExist(err) {
		t.Fatalf("drop.pdf must be removed after delivery")
	}
}

func TestDispatcherSweepHonorsBatchSize(t *testing.T) {
	_, transport, repo, _ := setupDispatcherTest(t)
	dispatcher := NewDispatcher(repo, transport, 2, 5*time.Minute)

	for i := 0; i < 5; i++ {
		enqueueTestMessage(t, repo)
	}

	if err := dispatcher.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}

	total := 0
	for _, n := range transport.calls {
		total += n
	}
	if total != 2 {
		t.Fatalf("batch-limited sweep want 2 attempts got %d", total)
	}
}
