package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/accountd/internal/cache"
	"github.com/accountd/internal/config"
	"github.com/accountd/internal/constants"
)

// VerifyCodeService 一次性验证码服务。
// 同一（邮箱，用途）键上的新码覆盖旧码，校验命中即消费。
type VerifyCodeService struct {
	cfg   *config.VerifyCodeConfig
	store cache.CodeStore
}

// NewVerifyCodeService 创建验证码服务
func NewVerifyCodeService(cfg *config.VerifyCodeConfig, store cache.CodeStore) *VerifyCodeService {
	return &VerifyCodeService{cfg: cfg, store: store}
}

// Create 生成并存储一个新验证码，返回码值
func (s *VerifyCodeService) Create(ctx context.Context, subject, purpose string) (string, error) {
	if !isVerifyPurposeSupported(purpose) {
		return "", ErrInvalidVerifyPurpose
	}
	code, err := randomNumericCode(s.resolveCodeLength())
	if err != nil {
		return "", err
	}
	if err := s.store.Put(ctx, subject, strings.ToLower(purpose), code, s.resolveTTL()); err != nil {
		return "", fmt.Errorf("store verify code: %w", err)
	}
	return code, nil
}

// Validate 校验并消费验证码。码值不匹配、过期或已消费均返回 false
func (s *VerifyCodeService) Validate(ctx context.Context, subject, purpose, candidate string) (bool, error) {
	if !isVerifyPurposeSupported(purpose) {
		return false, ErrInvalidVerifyPurpose
	}
	if candidate == "" {
		return false, nil
	}
	ok, err := s.store.Consume(ctx, subject, strings.ToLower(purpose), candidate)
	if err != nil {
		return false, fmt.Errorf("consume verify code: %w", err)
	}
	return ok, nil
}

func (s *VerifyCodeService) resolveTTL() time.Duration {
	minutes := 0
	if s.cfg != nil {
		minutes = s.cfg.TTLMinutes
	}
	if minutes <= 0 {
		minutes = constants.DefaultCodeTTLMinutes
	}
	return time.Duration(minutes) * time.Minute
}

func (s *VerifyCodeService) resolveCodeLength() int {
	length := 0
	if s.cfg != nil {
		length = s.cfg.Length
	}
	if length < 4 || length > 10 {
		return constants.DefaultCodeLength
	}
	return length
}

func isVerifyPurposeSupported(purpose string) bool {
	switch strings.ToLower(strings.TrimSpace(purpose)) {
	case constants.CodePurposeActivate, constants.CodePurposeResetPassword:
		return true
	default:
		return false
	}
}

func randomNumericCode(length int) (string, error) {
	var b strings.Builder
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		b.WriteString(fmt.Sprintf("%d", n.Int64()))
	}
	return b.String(), nil
}
