package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/accountd/internal/cache"
	"github.com/accountd/internal/config"
	"github.com/accountd/internal/constants"
	"github.com/accountd/internal/logger"
	"github.com/accountd/internal/models"
	"github.com/accountd/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 8

// AccountService 账号服务：注册、激活、认证与密码重置
type AccountService struct {
	cfg          *config.Config
	userRepo     repository.UserRepository
	codeService  *VerifyCodeService
	emailService *OutboundEmailService
}

// NewAccountService 创建账号服务
func NewAccountService(cfg *config.Config, userRepo repository.UserRepository, codeService *VerifyCodeService, emailService *OutboundEmailService) *AccountService {
	return &AccountService{
		cfg:          cfg,
		userRepo:     userRepo,
		codeService:  codeService,
		emailService: emailService,
	}
}

// UserJWTClaims 用户 JWT 声明
type UserJWTClaims struct {
	UserID       uint   `json:"user_id"`
	Email        string `json:"email"`
	TokenVersion uint64 `json:"token_version"`
	jwt.RegisteredClaims
}

// CreateAccount 创建账号并发送激活邮件。
// 邮箱已注册时静默成功，响应不暴露账号是否存在。
func (s *AccountService) CreateAccount(ctx context.Context, email, fullName, password string) error {
	normalized, err := normalizeEmail(email)
	if err != nil {
		return err
	}
	if err := validatePassword(password); err != nil {
		return err
	}

	exist, err := s.userRepo.GetByEmail(normalized)
	if err != nil {
		return err
	}
	if exist != nil {
		logger.Infow("create_account_duplicate_suppressed", "user_id", exist.ID)
		return nil
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	now := time.Now()
	user := &models.User{
		Email:        normalized,
		FullName:     strings.TrimSpace(fullName),
		PasswordHash: string(hashedPassword),
		Status:       constants.UserStatusDisabled,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.userRepo.Create(user); err != nil {
		return err
	}

	code, err := s.codeService.Create(ctx, normalized, constants.CodePurposeActivate)
	if err != nil {
		return err
	}
	if _, err := s.emailService.EnqueueActivationEmail(normalized, user.FullName, code); err != nil {
		return err
	}
	logger.Infow("account_created", "user_id", user.ID)
	return nil
}

// ActivateAccount 使用验证码激活账号
func (s *AccountService) ActivateAccount(ctx context.Context, email, code string) error {
	normalized, err := normalizeEmail(email)
	if err != nil {
		return err
	}

	ok, err := s.codeService.Validate(ctx, normalized, constants.CodePurposeActivate, code)
	if err != nil {
		return err
	}
	if !ok {
		return ErrVerifyCodeInvalid
	}

	user, err := s.userRepo.GetByEmail(normalized)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrNotFound
	}

	now := time.Now()
	user.Status = constants.UserStatusActive
	user.ActivatedAt = &now
	user.UpdatedAt = now
	if err := s.userRepo.Update(user); err != nil {
		return err
	}
	_ = cache.SetUserAuthState(ctx, cache.BuildUserAuthState(user))
	logger.Infow("account_activated", "user_id", user.ID)
	return nil
}

// RequestPasswordReset 发起密码重置，发送重置验证码。
// 邮箱未注册时静默成功，响应不暴露账号是否存在。
func (s *AccountService) RequestPasswordReset(ctx context.Context, email string) error {
	normalized, err := normalizeEmail(email)
	if err != nil {
		return err
	}

	user, err := s.userRepo.GetByEmail(normalized)
	if err != nil {
		return err
	}
	if user == nil {
		logger.Infow("password_reset_unknown_email_suppressed")
		return nil
	}

	code, err := s.codeService.Create(ctx, normalized, constants.CodePurposeResetPassword)
	if err != nil {
		return err
	}
	if _, err := s.emailService.EnqueuePasswordResetEmail(normalized, user.FullName, code); err != nil {
		return err
	}
	logger.Infow("password_reset_requested", "user_id", user.ID)
	return nil
}

// UpdatePassword 使用重置验证码设置新密码，并使已签发的 Token 全部失效
func (s *AccountService) UpdatePassword(ctx context.Context, email, code, newPassword string) error {
	normalized, err := normalizeEmail(email)
	if err != nil {
		return err
	}
	if err := validatePassword(newPassword); err != nil {
		return err
	}

	ok, err := s.codeService.Validate(ctx, normalized, constants.CodePurposeResetPassword, code)
	if err != nil {
		return err
	}
	if !ok {
		return ErrVerifyCodeInvalid
	}

	user, err := s.userRepo.GetByEmail(normalized)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrNotFound
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	user.PasswordHash = string(hashedPassword)
	user.TokenVersion++
	user.UpdatedAt = time.Now()
	if err := s.userRepo.Update(user); err != nil {
		return err
	}
	_ = cache.SetUserAuthState(ctx, cache.BuildUserAuthState(user))
	logger.Infow("password_updated", "user_id", user.ID)
	return nil
}

// Authenticate 校验凭据并签发 JWT
func (s *AccountService) Authenticate(ctx context.Context, email, password string) (*models.User, string, time.Time, error) {
	normalized, err := normalizeEmail(email)
	if err != nil {
		return nil, "", time.Time{}, err
	}
	user, err := s.userRepo.GetByEmail(normalized)
	if err != nil {
		return nil, "", time.Time{}, err
	}
	if user == nil {
		return nil, "", time.Time{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, "", time.Time{}, ErrInvalidCredentials
	}
	if !user.IsActive() {
		return nil, "", time.Time{}, ErrUserNotActivated
	}

	token, expiresAt, err := s.GenerateUserJWT(user)
	if err != nil {
		return nil, "", time.Time{}, err
	}

	now := time.Now()
	user.LastLoginAt = &now
	if err := s.userRepo.Update(user); err != nil {
		return nil, "", time.Time{}, err
	}
	_ = cache.SetUserAuthState(ctx, cache.BuildUserAuthState(user))

	return user, token, expiresAt, nil
}

// GetUserByID 获取用户信息
func (s *AccountService) GetUserByID(id uint) (*models.User, error) {
	if id == 0 {
		return nil, ErrNotFound
	}
	user, err := s.userRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrNotFound
	}
	return user, nil
}

// GenerateUserJWT 生成用户 JWT Token
func (s *AccountService) GenerateUserJWT(user *models.User) (string, time.Time, error) {
	expireHours := s.cfg.JWT.ExpireHours
	if expireHours <= 0 {
		expireHours = 2
	}
	expiresAt := time.Now().Add(time.Duration(expireHours) * time.Hour)
	claims := UserJWTClaims{
		UserID:       user.ID,
		Email:        user.Email,
		TokenVersion: user.TokenVersion,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.cfg.JWT.SecretKey))
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expiresAt, nil
}

// ParseUserJWT 解析用户 JWT Token
func (s *AccountService) ParseUserJWT(tokenString string) (*UserJWTClaims, error) {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	claims := &UserJWTClaims{}
	token, err := parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(s.cfg.JWT.SecretKey), nil
	})
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(*UserJWTClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, errors.New("invalid token")
}

func validatePassword(password string) error {
	if len(password) < minPasswordLength {
		return ErrWeakPassword
	}
	return nil
}

func normalizeEmail(email string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(email))
	if normalized == "" {
		return "", ErrInvalidEmail
	}
	if _, err := mail.ParseAddress(normalized); err != nil {
		return "", ErrInvalidEmail
	}
	return normalized, nil
}

// NormalizeEmail 统一邮箱格式
func NormalizeEmail(email string) (string, error) {
	return normalizeEmail(email)
}
