package public

import (
	"github.com/accountd/internal/http/response"

	"github.com/gin-gonic/gin"
)

// CaptchaPayloadRequest 图片验证码载荷
type CaptchaPayloadRequest struct {
	CaptchaID   string `json:"captcha_id"`
	CaptchaCode string `json:"captcha_code"`
}

// CreateAccountRequest 注册请求
type CreateAccountRequest struct {
	Email          string                `json:"email" binding:"required"`
	FullName       string                `json:"full_name" binding:"required"`
	Password       string                `json:"password" binding:"required"`
	CaptchaPayload CaptchaPayloadRequest `json:"captcha_payload"`
}

// CreateAccount 创建账号并发送激活邮件。
// 无论邮箱是否已注册都返回成功，避免账号枚举。
func (h *Handler) CreateAccount(c *gin.Context) {
	var req CreateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}

	if h.CaptchaService != nil {
		if err := h.CaptchaService.Verify(req.CaptchaPayload.CaptchaID, req.CaptchaPayload.CaptchaCode); err != nil {
			respondWithMappedError(c, err, accountInputErrorRules, response.CodeInternal, "captcha verify failed")
			return
		}
	}

	if err := h.AccountService.CreateAccount(c.Request.Context(), req.Email, req.FullName, req.Password); err != nil {
		respondWithMappedError(c, err, accountInputErrorRules, response.CodeInternal, "create account failed")
		return
	}
	response.SuccessWithMsg(c, "account created, check your mailbox for the activation code", nil)
}

// ActivateAccountRequest 激活请求
type ActivateAccountRequest struct {
	Email string `json:"email" binding:"required"`
	Code  string `json:"code" binding:"required"`
}

// ActivateAccount 使用验证码激活账号
func (h *Handler) ActivateAccount(c *gin.Context) {
	var req ActivateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}

	if err := h.AccountService.ActivateAccount(c.Request.Context(), req.Email, req.Code); err != nil {
		respondWithMappedError(c, err, activationErrorRules, response.CodeInternal, "activate account failed")
		return
	}
	response.SuccessWithMsg(c, "account activated", nil)
}

// AuthenticateRequest 登录请求
type AuthenticateRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Authenticate 登录并签发 JWT
func (h *Handler) Authenticate(c *gin.Context) {
	var req AuthenticateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}

	user, token, expiresAt, err := h.AccountService.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondWithMappedError(c, err, loginErrorRules, response.CodeInternal, "authenticate failed")
		return
	}

	response.Success(c, gin.H{
		"token":      token,
		"expires_at": expiresAt.Unix(),
		"user": gin.H{
			"id":        user.ID,
			"email":     user.Email,
			"full_name": user.FullName,
		},
	})
}

// RequestPasswordResetRequest 密码重置请求
type RequestPasswordResetRequest struct {
	Email          string                `json:"email" binding:"required"`
	CaptchaPayload CaptchaPayloadRequest `json:"captcha_payload"`
}

// RequestPasswordReset 发起密码重置。
// 无论邮箱是否存在都返回成功，避免账号枚举。
func (h *Handler) RequestPasswordReset(c *gin.Context) {
	var req RequestPasswordResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}

	if h.CaptchaService != nil {
		if err := h.CaptchaService.Verify(req.CaptchaPayload.CaptchaID, req.CaptchaPayload.CaptchaCode); err != nil {
			respondWithMappedError(c, err, accountInputErrorRules, response.CodeInternal, "captcha verify failed")
			return
		}
	}

	if err := h.AccountService.RequestPasswordReset(c.Request.Context(), req.Email); err != nil {
		respondWithMappedError(c, err, accountInputErrorRules, response.CodeInternal, "request password reset failed")
		return
	}
	response.SuccessWithMsg(c, "if the account exists, a reset code has been sent", nil)
}

// UpdatePasswordRequest 设置新密码请求
type UpdatePasswordRequest struct {
	Email       string `json:"email" binding:"required"`
	Code        string `json:"code" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

// UpdatePassword 使用重置验证码设置新密码
func (h *Handler) UpdatePassword(c *gin.Context) {
	var req UpdatePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}

	if err := h.AccountService.UpdatePassword(c.Request.Context(), req.Email, req.Code, req.NewPassword); err != nil {
		respondWithMappedError(c, err, activationErrorRules, response.CodeInternal, "update password failed")
		return
	}
	response.SuccessWithMsg(c, "password updated", nil)
}

// Whoami 返回当前登录用户
func (h *Handler) Whoami(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}

	user, err := h.AccountService.GetUserByID(userID)
	if err != nil {
		respondWithMappedError(c, err, verifyCodeErrorRules, response.CodeInternal, "load user failed")
		return
	}
	response.Success(c, gin.H{
		"id":           user.ID,
		"email":        user.Email,
		"full_name":    user.FullName,
		"status":       user.Status,
		"activated_at": user.ActivatedAt,
		"created_at":   user.CreatedAt,
	})
}

// Health 健康检查
func (h *Handler) Health(c *gin.Context) {
	response.Success(c, gin.H{"status": "ok"})
}
