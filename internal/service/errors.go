package service

import "errors"

// 业务错误哨兵，handler 层通过 errors.Is 映射为响应码
var (
	ErrNotFound             = errors.New("record not found")
	ErrInvalidEmail         = errors.New("invalid email address")
	ErrInvalidCredentials   = errors.New("invalid email or password")
	ErrUserNotActivated     = errors.New("account not activated")
	ErrUserDisabled         = errors.New("account disabled")
	ErrVerifyCodeInvalid    = errors.New("verify code invalid")
	ErrInvalidVerifyPurpose = errors.New("unsupported verify purpose")
	ErrWeakPassword         = errors.New("password too weak")
	ErrMissingRecipient     = errors.New("message requires at least one recipient")
	ErrMissingSubject       = errors.New("message requires a subject")
	ErrMissingBody          = errors.New("message requires a text or html body")
	ErrCaptchaInvalid       = errors.New("captcha invalid")
)
