package public

import (
	"errors"

	handlershared "github.com/accountd/internal/http/handlers/shared"
	"github.com/accountd/internal/http/response"
	"github.com/accountd/internal/service"

	"github.com/gin-gonic/gin"
)

func respondError(c *gin.Context, code int, msg string, err error) {
	handlershared.RespondError(c, code, msg, err)
}

// mappedHandlerError 定义业务错误到接口错误响应的映射关系。
type mappedHandlerError struct {
	target error
	code   int
	msg    string
}

func respondWithMappedError(c *gin.Context, err error, rules []mappedHandlerError, fallbackCode int, fallbackMsg string) {
	for _, rule := range rules {
		if errors.Is(err, rule.target) {
			respondError(c, rule.code, rule.msg, nil)
			return
		}
	}
	respondError(c, fallbackCode, fallbackMsg, err)
}

var accountInputErrorRules = []mappedHandlerError{
	{target: service.ErrInvalidEmail, code: response.CodeBadRequest, msg: "invalid email address"},
	{target: service.ErrWeakPassword, code: response.CodeBadRequest, msg: "password must be at least 8 characters"},
	{target: service.ErrCaptchaInvalid, code: response.CodeBadRequest, msg: "captcha invalid"},
}

var verifyCodeErrorRules = []mappedHandlerError{
	{target: service.ErrVerifyCodeInvalid, code: response.CodeBadRequest, msg: "verification code invalid or expired"},
	{target: service.ErrInvalidVerifyPurpose, code: response.CodeBadRequest, msg: "unsupported verify purpose"},
	{target: service.ErrNotFound, code: response.CodeNotFound, msg: "account not found"},
}

var authenticateErrorRules = []mappedHandlerError{
	{target: service.ErrInvalidCredentials, code: response.CodeUnauthorized, msg: "invalid email or password"},
	{target: service.ErrUserNotActivated, code: response.CodeUnauthorized, msg: "account not activated"},
	{target: service.ErrUserDisabled, code: response.CodeUnauthorized, msg: "account disabled"},
}

var activationErrorRules = concatMappedHandlerErrors(accountInputErrorRules, verifyCodeErrorRules)
var loginErrorRules = concatMappedHandlerErrors(accountInputErrorRules, authenticateErrorRules)

func concatMappedHandlerErrors(groups ...[]mappedHandlerError) []mappedHandlerError {
	total := 0
	for _, group := range groups {
		total += len(group)
	}
	result := make([]mappedHandlerError, 0, total)
	for _, group := range groups {
		result = append(result, group...)
	}
	return result
}
