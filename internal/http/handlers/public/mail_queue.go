package public

import (
	"strconv"

	handlershared "github.com/accountd/internal/http/handlers/shared"
	"github.com/accountd/internal/http/response"

	"github.com/gin-gonic/gin"
)

// ListMailQueue 查询出站邮件队列（登录态，运维用途）
func (h *Handler) ListMailQueue(c *gin.Context) {
	if _, ok := getUserID(c); !ok {
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = handlershared.NormalizePagination(page, pageSize)

	rows, total, err := h.OutboundEmailService.ListByStatus(c.Query("status"), page, pageSize)
	if err != nil {
		respondError(c, response.CodeInternal, "list mail queue failed", err)
		return
	}

	totalPage := int64(0)
	if pageSize > 0 {
		totalPage = (total + int64(pageSize) - 1) / int64(pageSize)
	}
	response.SuccessWithPage(c, rows, response.Pagination{
		Page:      page,
		PageSize:  pageSize,
		Total:     total,
		TotalPage: totalPage,
	})
}
