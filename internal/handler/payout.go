package handler

import (
	"strconv"

	"payout-core/internal/handler/request"
	"payout-core/internal/handler/response"
	"payout-core/internal/service"
	"payout-core/pkg/errno"

	"github.com/gin-gonic/gin"
)

type PayoutHandler struct {
	payouts *service.PayoutService
	ledger  service.StatusLedger
}

func NewPayoutHandler(payouts *service.PayoutService, ledger service.StatusLedger) *PayoutHandler {
	return &PayoutHandler{payouts: payouts, ledger: ledger}
}

// CreatePayout 发起一笔 A2U 付款
// @Summary 发起付款
// @Description 向指定用户发起一笔完整的 A2U 付款 (创建 -> 上链 -> 完成)
// @Tags Payout
// @Accept json
// @Produce json
// @Param request body request.CreatePayoutRequest true "Payout Request"
// @Success 200 {object} response.Response
// @Router /api/v1/payouts [post]
func (h *PayoutHandler) CreatePayout(c *gin.Context) {
	var req request.CreatePayoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errno.ErrBind)
		return
	}

	result, err := h.payouts.ExecutePayout(c.Request.Context(), &service.PayoutRequest{
		UID:      req.UID,
		Amount:   req.Amount,
		Memo:     req.Memo,
		Metadata: req.Metadata,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// GetPayout 查询单笔付款
// @Summary 查询付款
// @Tags Payout
// @Produce json
// @Param id path string true "Payment ID"
// @Success 200 {object} response.Response
// @Router /api/v1/payouts/{id} [get]
func (h *PayoutHandler) GetPayout(c *gin.Context) {
	payout, err := h.ledger.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, errno.ErrPayoutNotFound)
		return
	}
	response.Success(c, payout)
}

// ListPayouts 分页列出本地付款记录
// @Summary 付款列表
// @Tags Payout
// @Produce json
// @Param uid query string false "Filter by recipient uid"
// @Param limit query int false "Max rows (default 50)"
// @Success 200 {object} response.Response
// @Router /api/v1/payouts [get]
func (h *PayoutHandler) ListPayouts(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	payouts, err := h.ledger.List(c.Request.Context(), c.Query("uid"), limit)
	if err != nil {
		response.Error(c, errno.ErrDatabase)
		return
	}
	response.Success(c, gin.H{"payouts": payouts, "count": len(payouts)})
}

// MyPayouts 用户视角: 用 Pi 访问令牌换取 uid 后查自己的付款记录
// @Summary 我的付款
// @Tags Payout
// @Produce json
// @Param Authorization header string true "Bearer <pi access token>"
// @Success 200 {object} response.Response
// @Router /api/v1/me/payouts [get]
func (h *PayoutHandler) MyPayouts(c *gin.Context) {
	uid := c.GetString("uid")
	if uid == "" {
		response.Error(c, errno.ErrTokenInvalid)
		return
	}

	payouts, err := h.ledger.List(c.Request.Context(), uid, 50)
	if err != nil {
		response.Error(c, errno.ErrDatabase)
		return
	}
	response.Success(c, gin.H{"payouts": payouts, "count": len(payouts)})
}

// Reconcile 手动触发一次对账 (正常由定时任务驱动)
// @Summary 对账
// @Description 收尾平台上所有未终结的支付
// @Tags Payout
// @Produce json
// @Success 200 {object} response.Response
// @Router /api/v1/admin/reconcile [post]
func (h *PayoutHandler) Reconcile(c *gin.Context) {
	if err := h.payouts.ReconcileStale(c.Request.Context()); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"reconciled": true})
}
