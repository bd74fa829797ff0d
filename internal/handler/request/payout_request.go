package request

import "github.com/shopspring/decimal"

// CreatePayoutRequest 发起一笔 A2U 付款
type CreatePayoutRequest struct {
	UID      string                 `json:"uid" binding:"required"`
	Amount   decimal.Decimal        `json:"amount" binding:"required"`
	Memo     string                 `json:"memo" binding:"required"`
	Metadata map[string]interface{} `json:"metadata"`
}
