package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Payout 生命周期状态。
// 本地记录只是平台状态的镜像: created -> submitted -> completed 单向推进，
// cancelled / failed 是吸收态。
const (
	StatusCreated   = "created"
	StatusSubmitted = "submitted"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
	StatusFailed    = "failed"
)

// Payout A2U 付款记录表
// 主键是平台分配的 payment identifier，天然幂等
type Payout struct {
	PaymentID    string          `gorm:"primaryKey;type:varchar(64)" json:"payment_id"`
	RecipientUID string          `gorm:"type:varchar(64);not null;index" json:"recipient_uid"`
	Amount       decimal.Decimal `gorm:"type:decimal(32,18);not null" json:"amount"`
	Memo         string          `gorm:"type:varchar(255)" json:"memo"`
	TxID         string          `gorm:"type:varchar(255)" json:"txid"` // submit 成功后才有值
	Status       string          `gorm:"type:varchar(20);not null;index" json:"status"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

func (Payout) TableName() string {
	return "payouts"
}

// Terminal 是否已到终态
func (p *Payout) Terminal() bool {
	return p.Status == StatusCompleted || p.Status == StatusCancelled || p.Status == StatusFailed
}
