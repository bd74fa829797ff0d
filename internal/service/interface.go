package service

import (
	"context"

	"payout-core/internal/model"
	"payout-core/internal/platform"
)

// Gateway Pi 平台上用到的五个操作 (由 platform.Client 实现)
type Gateway interface {
	CreatePayment(ctx context.Context, args platform.CreatePaymentArgs) (*platform.Payment, error)
	GetPayment(ctx context.Context, paymentID string) (*platform.Payment, error)
	CompletePayment(ctx context.Context, paymentID, txid string) (*platform.Payment, error)
	CancelPayment(ctx context.Context, paymentID string) (*platform.Payment, error)
	IncompletePayments(ctx context.Context) ([]*platform.Payment, error)
}

// TxSubmitter 链上转账 (由 chain.Builder 实现)
type TxSubmitter interface {
	// SubmitPayment 为指定平台支付签名并广播链上转账，返回 txid
	SubmitPayment(ctx context.Context, paymentID string) (string, error)
}

// StatusLedger 本地付款状态表
type StatusLedger interface {
	// Upsert 按 payment_id 插入或更新
	Upsert(ctx context.Context, payout *model.Payout) error
	Get(ctx context.Context, paymentID string) (*model.Payout, error)
	// List uid 为空时返回全部，按创建时间倒序
	List(ctx context.Context, uid string, limit int) ([]model.Payout, error)
}
