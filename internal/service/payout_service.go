package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"payout-core/internal/chain"
	"payout-core/internal/model"
	"payout-core/internal/platform"
	"payout-core/pkg/errno"
	"payout-core/pkg/logger"
	"payout-core/pkg/monitor"
)

// memoMaxBytes MEMO_TEXT 的链上上限
const memoMaxBytes = 28

// payoutTimeout create 成功后走完上链+complete 的兜底时限
const payoutTimeout = 5 * time.Minute

// PayoutRequest 发起一笔 A2U 付款的入参
type PayoutRequest struct {
	UID      string
	Amount   decimal.Decimal
	Memo     string
	Metadata map[string]interface{}
}

// Validate 入参校验。不合法的请求在任何远程调用之前就被拒绝。
func (r *PayoutRequest) Validate(maxAmount decimal.Decimal) error {
	if strings.TrimSpace(r.UID) == "" {
		return errno.ErrInvalidPayoutRequest.WithMessage("recipient uid is required")
	}
	if r.Amount.Sign() <= 0 {
		return errno.ErrInvalidPayoutRequest.WithMessage("amount must be positive")
	}
	if r.Amount.GreaterThan(maxAmount) {
		return errno.ErrInvalidPayoutRequest.WithMessage(
			fmt.Sprintf("amount %s exceeds the configured cap %s", r.Amount, maxAmount))
	}
	if strings.TrimSpace(r.Memo) == "" {
		return errno.ErrInvalidPayoutRequest.WithMessage("memo is required")
	}
	if len(r.Memo) > memoMaxBytes {
		return errno.ErrInvalidPayoutRequest.WithMessage(
			fmt.Sprintf("memo exceeds the %d-byte ledger limit", memoMaxBytes))
	}
	return nil
}

// PayoutResult ExecutePayout 的返回
type PayoutResult struct {
	PaymentID string `json:"payment_id"`
	TxID      string `json:"txid"`
	Status    string `json:"status"`
}

// PayoutService A2U 付款编排器。
// 驱动 created -> submitted -> completed 状态机，失败时按步骤决定
// 取消还是留给对账任务收尾。
type PayoutService struct {
	gateway   Gateway
	chain     TxSubmitter
	ledger    StatusLedger
	maxAmount decimal.Decimal
}

func NewPayoutService(gateway Gateway, submitter TxSubmitter, ledger StatusLedger, maxAmount decimal.Decimal) *PayoutService {
	return &PayoutService{
		gateway:   gateway,
		chain:     submitter,
		ledger:    ledger,
		maxAmount: maxAmount,
	}
}

// ExecutePayout 执行一笔完整的 A2U 付款。
// 一旦 create 成功，流程会走到终态 (completed/cancelled) 或者把支付留给
// 对账任务，不会中途放弃出一个无人认领的平台支付。
func (s *PayoutService) ExecutePayout(ctx context.Context, req *PayoutRequest) (*PayoutResult, error) {
	if err := req.Validate(s.maxAmount); err != nil {
		return nil, err
	}

	// 预清理: 平台对每个应用只允许一笔在途支付，先尽力收掉历史残留。
	// 清理失败只记日志，不阻塞本次付款。
	if err := s.ReconcileStale(ctx); err != nil {
		logger.Warn("预清理失败，继续尝试创建支付", zap.Error(err))
	}

	payment, err := s.createPayment(ctx, req)
	if err != nil {
		monitor.IncPayoutFailed("create")
		return nil, fmt.Errorf("create: %w", err)
	}
	monitor.IncPayoutCreated()

	// create 成功后平台上已经有一笔挂账，调用方断开不能把流程掐在半路，
	// 否则支付一直占着在途名额等下一轮对账。脱离调用方取消，自带兜底超时。
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), payoutTimeout)
	defer cancel()

	// created 记录是这笔付款归属本服务的持久标记，写失败只降低对账
	// 精度，不会造成重复付款 (幂等键是平台的 payment_id)，所以尽力而为。
	record := &model.Payout{
		PaymentID:    payment.Identifier,
		RecipientUID: req.UID,
		Amount:       req.Amount,
		Memo:         req.Memo,
		Status:       model.StatusCreated,
	}
	s.persist(ctx, record)

	txid, err := s.chain.SubmitPayment(ctx, payment.Identifier)
	if err != nil {
		monitor.IncPayoutFailed("submit")
		s.handleSubmitFailure(ctx, record, err)
		return nil, fmt.Errorf("submit: %w", err)
	}

	record.TxID = txid
	record.Status = model.StatusSubmitted
	s.persist(ctx, record)

	if _, err := s.gateway.CompletePayment(ctx, payment.Identifier, txid); err != nil {
		// txid 已存在: 资金可能已经上链，绝不取消。
		// 留在 submitted 态，由对账任务补一次 complete。
		monitor.IncPayoutFailed("complete")
		logger.Error("complete 失败，等待对账补偿",
			zap.String("payment_id", payment.Identifier),
			zap.String("txid", txid),
			zap.Error(err))
		return nil, fmt.Errorf("complete: %w", err)
	}

	record.Status = model.StatusCompleted
	s.persist(ctx, record)
	monitor.IncPayoutCompleted(payment.Network, payment.Amount)

	logger.Info("付款完成",
		zap.String("payment_id", payment.Identifier),
		zap.String("uid", req.UID),
		zap.String("txid", txid))

	return &PayoutResult{
		PaymentID: payment.Identifier,
		TxID:      txid,
		Status:    model.StatusCompleted,
	}, nil
}

// createPayment 创建平台支付。
// 平台报在途冲突且带出卡住的支付时，先收掉那一笔再重试一次;
// 第二次仍冲突则直接失败，不做无界重试。
func (s *PayoutService) createPayment(ctx context.Context, req *PayoutRequest) (*platform.Payment, error) {
	args := platform.CreatePaymentArgs{
		UID:      req.UID,
		Amount:   req.Amount.InexactFloat64(),
		Memo:     req.Memo,
		Metadata: req.Metadata,
	}

	payment, err := s.gateway.CreatePayment(ctx, args)
	if err == nil {
		return payment, nil
	}

	var perr *platform.Error
	if !errors.As(err, &perr) || perr.Kind != platform.KindOngoingPayment || perr.ConflictingPayment == nil {
		return nil, err
	}

	logger.Warn("平台报在途支付冲突，先处理卡住的支付",
		zap.String("stuck_payment_id", perr.ConflictingPayment.Identifier))
	s.resolveStale(ctx, perr.ConflictingPayment)

	payment, err = s.gateway.CreatePayment(ctx, args)
	if err != nil {
		if platform.IsKind(err, platform.KindOngoingPayment) {
			return nil, fmt.Errorf("%w: conflict persisted after targeted cleanup: %v", errno.ErrPayoutConflict, err)
		}
		return nil, err
	}
	return payment, nil
}

// handleSubmitFailure submit 阶段失败的善后。
// 常规失败 (网络/节点/记录不可见) 不取消: 支付留在 created 态，对账任务
// 发现它没有 txid 后会取消。地址不匹配、网络未配置这类致命配置错误不会
// 自愈，趁还没有任何链上交易，尽力取消掉，避免长期占住在途名额。
func (s *PayoutService) handleSubmitFailure(ctx context.Context, record *model.Payout, submitErr error) {
	fatal := errors.Is(submitErr, chain.ErrAddressMismatch) ||
		errors.Is(submitErr, chain.ErrUnsupportedNetwork)
	if !fatal {
		return
	}

	if _, err := s.gateway.CancelPayment(ctx, record.PaymentID); err != nil {
		logger.Warn("取消支付失败", zap.String("payment_id", record.PaymentID), zap.Error(err))
		return
	}
	record.Status = model.StatusFailed
	s.persist(ctx, record)
}

// ReconcileStale 收尾平台上所有未终结的支付:
// 已有链上交易的补 complete (资金已动，取消有双花风险)，没有的取消。
// 单笔失败只记日志，幂等，可定时反复调用。
func (s *PayoutService) ReconcileStale(ctx context.Context) error {
	payments, err := s.gateway.IncompletePayments(ctx)
	if err != nil {
		return fmt.Errorf("list incomplete payments: %w", err)
	}

	for _, p := range payments {
		s.resolveStale(ctx, p)
	}
	return nil
}

// resolveStale 按是否已有链上交易决定 complete 还是 cancel，尽力而为
func (s *PayoutService) resolveStale(ctx context.Context, p *platform.Payment) {
	txid := p.TransactionID()

	if txid != "" {
		if _, err := s.gateway.CompletePayment(ctx, p.Identifier, txid); err != nil {
			logger.Warn("对账 complete 失败",
				zap.String("payment_id", p.Identifier),
				zap.String("txid", txid),
				zap.Error(err))
			return
		}
		monitor.IncReconcileResolved("completed")
		s.persist(ctx, &model.Payout{
			PaymentID:    p.Identifier,
			RecipientUID: p.UserUID,
			Amount:       decimal.NewFromFloat(p.Amount),
			Memo:         p.Memo,
			TxID:         txid,
			Status:       model.StatusCompleted,
		})
		logger.Info("对账: 已补完成", zap.String("payment_id", p.Identifier))
		return
	}

	if _, err := s.gateway.CancelPayment(ctx, p.Identifier); err != nil {
		logger.Warn("对账 cancel 失败", zap.String("payment_id", p.Identifier), zap.Error(err))
		return
	}
	monitor.IncReconcileResolved("cancelled")
	s.persist(ctx, &model.Payout{
		PaymentID:    p.Identifier,
		RecipientUID: p.UserUID,
		Amount:       decimal.NewFromFloat(p.Amount),
		Memo:         p.Memo,
		Status:       model.StatusCancelled,
	})
	logger.Info("对账: 已取消", zap.String("payment_id", p.Identifier))
}

// persist 本地状态写入尽力而为: 数据库故障不阻塞付款主流程
func (s *PayoutService) persist(ctx context.Context, payout *model.Payout) {
	if err := s.ledger.Upsert(ctx, payout); err != nil {
		logger.Warn("本地付款记录写入失败",
			zap.String("payment_id", payout.PaymentID),
			zap.String("status", payout.Status),
			zap.Error(err))
	}
}
