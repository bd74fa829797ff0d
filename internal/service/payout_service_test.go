package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"payout-core/internal/chain"
	"payout-core/internal/model"
	"payout-core/internal/platform"
	"payout-core/pkg/errno"
)

// fakeGateway 记录所有调用，模拟平台行为
type fakeGateway struct {
	calls []string

	createErrs []error // 按调用次数依次弹出，空后成功
	createSeq  int
	created    []*platform.Payment

	incomplete  []*platform.Payment
	completeErr error
	cancelErr   error

	completed []string
	cancelled []string

	onCreate   func() // create 返回前触发，模拟此刻发生的外部事件
	respectCtx bool   // complete/cancel 在 ctx 已取消时报错
}

func (g *fakeGateway) record(call string) { g.calls = append(g.calls, call) }

func (g *fakeGateway) CreatePayment(ctx context.Context, args platform.CreatePaymentArgs) (*platform.Payment, error) {
	g.record("create")
	if g.createSeq < len(g.createErrs) {
		err := g.createErrs[g.createSeq]
		g.createSeq++
		if err != nil {
			return nil, err
		}
	}
	p := &platform.Payment{
		Identifier:  fmt.Sprintf("p%d", len(g.created)+1),
		UserUID:     args.UID,
		Amount:      args.Amount,
		Memo:        args.Memo,
		Direction:   "app_to_user",
		Network:     "Pi Testnet",
		FromAddress: "GAPP",
		ToAddress:   "GUSER",
	}
	g.created = append(g.created, p)
	if g.onCreate != nil {
		g.onCreate()
	}
	return p, nil
}

func (g *fakeGateway) GetPayment(ctx context.Context, id string) (*platform.Payment, error) {
	g.record("get")
	for _, p := range g.created {
		if p.Identifier == id {
			return p, nil
		}
	}
	return nil, &platform.Error{Kind: platform.KindNotFound, StatusCode: 404}
}

func (g *fakeGateway) CompletePayment(ctx context.Context, id, txid string) (*platform.Payment, error) {
	g.record("complete:" + id)
	if g.respectCtx && ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if g.completeErr != nil {
		return nil, g.completeErr
	}
	g.completed = append(g.completed, id)
	g.removeIncomplete(id)
	return &platform.Payment{Identifier: id, Transaction: &platform.PaymentTransaction{TxID: txid}}, nil
}

func (g *fakeGateway) CancelPayment(ctx context.Context, id string) (*platform.Payment, error) {
	g.record("cancel:" + id)
	if g.cancelErr != nil {
		return nil, g.cancelErr
	}
	g.cancelled = append(g.cancelled, id)
	g.removeIncomplete(id)
	return &platform.Payment{Identifier: id, Status: platform.PaymentStatus{Cancelled: true}}, nil
}

func (g *fakeGateway) IncompletePayments(ctx context.Context) ([]*platform.Payment, error) {
	g.record("incomplete")
	out := make([]*platform.Payment, len(g.incomplete))
	copy(out, g.incomplete)
	return out, nil
}

// 终态支付从 incomplete 列表消失，模拟平台的行为
func (g *fakeGateway) removeIncomplete(id string) {
	kept := g.incomplete[:0]
	for _, p := range g.incomplete {
		if p.Identifier != id {
			kept = append(kept, p)
		}
	}
	g.incomplete = kept
}

type fakeSubmitter struct {
	txid       string
	err        error
	calls      int
	respectCtx bool
}

func (c *fakeSubmitter) SubmitPayment(ctx context.Context, id string) (string, error) {
	c.calls++
	if c.respectCtx && ctx.Err() != nil {
		return "", ctx.Err()
	}
	if c.err != nil {
		return "", c.err
	}
	return c.txid, nil
}

// memLedger 记录每次 Upsert 的快照
type memLedger struct {
	upserts []model.Payout
}

func (l *memLedger) Upsert(ctx context.Context, p *model.Payout) error {
	l.upserts = append(l.upserts, *p)
	return nil
}

func (l *memLedger) Get(ctx context.Context, id string) (*model.Payout, error) {
	for i := len(l.upserts) - 1; i >= 0; i-- {
		if l.upserts[i].PaymentID == id {
			return &l.upserts[i], nil
		}
	}
	return nil, fmt.Errorf("not found")
}

func (l *memLedger) List(ctx context.Context, uid string, limit int) ([]model.Payout, error) {
	return l.upserts, nil
}

func newTestService(g *fakeGateway, c *fakeSubmitter, l *memLedger) *PayoutService {
	return NewPayoutService(g, c, l, decimal.NewFromInt(1))
}

func validRequest() *PayoutRequest {
	return &PayoutRequest{
		UID:    "u1",
		Amount: decimal.NewFromFloat(0.01),
		Memo:   "test payout",
	}
}

func TestExecutePayoutHappyPath(t *testing.T) {
	g := &fakeGateway{}
	c := &fakeSubmitter{txid: "t1"}
	l := &memLedger{}
	s := newTestService(g, c, l)

	res, err := s.ExecutePayout(context.Background(), validRequest())
	assert.NoError(t, err)
	assert.Equal(t, "p1", res.PaymentID)
	assert.Equal(t, "t1", res.TxID)
	assert.Equal(t, model.StatusCompleted, res.Status)

	// 恰好三次状态写入，顺序 created -> submitted -> completed
	if assert.Len(t, l.upserts, 3) {
		assert.Equal(t, model.StatusCreated, l.upserts[0].Status)
		assert.Equal(t, model.StatusSubmitted, l.upserts[1].Status)
		assert.Equal(t, "t1", l.upserts[1].TxID)
		assert.Equal(t, model.StatusCompleted, l.upserts[2].Status)
	}
	assert.Equal(t, []string{"p1"}, g.completed)
	assert.Empty(t, g.cancelled)
}

func TestExecutePayoutRejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name string
		mod  func(r *PayoutRequest)
	}{
		{"Zero amount", func(r *PayoutRequest) { r.Amount = decimal.Zero }},
		{"Negative amount", func(r *PayoutRequest) { r.Amount = decimal.NewFromInt(-1) }},
		{"Amount above cap", func(r *PayoutRequest) { r.Amount = decimal.NewFromFloat(1.5) }},
		{"Empty uid", func(r *PayoutRequest) { r.UID = " " }},
		{"Empty memo", func(r *PayoutRequest) { r.Memo = "" }},
		{"Oversized memo", func(r *PayoutRequest) { r.Memo = "this memo is way too long for the ledger" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := &fakeGateway{}
			s := newTestService(g, &fakeSubmitter{txid: "t"}, &memLedger{})

			req := validRequest()
			tt.mod(req)

			_, err := s.ExecutePayout(context.Background(), req)
			assert.Error(t, err)
			_, msg := errno.Decode(err)
			assert.NotEmpty(t, msg)

			var e errno.Errno
			assert.ErrorAs(t, err, &e)
			assert.Equal(t, errno.ErrInvalidPayoutRequest.Code, e.Code)
			// 非法请求不允许产生任何远程调用
			assert.Empty(t, g.calls)
		})
	}
}

// 调用方在 create 返回的瞬间断开: 平台上已经挂了一笔支付，
// 流程必须脱离调用方的取消继续走到终态，而不是把支付丢给下一轮对账
func TestCallerCancelAfterCreateStillCompletes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	g := &fakeGateway{onCreate: cancel, respectCtx: true}
	c := &fakeSubmitter{txid: "t1", respectCtx: true}
	l := &memLedger{}
	s := newTestService(g, c, l)

	res, err := s.ExecutePayout(ctx, validRequest())
	assert.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, res.Status)
	assert.Equal(t, []string{"p1"}, g.completed)
	assert.Empty(t, g.cancelled)

	last := l.upserts[len(l.upserts)-1]
	assert.Equal(t, model.StatusCompleted, last.Status)
}

// create 成功但 submit 失败: 不立即取消，之后的对账发现没有 txid 会取消那笔支付
func TestSubmitFailureLeavesPaymentForReconcile(t *testing.T) {
	g := &fakeGateway{}
	c := &fakeSubmitter{err: fmt.Errorf("horizon unavailable")}
	l := &memLedger{}
	s := newTestService(g, c, l)

	_, err := s.ExecutePayout(context.Background(), validRequest())
	assert.ErrorContains(t, err, "submit:")
	assert.Empty(t, g.cancelled, "submit 常规失败不应当场取消")

	// 平台现在把这笔支付列为 incomplete (无 txid)
	g.incomplete = []*platform.Payment{g.created[0]}

	err = s.ReconcileStale(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, []string{"p1"}, g.cancelled)
	assert.Empty(t, g.completed)
}

// submit 成功但 complete 失败: 对账必须补 complete，绝不取消
func TestCompleteFailureReconcileCompletes(t *testing.T) {
	g := &fakeGateway{completeErr: &platform.Error{Kind: platform.KindUnavailable, Message: "down"}}
	c := &fakeSubmitter{txid: "t1"}
	l := &memLedger{}
	s := newTestService(g, c, l)

	_, err := s.ExecutePayout(context.Background(), validRequest())
	assert.ErrorContains(t, err, "complete:")
	assert.Empty(t, g.cancelled)

	// 平台恢复，之前的支付带着 txid 出现在 incomplete 列表里
	g.completeErr = nil
	g.incomplete = []*platform.Payment{{
		Identifier:  "p1",
		UserUID:     "u1",
		Amount:      0.01,
		Transaction: &platform.PaymentTransaction{TxID: "t1"},
	}}

	err = s.ReconcileStale(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, []string{"p1"}, g.completed)
	// 一旦有 txid，任何路径都不允许 cancel
	for _, call := range g.calls {
		assert.NotEqual(t, "cancel:p1", call)
	}
}

// 致命配置错误 (地址不匹配): 还没有任何链上交易，尽力取消掉这笔支付
func TestFatalSubmitErrorCancelsPayment(t *testing.T) {
	g := &fakeGateway{}
	c := &fakeSubmitter{err: fmt.Errorf("precondition: %w", chain.ErrAddressMismatch)}
	l := &memLedger{}
	s := newTestService(g, c, l)

	_, err := s.ExecutePayout(context.Background(), validRequest())
	assert.ErrorIs(t, err, chain.ErrAddressMismatch)
	assert.Equal(t, []string{"p1"}, g.cancelled)

	// 本地记录落到 failed
	last := l.upserts[len(l.upserts)-1]
	assert.Equal(t, model.StatusFailed, last.Status)
}

// 在途冲突: 收掉平台带出的卡住支付，create 恰好重试一次
func TestCreateConflictRetriesOnceAfterCleanup(t *testing.T) {
	stuck := &platform.Payment{Identifier: "stuck-1"}
	conflict := &platform.Error{
		Kind:               platform.KindOngoingPayment,
		StatusCode:         400,
		Message:            "ongoing payment",
		ConflictingPayment: stuck,
	}

	g := &fakeGateway{createErrs: []error{conflict}}
	c := &fakeSubmitter{txid: "t1"}
	l := &memLedger{}
	s := newTestService(g, c, l)

	res, err := s.ExecutePayout(context.Background(), validRequest())
	assert.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, res.Status)
	assert.Contains(t, g.cancelled, "stuck-1")

	creates := 0
	for _, call := range g.calls {
		if call == "create" {
			creates++
		}
	}
	assert.Equal(t, 2, creates)
}

// 第二次冲突直接失败，不做无界重试
func TestCreateSecondConflictIsFatal(t *testing.T) {
	conflict := func(id string) *platform.Error {
		return &platform.Error{
			Kind:               platform.KindOngoingPayment,
			ConflictingPayment: &platform.Payment{Identifier: id},
		}
	}

	g := &fakeGateway{createErrs: []error{conflict("stuck-1"), conflict("stuck-2")}}
	s := newTestService(g, &fakeSubmitter{txid: "t"}, &memLedger{})

	_, err := s.ExecutePayout(context.Background(), validRequest())
	assert.Error(t, err)

	var e errno.Errno
	assert.ErrorAs(t, err, &e)
	assert.Equal(t, errno.ErrPayoutConflict.Code, e.Code)

	creates := 0
	for _, call := range g.calls {
		if call == "create" {
			creates++
		}
	}
	assert.Equal(t, 2, creates)
}

// 带出的卡住支付已有 txid: 冲突清理走 complete 而不是 cancel
func TestCreateConflictCompletesStuckPaymentWithTx(t *testing.T) {
	stuck := &platform.Payment{
		Identifier:  "stuck-1",
		Transaction: &platform.PaymentTransaction{TxID: "t-old"},
	}
	conflict := &platform.Error{Kind: platform.KindOngoingPayment, ConflictingPayment: stuck}

	g := &fakeGateway{createErrs: []error{conflict}}
	s := newTestService(g, &fakeSubmitter{txid: "t1"}, &memLedger{})

	_, err := s.ExecutePayout(context.Background(), validRequest())
	assert.NoError(t, err)
	assert.Contains(t, g.completed, "stuck-1")
	assert.NotContains(t, g.cancelled, "stuck-1")
}

// 对账幂等: 第二次调用不产生新的远程状态变更
func TestReconcileStaleIdempotent(t *testing.T) {
	g := &fakeGateway{incomplete: []*platform.Payment{
		{Identifier: "p-tx", Transaction: &platform.PaymentTransaction{TxID: "t9"}},
		{Identifier: "p-notx"},
	}}
	s := newTestService(g, &fakeSubmitter{}, &memLedger{})

	assert.NoError(t, s.ReconcileStale(context.Background()))
	assert.Equal(t, []string{"p-tx"}, g.completed)
	assert.Equal(t, []string{"p-notx"}, g.cancelled)

	mutations := len(g.completed) + len(g.cancelled)
	assert.NoError(t, s.ReconcileStale(context.Background()))
	assert.Equal(t, mutations, len(g.completed)+len(g.cancelled))
}
