package chain

import (
	"context"
	"testing"
	"time"

	"github.com/stellar/go/clients/horizonclient"
	"github.com/stellar/go/keypair"
	hProtocol "github.com/stellar/go/protocols/horizon"
	"github.com/stellar/go/txnbuild"
	"github.com/stretchr/testify/assert"

	"payout-core/internal/platform"
)

type fakeReader struct {
	payments map[string]*platform.Payment
	// notFoundUntil: 前 N 次调用返回 NotFound，模拟平台的最终一致延迟
	notFoundUntil int
	calls         int
}

func (r *fakeReader) GetPayment(ctx context.Context, id string) (*platform.Payment, error) {
	r.calls++
	if r.calls <= r.notFoundUntil {
		return nil, &platform.Error{Kind: platform.KindNotFound, StatusCode: 404, Message: "not found"}
	}
	p, ok := r.payments[id]
	if !ok {
		return nil, &platform.Error{Kind: platform.KindNotFound, StatusCode: 404, Message: "not found"}
	}
	return p, nil
}

type fakeHorizon struct {
	account     hProtocol.Account
	feeStatsErr error
	submitted   *txnbuild.Transaction
	calls       int
}

func (h *fakeHorizon) AccountDetail(req horizonclient.AccountRequest) (hProtocol.Account, error) {
	h.calls++
	return h.account, nil
}

func (h *fakeHorizon) FeeStats() (hProtocol.FeeStats, error) {
	h.calls++
	if h.feeStatsErr != nil {
		return hProtocol.FeeStats{}, h.feeStatsErr
	}
	return hProtocol.FeeStats{LastLedgerBaseFee: 100}, nil
}

func (h *fakeHorizon) SubmitTransaction(tx *txnbuild.Transaction) (hProtocol.Transaction, error) {
	h.calls++
	h.submitted = tx
	return hProtocol.Transaction{Hash: "txhash-1"}, nil
}

func mustKeypair(t *testing.T) *keypair.Full {
	t.Helper()
	kp, err := keypair.Random()
	if err != nil {
		t.Fatalf("生成测试密钥失败: %v", err)
	}
	return kp
}

func testPayment(t *testing.T, from string) *platform.Payment {
	t.Helper()
	return &platform.Payment{
		Identifier:  "pay-1",
		Amount:      0.25,
		FromAddress: from,
		ToAddress:   mustKeypair(t).Address(),
		Network:     TestnetName,
	}
}

// newTestBuilder 绑定 fake reader/horizon 的 Builder
func newTestBuilder(kp *keypair.Full, reader *fakeReader, h *fakeHorizon) *Builder {
	b := NewBuilder(kp, reader, nil, 3, time.Millisecond)
	b.horizonFor = func(n Network) HorizonAPI { return h }
	return b
}

func TestSubmitPayment(t *testing.T) {
	kp := mustKeypair(t)
	payment := testPayment(t, kp.Address())
	reader := &fakeReader{payments: map[string]*platform.Payment{payment.Identifier: payment}}
	h := &fakeHorizon{account: hProtocol.Account{AccountID: kp.Address(), Sequence: 100}}
	b := newTestBuilder(kp, reader, h)

	txid, err := b.SubmitPayment(context.Background(), "pay-1")
	assert.NoError(t, err)
	assert.Equal(t, "txhash-1", txid)

	// memo 必须是支付 identifier，保证链上与平台记录可对账
	if assert.NotNil(t, h.submitted) {
		assert.Equal(t, txnbuild.MemoText("pay-1"), h.submitted.Memo())
		ops := h.submitted.Operations()
		if assert.Len(t, ops, 1) {
			payOp := ops[0].(*txnbuild.Payment)
			assert.Equal(t, payment.ToAddress, payOp.Destination)
			assert.Equal(t, "0.2500000", payOp.Amount)
		}
	}
}

func TestSubmitPaymentAddressMismatch(t *testing.T) {
	kp := mustKeypair(t)
	payment := testPayment(t, mustKeypair(t).Address()) // from_address 不是 builder 钱包
	reader := &fakeReader{payments: map[string]*platform.Payment{payment.Identifier: payment}}
	h := &fakeHorizon{}
	b := newTestBuilder(kp, reader, h)

	_, err := b.SubmitPayment(context.Background(), "pay-1")
	assert.ErrorIs(t, err, ErrAddressMismatch)
	// 前置条件失败，不允许发生任何 Horizon 调用
	assert.Equal(t, 0, h.calls)
}

func TestSubmitPaymentUnsupportedNetwork(t *testing.T) {
	kp := mustKeypair(t)
	payment := testPayment(t, kp.Address())
	payment.Network = "Some Other Chain"
	reader := &fakeReader{payments: map[string]*platform.Payment{payment.Identifier: payment}}
	h := &fakeHorizon{}
	b := newTestBuilder(kp, reader, h)

	_, err := b.SubmitPayment(context.Background(), "pay-1")
	assert.ErrorIs(t, err, ErrUnsupportedNetwork)
	assert.Equal(t, 0, h.calls)
}

func TestSubmitPaymentEmptyNetworkDefaultsToTestnet(t *testing.T) {
	kp := mustKeypair(t)
	payment := testPayment(t, kp.Address())
	payment.Network = ""
	reader := &fakeReader{payments: map[string]*platform.Payment{payment.Identifier: payment}}
	h := &fakeHorizon{account: hProtocol.Account{AccountID: kp.Address(), Sequence: 7}}

	b := NewBuilder(kp, reader, nil, 3, time.Millisecond)
	var used Network
	b.horizonFor = func(n Network) HorizonAPI {
		used = n
		return h
	}

	_, err := b.SubmitPayment(context.Background(), "pay-1")
	assert.NoError(t, err)
	assert.Equal(t, defaultNetworks[TestnetName], used)
}

func TestAwaitPaymentRetriesThenSucceeds(t *testing.T) {
	kp := mustKeypair(t)
	payment := testPayment(t, kp.Address())
	reader := &fakeReader{
		payments:      map[string]*platform.Payment{payment.Identifier: payment},
		notFoundUntil: 2, // 前两次 404
	}
	h := &fakeHorizon{account: hProtocol.Account{AccountID: kp.Address(), Sequence: 1}}
	b := newTestBuilder(kp, reader, h)
	b.readAttempts = 5

	_, err := b.SubmitPayment(context.Background(), "pay-1")
	assert.NoError(t, err)
	assert.Equal(t, 3, reader.calls)
}

func TestAwaitPaymentExhaustsRetries(t *testing.T) {
	kp := mustKeypair(t)
	reader := &fakeReader{payments: map[string]*platform.Payment{}}
	b := newTestBuilder(kp, reader, &fakeHorizon{})

	_, err := b.SubmitPayment(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrPaymentNotVisible)
	assert.Equal(t, 3, reader.calls)
}

func TestSubmitPaymentRefusesDoubleSubmit(t *testing.T) {
	kp := mustKeypair(t)
	payment := testPayment(t, kp.Address())
	payment.Transaction = &platform.PaymentTransaction{TxID: "existing-tx"}
	reader := &fakeReader{payments: map[string]*platform.Payment{payment.Identifier: payment}}
	h := &fakeHorizon{}
	b := newTestBuilder(kp, reader, h)

	_, err := b.SubmitPayment(context.Background(), "pay-1")
	assert.ErrorIs(t, err, ErrAlreadySubmitted)
	assert.Equal(t, 0, h.calls)
}

func TestSubmitPaymentFeeStatsFailureFallsBack(t *testing.T) {
	kp := mustKeypair(t)
	payment := testPayment(t, kp.Address())
	reader := &fakeReader{payments: map[string]*platform.Payment{payment.Identifier: payment}}
	h := &fakeHorizon{
		account:     hProtocol.Account{AccountID: kp.Address(), Sequence: 1},
		feeStatsErr: assert.AnError,
	}
	b := newTestBuilder(kp, reader, h)

	txid, err := b.SubmitPayment(context.Background(), "pay-1")
	assert.NoError(t, err)
	assert.Equal(t, "txhash-1", txid)
}
