package chain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stellar/go/clients/horizonclient"
	"github.com/stellar/go/keypair"
	hProtocol "github.com/stellar/go/protocols/horizon"
	"github.com/stellar/go/txnbuild"
	"go.uber.org/zap"

	"payout-core/internal/platform"
	"payout-core/pkg/logger"
	"payout-core/pkg/monitor"
)

var (
	// ErrAddressMismatch 钱包公钥和平台记录的 from_address 不一致。
	// 硬性前置条件: 用错误的 Key 签名要么上链失败，要么动了错误的账户。
	ErrAddressMismatch = errors.New("wallet public key does not match payment from_address")
	// ErrUnsupportedNetwork 网络名没有对应的 Horizon 节点映射
	ErrUnsupportedNetwork = errors.New("unsupported network")
	// ErrPaymentNotVisible 创建后的支付记录重试读取仍不可见
	ErrPaymentNotVisible = errors.New("payment not visible after retries")
	// ErrAlreadySubmitted 平台记录上已经有链上交易，拒绝二次提交
	ErrAlreadySubmitted = errors.New("payment already has an on-chain transaction")
)

// txValidSeconds 交易有效窗口，避免过期交易滞留在网络里
const txValidSeconds = 180

// TestnetName 指定的测试网络，网络名缺失时的唯一默认值
const TestnetName = "Pi Testnet"

// Network 一条链实例的接入参数
type Network struct {
	HorizonURL string
	Passphrase string
}

// Pi 主网/测试网的内置接入点，可被配置覆盖
var defaultNetworks = map[string]Network{
	"Pi Network": {HorizonURL: "https://api.mainnet.minepi.com", Passphrase: "Pi Network"},
	TestnetName:  {HorizonURL: "https://api.testnet.minepi.com", Passphrase: TestnetName},
}

// PaymentReader 读取平台支付记录 (由 platform.Client 实现)
type PaymentReader interface {
	GetPayment(ctx context.Context, paymentID string) (*platform.Payment, error)
}

// HorizonAPI Horizon 节点上用到的三个操作，*horizonclient.Client 原生满足
type HorizonAPI interface {
	AccountDetail(request horizonclient.AccountRequest) (hProtocol.Account, error)
	FeeStats() (hProtocol.FeeStats, error)
	SubmitTransaction(tx *txnbuild.Transaction) (hProtocol.Transaction, error)
}

// Builder 为平台支付构造、签名并提交链上原生转账
type Builder struct {
	kp           *keypair.Full
	reader       PaymentReader
	networks     map[string]Network
	readAttempts int
	readDelay    time.Duration

	// horizonFor 按网络创建 Horizon 客户端，测试时替换
	horizonFor func(n Network) HorizonAPI
}

// NewBuilder 创建 Builder。
// networks 为空时使用内置 Pi 主网/测试网映射; overrides 按网络名覆盖。
func NewBuilder(kp *keypair.Full, reader PaymentReader, overrides map[string]Network, readAttempts int, readDelay time.Duration) *Builder {
	networks := make(map[string]Network, len(defaultNetworks)+len(overrides))
	for name, n := range defaultNetworks {
		networks[name] = n
	}
	for name, n := range overrides {
		networks[name] = n
	}

	if readAttempts <= 0 {
		readAttempts = 5
	}
	if readDelay <= 0 {
		readDelay = 2 * time.Second
	}

	return &Builder{
		kp:           kp,
		reader:       reader,
		networks:     networks,
		readAttempts: readAttempts,
		readDelay:    readDelay,
		horizonFor: func(n Network) HorizonAPI {
			return &horizonclient.Client{HorizonURL: n.HorizonURL}
		},
	}
}

// Address 钱包公钥地址
func (b *Builder) Address() string {
	return b.kp.Address()
}

// SubmitPayment 读取平台支付记录，在对应网络上签名并广播转账，返回 txid
func (b *Builder) SubmitPayment(ctx context.Context, paymentID string) (string, error) {
	payment, err := b.awaitPayment(ctx, paymentID)
	if err != nil {
		return "", err
	}

	if payment.TransactionID() != "" {
		return "", fmt.Errorf("%w: payment %s txid %s", ErrAlreadySubmitted, paymentID, payment.TransactionID())
	}

	// 地址不匹配绝不静默纠正
	if b.kp.Address() != payment.FromAddress {
		return "", fmt.Errorf("%w: wallet %s, payment from_address %s",
			ErrAddressMismatch, b.kp.Address(), payment.FromAddress)
	}

	netw, name, err := b.resolveNetwork(payment.Network)
	if err != nil {
		return "", err
	}

	hc := b.horizonFor(netw)

	account, err := hc.AccountDetail(horizonclient.AccountRequest{AccountID: b.kp.Address()})
	if err != nil {
		return "", fmt.Errorf("load account %s: %w", b.kp.Address(), err)
	}

	// 手续费取不到时退回协议最低值，取费失败不应阻塞付款
	baseFee := int64(txnbuild.MinBaseFee)
	if fs, err := hc.FeeStats(); err == nil {
		if fs.LastLedgerBaseFee > baseFee {
			baseFee = fs.LastLedgerBaseFee
		}
	} else {
		logger.Warn("获取手续费失败，使用协议最低值", zap.Error(err))
	}

	amount := decimal.NewFromFloat(payment.Amount).StringFixed(7)

	// memo = 支付 identifier，用于后续链上记录与平台记录的对账
	memo := payment.Identifier
	if len(memo) > 28 { // MEMO_TEXT 上限 28 字节
		memo = memo[:28]
	}

	tx, err := txnbuild.NewTransaction(txnbuild.TransactionParams{
		SourceAccount:        &account,
		IncrementSequenceNum: true,
		BaseFee:              baseFee,
		Memo:                 txnbuild.MemoText(memo),
		Preconditions: txnbuild.Preconditions{
			TimeBounds: txnbuild.NewTimeout(txValidSeconds),
		},
		Operations: []txnbuild.Operation{
			&txnbuild.Payment{
				Destination: payment.ToAddress,
				Amount:      amount,
				Asset:       txnbuild.NativeAsset{},
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("build transaction: %w", err)
	}

	tx, err = tx.Sign(netw.Passphrase, b.kp)
	if err != nil {
		return "", fmt.Errorf("sign transaction: %w", err)
	}

	start := time.Now()
	resp, err := hc.SubmitTransaction(tx)
	monitor.ObserveChainSubmit(name, time.Since(start).Seconds())
	if err != nil {
		return "", fmt.Errorf("submit transaction: %w", err)
	}

	logger.Info("链上转账已提交",
		zap.String("payment_id", paymentID),
		zap.String("txid", resp.Hash),
		zap.String("network", name))
	return resp.Hash, nil
}

// awaitPayment 读取平台支付记录。
// 创建后平台侧有最终一致延迟，NotFound 时按固定间隔重试，重试预算用尽即失败。
func (b *Builder) awaitPayment(ctx context.Context, paymentID string) (*platform.Payment, error) {
	var lastErr error
	for attempt := 0; attempt < b.readAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(b.readDelay):
			}
		}

		payment, err := b.reader.GetPayment(ctx, paymentID)
		if err == nil {
			return payment, nil
		}
		if !platform.IsKind(err, platform.KindNotFound) {
			return nil, fmt.Errorf("read payment %s: %w", paymentID, err)
		}
		lastErr = err
	}

	return nil, fmt.Errorf("%w: %s (%d attempts): %v", ErrPaymentNotVisible, paymentID, b.readAttempts, lastErr)
}

// resolveNetwork 网络名 -> 接入参数。
// 未知网络直接报错; 只有网络名缺失时才默认测试网，生产网络从不猜默认值。
func (b *Builder) resolveNetwork(name string) (Network, string, error) {
	if name == "" {
		name = TestnetName
	}
	n, ok := b.networks[name]
	if !ok {
		return Network{}, "", fmt.Errorf("%w: %q", ErrUnsupportedNetwork, name)
	}
	return n, name, nil
}
