package platform

import (
	"encoding/json"
	"fmt"
)

// Payment 平台侧的支付记录 (远端数据为准，本地只做镜像)
type Payment struct {
	Identifier  string                 `json:"identifier"`
	UserUID     string                 `json:"user_uid"`
	Amount      float64                `json:"amount"`
	Memo        string                 `json:"memo"`
	Metadata    map[string]interface{} `json:"metadata"`
	FromAddress string                 `json:"from_address"`
	ToAddress   string                 `json:"to_address"`
	Direction   string                 `json:"direction"` // "user_to_app" | "app_to_user"
	Network     string                 `json:"network"`   // "Pi Network" | "Pi Testnet"
	Status      PaymentStatus          `json:"status"`
	Transaction *PaymentTransaction    `json:"transaction"`
	CreatedAt   string                 `json:"created_at"`
}

// PaymentStatus 平台用五个独立布尔位描述生命周期
type PaymentStatus struct {
	DeveloperApproved   bool `json:"developer_approved"`
	TransactionVerified bool `json:"transaction_verified"`
	DeveloperCompleted  bool `json:"developer_completed"`
	Cancelled           bool `json:"cancelled"`
	UserCancelled       bool `json:"user_cancelled"`
}

// PaymentTransaction 链上交易信息，submit 成功前为 null
type PaymentTransaction struct {
	TxID     string `json:"txid"`
	Verified bool   `json:"verified"`
	Link     string `json:"_link"`
}

// TxID 返回链上交易哈希，没有交易时返回空串
func (p *Payment) TransactionID() string {
	if p.Transaction == nil {
		return ""
	}
	return p.Transaction.TxID
}

// Terminal 支付是否已到达终态 (已完成或已取消)
func (p *Payment) Terminal() bool {
	return p.Status.DeveloperCompleted || p.Status.Cancelled || p.Status.UserCancelled
}

// CreatePaymentArgs A2U 创建支付的入参
type CreatePaymentArgs struct {
	UID      string                 `json:"uid"`
	Amount   float64                `json:"amount"`
	Memo     string                 `json:"memo"`
	Metadata map[string]interface{} `json:"metadata"`
}

// Me token 校验接口的返回
type Me struct {
	UID      string `json:"uid"`
	Username string `json:"username"`
}

// decodePayment 兼容平台几种响应嵌套形态:
// 裸对象 / {"payment": {...}} / {"data": {"payment": {...}}}。
// 上游响应形态在不同接口/版本间并不一致，这里统一收敛，
// 调用方永远只拿到规整的 Payment。
func decodePayment(raw []byte) (*Payment, error) {
	var envelope struct {
		Payment *Payment `json:"payment"`
		Data    struct {
			Payment *Payment `json:"payment"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil {
		if envelope.Payment != nil && envelope.Payment.Identifier != "" {
			return envelope.Payment, nil
		}
		if envelope.Data.Payment != nil && envelope.Data.Payment.Identifier != "" {
			return envelope.Data.Payment, nil
		}
	}

	var p Payment
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("undecodable payment response: %w", err)
	}
	if p.Identifier == "" {
		return nil, fmt.Errorf("payment response missing identifier: %s", truncate(raw, 256))
	}
	return &p, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
