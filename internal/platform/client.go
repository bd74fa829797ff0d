package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"payout-core/pkg/logger"
)

// Client Pi 平台 API (https://api.minepi.com/v2) 的 HTTP 客户端。
// 服务端操作使用 "Authorization: Key <server api key>"，
// 用户 token 校验使用 "Authorization: Bearer <access token>"。
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// CreatePayment 创建一笔 A2U 支付，返回平台分配的支付记录
func (c *Client) CreatePayment(ctx context.Context, args CreatePaymentArgs) (*Payment, error) {
	body := map[string]interface{}{"payment": args}
	raw, err := c.do(ctx, http.MethodPost, "/payments", c.serverAuth(), body)
	if err != nil {
		return nil, err
	}
	return decodePayment(raw)
}

// GetPayment 读取单笔支付，对账和可见性重试都走这里
func (c *Client) GetPayment(ctx context.Context, paymentID string) (*Payment, error) {
	raw, err := c.do(ctx, http.MethodGet, "/payments/"+paymentID, c.serverAuth(), nil)
	if err != nil {
		return nil, err
	}
	return decodePayment(raw)
}

// CompletePayment 上报链上 txid，把支付标记为完成
func (c *Client) CompletePayment(ctx context.Context, paymentID, txid string) (*Payment, error) {
	body := map[string]string{"txid": txid}
	raw, err := c.do(ctx, http.MethodPost, "/payments/"+paymentID+"/complete", c.serverAuth(), body)
	if err != nil {
		return nil, err
	}
	return decodePayment(raw)
}

// CancelPayment 取消一笔还没有链上交易的支付
func (c *Client) CancelPayment(ctx context.Context, paymentID string) (*Payment, error) {
	raw, err := c.do(ctx, http.MethodPost, "/payments/"+paymentID+"/cancel", c.serverAuth(), nil)
	if err != nil {
		return nil, err
	}
	return decodePayment(raw)
}

// IncompletePayments 列出平台认为仍未终结的服务端支付
func (c *Client) IncompletePayments(ctx context.Context) ([]*Payment, error) {
	raw, err := c.do(ctx, http.MethodGet, "/payments/incomplete_server_payments", c.serverAuth(), nil)
	if err != nil {
		return nil, err
	}

	var body struct {
		IncompleteServerPayments []*Payment `json:"incomplete_server_payments"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, fmt.Errorf("undecodable incomplete payments response: %w", err)
	}
	return body.IncompleteServerPayments, nil
}

// Me 校验用户 access token，返回 {uid, username}
func (c *Client) Me(ctx context.Context, accessToken string) (*Me, error) {
	raw, err := c.do(ctx, http.MethodGet, "/me", "Bearer "+accessToken, nil)
	if err != nil {
		return nil, err
	}

	var me Me
	if err := json.Unmarshal(raw, &me); err != nil {
		return nil, fmt.Errorf("undecodable me response: %w", err)
	}
	return &me, nil
}

func (c *Client) serverAuth() string {
	return "Key " + c.apiKey
}

// do 发起请求并返回原始响应体，非 2xx 翻译为 *Error
func (c *Client) do(ctx context.Context, method, path, auth string, body interface{}) ([]byte, error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", auth)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.Warn("Pi 平台请求失败", zap.String("path", path), zap.Error(err))
		return nil, newTransportError(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, newTransportError(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := newAPIError(resp.StatusCode, raw)
		logger.Warn("Pi 平台返回错误",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("kind", string(apiErr.Kind)))
		return nil, apiErr
	}

	return raw, nil
}
