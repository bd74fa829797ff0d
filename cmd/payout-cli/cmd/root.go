package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	serverURL string
	apiKey    string
)

// rootCmd 代表基础命令，没有子命令时直接调用
var rootCmd = &cobra.Command{
	Use:   "payout-cli",
	Short: "A2U 付款命令行工具",
	Long: `Pi 应用到用户 (A2U) 付款服务的运维命令行。
支持发起付款、查询状态、手动对账、初始化应用钱包以及消费付款事件。`,
}

// Execute 将所有子命令添加到根命令并设置标志
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "payout-server 地址")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", os.Getenv("PAYOUT_ADMIN_KEY"), "后台 API Key (默认读环境变量 PAYOUT_ADMIN_KEY)")
}

// apiResponse 服务端统一响应结构
type apiResponse struct {
	Code    int             `json:"code"`
	Message string          `json:"msg"`
	Data    json.RawMessage `json:"data"`
}

// callAPI 带 X-API-Key 调用服务端接口
func callAPI(method, path string, body interface{}) (*apiResponse, error) {
	var reqBody io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, serverURL+path, reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", apiKey)

	client := &http.Client{Timeout: 5 * time.Minute} // 付款全流程含链上确认，耐心等
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var parsed apiResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("响应解析失败 (HTTP %d): %s", resp.StatusCode, string(raw))
	}
	return &parsed, nil
}

// printData 格式化输出 data 部分
func printData(data json.RawMessage) {
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, data, "", "  "); err != nil {
		fmt.Println(string(data))
		return
	}
	fmt.Println(pretty.String())
}
