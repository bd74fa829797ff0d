package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// sendCmd 代表 send 命令
var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "向指定用户发起一笔 A2U 付款",
	Long:  `调用 payout-server 发起一笔完整的付款: 创建平台支付 -> 链上转账 -> 完成确认。`,
	Run: func(cmd *cobra.Command, args []string) {
		uid, _ := cmd.Flags().GetString("uid")
		amount, _ := cmd.Flags().GetString("amount")
		memo, _ := cmd.Flags().GetString("memo")

		fmt.Printf("正在发起付款: %s Pi -> %s ...\n", amount, uid)

		resp, err := callAPI("POST", "/api/v1/payouts", map[string]string{
			"uid":    uid,
			"amount": amount,
			"memo":   memo,
		})
		if err != nil {
			fmt.Printf("请求失败: %v\n", err)
			os.Exit(1)
		}
		if resp.Code != 0 {
			fmt.Printf("付款失败 [%d]: %s\n", resp.Code, resp.Message)
			os.Exit(1)
		}

		fmt.Println("✅ 付款完成:")
		printData(resp.Data)
	},
}

// getCmd 代表 get 命令
var getCmd = &cobra.Command{
	Use:   "get <payment_id>",
	Short: "查询一笔付款的本地状态",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		resp, err := callAPI("GET", "/api/v1/payouts/"+args[0], nil)
		if err != nil {
			fmt.Printf("请求失败: %v\n", err)
			os.Exit(1)
		}
		if resp.Code != 0 {
			fmt.Printf("查询失败 [%d]: %s\n", resp.Code, resp.Message)
			os.Exit(1)
		}
		printData(resp.Data)
	},
}

func init() {
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(getCmd)

	sendCmd.Flags().StringP("uid", "u", "", "收款用户的 Pi uid")
	sendCmd.Flags().StringP("amount", "a", "", "付款金额 (Pi)")
	sendCmd.Flags().StringP("memo", "m", "", "付款备注 (链上 MEMO_TEXT，最长 28 字节)")
	sendCmd.MarkFlagRequired("uid")
	sendCmd.MarkFlagRequired("amount")
	sendCmd.MarkFlagRequired("memo")
}
