package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// reconcileCmd 代表 reconcile 命令
var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "手动触发一次对账",
	Long:  `收尾平台上所有未终结的支付: 已有链上交易的补 complete，没有的取消。正常由服务端定时任务驱动，这里用于人工介入。`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("正在触发对账...")

		resp, err := callAPI("POST", "/api/v1/admin/reconcile", nil)
		if err != nil {
			fmt.Printf("请求失败: %v\n", err)
			os.Exit(1)
		}
		if resp.Code != 0 {
			fmt.Printf("对账失败 [%d]: %s\n", resp.Code, resp.Message)
			os.Exit(1)
		}
		fmt.Println("✅ 对账完成")
	},
}

func init() {
	rootCmd.AddCommand(reconcileCmd)
}
