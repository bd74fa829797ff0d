package cmd

import (
	"fmt"
	"os"
	"syscall"

	"payout-core/pkg/keystore"
	"payout-core/pkg/wallet"

	"github.com/spf13/cobra"
	"github.com/tyler-smith/go-bip39"
	"golang.org/x/term"
)

var walletCmd = &cobra.Command{
	Use:   "wallet",
	Short: "应用钱包管理",
}

// walletInitCmd 生成新助记词并加密保存为 Keystore 文件
var walletInitCmd = &cobra.Command{
	Use:   "init",
	Short: "初始化应用钱包 (生成助记词并加密保存)",
	Long:  `生成新的 BIP-39 助记词，派生 Pi 钱包密钥对，并使用用户输入的密码加密保存为 Keystore 文件。`,
	Run: func(cmd *cobra.Command, args []string) {
		outputFile, _ := cmd.Flags().GetString("output")
		if _, err := os.Stat(outputFile); err == nil {
			fmt.Printf("错误: 文件 %s 已存在。请先删除或指定其他文件名。\n", outputFile)
			os.Exit(1)
		}

		fmt.Println("正在初始化应用钱包...")
		password := readNewPassword()

		// 1. 生成助记词 (24 词)
		entropy, err := bip39.NewEntropy(256)
		if err != nil {
			fmt.Printf("生成熵失败: %v\n", err)
			os.Exit(1)
		}
		mnemonic, err := bip39.NewMnemonic(entropy)
		if err != nil {
			fmt.Printf("生成助记词失败: %v\n", err)
			os.Exit(1)
		}

		// 2. 派生 Pi 密钥对，确认助记词可用
		kp, err := wallet.FromMnemonic(mnemonic, "")
		if err != nil {
			fmt.Printf("派生密钥失败: %v\n", err)
			os.Exit(1)
		}

		// 3. 加密保存
		encryptedKey, err := keystore.EncryptSecret(mnemonic, password)
		if err != nil {
			fmt.Printf("加密失败: %v\n", err)
			os.Exit(1)
		}
		if err := keystore.SaveToFile(encryptedKey, outputFile); err != nil {
			fmt.Printf("保存文件失败: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("\n✅ 钱包已初始化！\n")
		fmt.Printf("文件位置: %s\n", outputFile)
		fmt.Printf("钱包地址: %s\n", kp.Address())
		fmt.Println("\n⚠️  警告: 请务必记住您的密码！如果丢失密码，您将无法恢复钱包。")
		fmt.Println("请向该地址充值后再启动 payout-server。")
	},
}

// walletAddressCmd 从 Keystore 文件里读出钱包地址
var walletAddressCmd = &cobra.Command{
	Use:   "address",
	Short: "显示 Keystore 对应的钱包地址",
	Run: func(cmd *cobra.Command, args []string) {
		file, _ := cmd.Flags().GetString("file")

		fmt.Print("输入密码: ")
		bytePassword, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err != nil {
			fmt.Printf("读取密码失败: %v\n", err)
			os.Exit(1)
		}

		secret, err := keystore.LoadSecret(file, string(bytePassword))
		if err != nil {
			fmt.Printf("解密 Keystore 失败: %v\n", err)
			os.Exit(1)
		}
		kp, err := wallet.FromSecret(secret)
		if err != nil {
			fmt.Printf("解析钱包密钥失败: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("钱包地址: %s\n", kp.Address())
	},
}

// readNewPassword 交互式读取并确认新密码
func readNewPassword() string {
	fmt.Print("输入密码: ")
	bytePassword, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		fmt.Printf("读取密码失败: %v\n", err)
		os.Exit(1)
	}

	fmt.Print("确认密码: ")
	byteConfirm, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		fmt.Printf("读取密码失败: %v\n", err)
		os.Exit(1)
	}

	if string(bytePassword) != string(byteConfirm) {
		fmt.Println("两次输入的密码不一致！")
		os.Exit(1)
	}
	if len(bytePassword) < 6 {
		fmt.Println("密码长度至少需要 6 位。")
		os.Exit(1)
	}
	return string(bytePassword)
}

func init() {
	rootCmd.AddCommand(walletCmd)
	walletCmd.AddCommand(walletInitCmd)
	walletCmd.AddCommand(walletAddressCmd)

	walletInitCmd.Flags().StringP("output", "o", "wallet.json", "输出的 Keystore 文件名")
	walletAddressCmd.Flags().StringP("file", "f", "wallet.json", "Keystore 文件路径")
}
