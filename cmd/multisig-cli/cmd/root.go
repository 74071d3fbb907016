package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const defaultPassphrase = "Test SDF Network ; September 2015"

// rootCmd 代表基础命令，没有子命令时直接调用
var rootCmd = &cobra.Command{
	Use:   "multisig-cli",
	Short: "Stellar 多签协调命令行工具",
	Long: `配合 multisig-server 使用的命令行工具。
支持计算交易内容哈希、离线签名、提交签名、触发过期扫描以及订阅生命周期事件。`,
	SilenceUsage: true,
}

// Execute 将所有子命令添加到根命令并设置标志
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	// 全局标志, 也可以用 MULTISIG_SERVER / MULTISIG_PASSPHRASE 环境变量覆盖
	rootCmd.PersistentFlags().String("server", "http://localhost:8080", "multisig-server 地址")
	rootCmd.PersistentFlags().String("passphrase", defaultPassphrase, "Stellar 网络 passphrase")

	viper.SetEnvPrefix("MULTISIG")
	viper.AutomaticEnv()
	_ = viper.BindPFlag("server", rootCmd.PersistentFlags().Lookup("server"))
	_ = viper.BindPFlag("passphrase", rootCmd.PersistentFlags().Lookup("passphrase"))
}

func serverURL() string {
	return viper.GetString("server")
}

func networkPassphrase() string {
	return viper.GetString("passphrase")
}
