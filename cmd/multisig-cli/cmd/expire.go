package cmd

import (
	"github.com/spf13/cobra"

	"multisig-core/internal/handler/request"
	"multisig-core/internal/handler/response"
)

var expireCmd = &cobra.Command{
	Use:   "expire",
	Short: "触发一次过期扫描 (Online)",
	Long:  `调用服务端的过期扫描接口。--ledger 为 0 时由服务端查询当前账本高度。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ledger, _ := cmd.Flags().GetUint32("ledger")

		resp, err := postJSON(cmd.Context(), "/api/v1/transactions/expire", request.ExpireRequest{CurrentLedger: ledger})
		if err != nil {
			return err
		}

		var view response.ExpireView
		if err := decodeData(resp, &view); err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), view)
	},
}

func init() {
	rootCmd.AddCommand(expireCmd)
	expireCmd.Flags().Uint32("ledger", 0, "当前账本高度 (0 表示由服务端获取)")
}
