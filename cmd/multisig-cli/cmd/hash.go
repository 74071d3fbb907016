package cmd

import (
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"multisig-core/pkg/envelope"
)

var hashCmd = &cobra.Command{
	Use:   "hash [envelope]",
	Short: "计算交易内容哈希 (Offline)",
	Long: `解析 base64 XDR 交易信封，输出签名者需要签名的内容哈希以及交易摘要。
信封可以直接作为参数传入，也可以用 --input 从文件读取。`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		envelopeB64, err := readEnvelope(cmd, args)
		if err != nil {
			return err
		}

		codec, err := envelope.NewCodec(networkPassphrase())
		if err != nil {
			return err
		}
		env, err := codec.Decode(envelopeB64)
		if err != nil {
			return err
		}
		hash, err := codec.ContentHash(env)
		if err != nil {
			return err
		}

		return printJSON(cmd.OutOrStdout(), struct {
			Hash    string           `json:"hash"`
			Summary envelope.Summary `json:"summary"`
		}{
			Hash:    envelope.HashHex(hash),
			Summary: envelope.Summarize(env),
		})
	},
}

// readEnvelope 优先取位置参数，其次 --input 文件
func readEnvelope(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 1 {
		return strings.TrimSpace(args[0]), nil
	}
	inputFile, _ := cmd.Flags().GetString("input")
	if inputFile == "" {
		return "", errors.New("需要提供交易信封 (参数或 --input)")
	}
	data, err := os.ReadFile(inputFile)
	if err != nil {
		return "", errors.Wrap(err, "读取文件失败")
	}
	return strings.TrimSpace(string(data)), nil
}

func init() {
	rootCmd.AddCommand(hashCmd)
	hashCmd.Flags().StringP("input", "i", "", "包含 base64 XDR 信封的文件")
}
