package cmd

import (
	"encoding/base64"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/stellar/go/keypair"
	"golang.org/x/term"

	"multisig-core/internal/handler/request"
	"multisig-core/pkg/envelope"
)

const seedEnv = "MULTISIG_SIGNER_SEED"

// SignResult 是 sign 命令的输出，字段与 POST /transactions/signatures 的请求体对应
type SignResult struct {
	Hash            string `json:"hash"`
	SignerPublicKey string `json:"signerPublicKey"`
	Signature       string `json:"signature"`
}

var signCmd = &cobra.Command{
	Use:   "sign [envelope]",
	Short: "对交易内容哈希签名 (Offline)",
	Long: `用 ed25519 种子 (S...) 对交易内容哈希签名，输出 base64 签名。
种子来源依次为 --seed、环境变量 MULTISIG_SIGNER_SEED、终端输入。
加上 --submit --id <pendingTransactionId> 会直接把签名提交给服务端。`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		envelopeB64, err := readEnvelope(cmd, args)
		if err != nil {
			return err
		}
		seed, err := readSeed(cmd)
		if err != nil {
			return err
		}

		result, err := SignEnvelope(networkPassphrase(), envelopeB64, seed)
		if err != nil {
			return err
		}

		submit, _ := cmd.Flags().GetBool("submit")
		if !submit {
			return printJSON(cmd.OutOrStdout(), result)
		}

		id, _ := cmd.Flags().GetString("id")
		if id == "" {
			return errors.New("--submit 需要同时提供 --id")
		}
		resp, err := postJSON(cmd.Context(), "/api/v1/transactions/signatures", request.SubmitSignatureRequest{
			PendingTransactionID: id,
			SignerPublicKey:      result.SignerPublicKey,
			Signature:            result.Signature,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✅ 签名已提交 (%s)\n", result.SignerPublicKey)
		_, err = cmd.OutOrStdout().Write(append(resp.Data, '\n'))
		return err
	},
}

// SignEnvelope 计算信封在指定网络下的内容哈希并用 seed 签名
func SignEnvelope(passphrase, envelopeB64, seed string) (*SignResult, error) {
	kp, err := keypair.Parse(strings.TrimSpace(seed))
	if err != nil {
		return nil, errors.Wrap(err, "解析种子失败")
	}
	full, ok := kp.(*keypair.Full)
	if !ok {
		return nil, errors.New("需要私钥种子 (S...)，而不是公钥")
	}

	codec, err := envelope.NewCodec(passphrase)
	if err != nil {
		return nil, err
	}
	env, err := codec.Decode(envelopeB64)
	if err != nil {
		return nil, err
	}
	hash, err := codec.ContentHash(env)
	if err != nil {
		return nil, err
	}

	sig, err := full.Sign(hash[:])
	if err != nil {
		return nil, errors.Wrap(err, "签名失败")
	}
	return &SignResult{
		Hash:            envelope.HashHex(hash),
		SignerPublicKey: full.Address(),
		Signature:       base64.StdEncoding.EncodeToString(sig),
	}, nil
}

func readSeed(cmd *cobra.Command) (string, error) {
	if seed, _ := cmd.Flags().GetString("seed"); seed != "" {
		return seed, nil
	}
	if seed := os.Getenv(seedEnv); seed != "" {
		return seed, nil
	}
	if !term.IsTerminal(int(syscall.Stdin)) {
		return "", errors.Errorf("未提供种子: 使用 --seed 或 %s", seedEnv)
	}

	fmt.Fprint(cmd.ErrOrStderr(), "请输入签名种子 (S...): ")
	raw, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(cmd.ErrOrStderr())
	if err != nil {
		return "", errors.Wrap(err, "读取种子失败")
	}
	return string(raw), nil
}

func init() {
	rootCmd.AddCommand(signCmd)
	signCmd.Flags().StringP("input", "i", "", "包含 base64 XDR 信封的文件")
	signCmd.Flags().String("seed", "", "签名种子 (不推荐在命令行明文传入)")
	signCmd.Flags().Bool("submit", false, "签名后直接提交到服务端")
	signCmd.Flags().String("id", "", "待签交易 ID (配合 --submit)")
}
