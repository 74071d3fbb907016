package crypto_util

import (
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/stellar/go/keypair"
	"github.com/stellar/go/strkey"
)

// ------------------------------------------------------------------------------------------------
// Ed25519 签名校验 (Stellar strkey 编码的公钥)
// 只做验证，不持有私钥。
// ------------------------------------------------------------------------------------------------

const (
	// Ed25519SignatureSize 原始签名长度 (base64 后为 88 个字符)
	Ed25519SignatureSize = 64
	ed25519PublicKeySize = 32
)

var (
	ErrInvalidPublicKey   = errors.New("invalid public key")
	ErrMalformedSignature = errors.New("malformed signature")
	ErrSignatureMismatch  = errors.New("signature does not verify")
)

// ValidatePublicKey 校验 G... 格式的 ed25519 公钥
func ValidatePublicKey(publicKey string) error {
	_, err := decodePublicKey(publicKey)
	return err
}

// ValidateAccountID 账户 ID 与主签名公钥使用相同的 strkey 编码
func ValidateAccountID(accountID string) error {
	if _, err := decodePublicKey(accountID); err != nil {
		return fmt.Errorf("invalid account id %q: %w", accountID, err)
	}
	return nil
}

// Hint 返回公钥原始字节的最后 4 个字节，用于在验签前快速匹配签名者
func Hint(publicKey string) ([4]byte, error) {
	var hint [4]byte
	raw, err := decodePublicKey(publicKey)
	if err != nil {
		return hint, err
	}
	copy(hint[:], raw[len(raw)-4:])
	return hint, nil
}

// DecodeSignature base64 解码并检查长度
func DecodeSignature(signatureB64 string) ([]byte, error) {
	sig, err := base64.StdEncoding.DecodeString(signatureB64)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedSignature, err)
	}
	if len(sig) != Ed25519SignatureSize {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrMalformedSignature, Ed25519SignatureSize, len(sig))
	}
	return sig, nil
}

// VerifyEd25519 验证 signature 是否为 publicKey 对 message 的签名。
// 公钥非法、签名长度错误、验签失败分别返回不同的错误，调用方据此区分提示信息。
func VerifyEd25519(publicKey string, message, signature []byte) error {
	if _, err := decodePublicKey(publicKey); err != nil {
		return err
	}
	if len(signature) != Ed25519SignatureSize {
		return fmt.Errorf("%w: expected %d bytes, got %d", ErrMalformedSignature, Ed25519SignatureSize, len(signature))
	}

	kp, err := keypair.Parse(publicKey)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}
	if err := kp.Verify(message, signature); err != nil {
		return ErrSignatureMismatch
	}
	return nil
}

func decodePublicKey(publicKey string) ([]byte, error) {
	if publicKey == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidPublicKey)
	}
	raw, err := strkey.Decode(strkey.VersionByteAccountID, publicKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}
	if len(raw) != ed25519PublicKeySize {
		return nil, fmt.Errorf("%w: unexpected key length %d", ErrInvalidPublicKey, len(raw))
	}
	return raw, nil
}
