package validator

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"multisig-core/pkg/crypto_util"
)

var (
	validate *validator.Validate
	initOnce sync.Once
)

// Init 在 gin 的校验引擎上注册 Stellar 相关的自定义 tag (重复调用安全)
func Init() {
	initOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		validate = v
		_ = v.RegisterValidation("stellar_account", func(fl validator.FieldLevel) bool {
			return crypto_util.ValidateAccountID(fl.Field().String()) == nil
		})
		_ = v.RegisterValidation("stellar_pubkey", func(fl validator.FieldLevel) bool {
			return crypto_util.ValidatePublicKey(fl.Field().String()) == nil
		})
		_ = v.RegisterValidation("stellar_signature", func(fl validator.FieldLevel) bool {
			_, err := crypto_util.DecodeSignature(fl.Field().String())
			return err == nil
		})
	})
}

// GetErrorMsg translates validation errors into user-friendly messages
func GetErrorMsg(err error) string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		if err != nil {
			return "请求参数错误: " + err.Error()
		}
		return "请求参数错误"
	}

	errMsgs := make([]string, 0, len(validationErrors))
	for _, e := range validationErrors {
		field := e.Field()
		param := e.Param()

		switch e.Tag() {
		case "required":
			errMsgs = append(errMsgs, fmt.Sprintf("%s 不能为空", field))
		case "min":
			errMsgs = append(errMsgs, fmt.Sprintf("%s 至少为 %s", field, param))
		case "max":
			errMsgs = append(errMsgs, fmt.Sprintf("%s 不能超过 %s", field, param))
		case "oneof":
			errMsgs = append(errMsgs, fmt.Sprintf("%s 必须是 [%s] 之一", field, param))
		case "stellar_account":
			errMsgs = append(errMsgs, fmt.Sprintf("%s 不是合法的 Stellar 账户 ID", field))
		case "stellar_pubkey":
			errMsgs = append(errMsgs, fmt.Sprintf("%s 不是合法的 ed25519 公钥", field))
		case "stellar_signature":
			errMsgs = append(errMsgs, fmt.Sprintf("%s 必须是 base64 编码的 %d 字节签名", field, crypto_util.Ed25519SignatureSize))
		default:
			errMsgs = append(errMsgs, fmt.Sprintf("%s 校验失败 (%s)", field, e.Tag()))
		}
	}
	return strings.Join(errMsgs, "; ")
}
