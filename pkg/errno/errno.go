package errno

import (
	"errors"
	"net/http"
)

// Errno defines the error code logic
type Errno struct {
	Code    int
	Message string
	Status  int    // HTTP 状态码
	Ref     string // 关联资源 ID (例如重复提交时已存在的记录 ID)
}

func (e Errno) Error() string {
	return e.Message
}

// Is 按 Code 比较，WithMessage / WithRef 派生出的错误仍然匹配原始哨兵错误
func (e Errno) Is(target error) bool {
	var t Errno
	switch typed := target.(type) {
	case Errno:
		t = typed
	case *Errno:
		t = *typed
	default:
		return false
	}
	return e.Code == t.Code
}

// WithMessage 返回一个替换了 Message 的副本
func (e Errno) WithMessage(msg string) Errno {
	e.Message = msg
	return e
}

// WithRef 返回一个带有关联资源 ID 的副本
func (e Errno) WithRef(ref string) Errno {
	e.Ref = ref
	return e
}

// HTTPStatus returns the status to write for this error, defaulting to 500.
func (e Errno) HTTPStatus() int {
	if e.Status == 0 {
		return http.StatusInternalServerError
	}
	return e.Status
}

// Decode tries to convert an error to Errno
func Decode(err error) (int, string) {
	if err == nil {
		return OK.Code, OK.Message
	}
	e := From(err)
	return e.Code, e.Message
}

// From 从错误链中提取 Errno，找不到时包装为 InternalServerError
func From(err error) Errno {
	var typed Errno
	if errors.As(err, &typed) {
		return typed
	}
	var ptr *Errno
	if errors.As(err, &ptr) && ptr != nil {
		return *ptr
	}
	return InternalServerError.WithMessage(err.Error())
}

// Common Errors
var (
	OK                  = Errno{Code: 0, Message: "Success", Status: http.StatusOK}
	InternalServerError = Errno{Code: 10001, Message: "Internal server error", Status: http.StatusInternalServerError}
	ErrBind             = Errno{Code: 10002, Message: "Error occurred while binding the request body to the struct", Status: http.StatusBadRequest}
	ErrDatabase         = Errno{Code: 10004, Message: "Database error", Status: http.StatusInternalServerError}
	ErrUnavailable      = Errno{Code: 10005, Message: "Service temporarily unavailable", Status: http.StatusServiceUnavailable}
)

// Multisig Errors (30000+)
var (
	// 400
	ErrInvalidAccount        = Errno{Code: 30101, Message: "invalid account id", Status: http.StatusBadRequest}
	ErrInvalidPublicKey      = Errno{Code: 30102, Message: "invalid signer public key", Status: http.StatusBadRequest}
	ErrInvalidSignature      = Errno{Code: 30103, Message: "signature must be base64 encoded 64 bytes", Status: http.StatusBadRequest}
	ErrInvalidEnvelope       = Errno{Code: 30104, Message: "invalid transaction envelope", Status: http.StatusBadRequest}
	ErrSignatureVerification = Errno{Code: 30105, Message: "signature verification failed", Status: http.StatusBadRequest}
	ErrUnauthorizedSigner    = Errno{Code: 30106, Message: "not an authorized signer", Status: http.StatusBadRequest}
	ErrInvalidState          = Errno{Code: 30107, Message: "invalid transaction status for this operation", Status: http.StatusBadRequest}
	ErrNotReady              = Errno{Code: 30108, Message: "transaction is not ready for submission", Status: http.StatusBadRequest}
	ErrInvalidStatusFilter   = Errno{Code: 30109, Message: "invalid status filter", Status: http.StatusBadRequest}

	// 404
	ErrAccountNotFound     = Errno{Code: 30201, Message: "account not found", Status: http.StatusNotFound}
	ErrTransactionNotFound = Errno{Code: 30202, Message: "pending transaction not found", Status: http.StatusNotFound}

	// 409
	ErrDuplicateTransaction = Errno{Code: 30301, Message: "transaction already exists", Status: http.StatusConflict}
	ErrDuplicateSigner      = Errno{Code: 30302, Message: "signer has already signed this transaction", Status: http.StatusConflict}
	ErrSubmissionInProgress = Errno{Code: 30303, Message: "transaction submission already in progress", Status: http.StatusConflict}
	ErrBroadcastUnresolved  = Errno{Code: 30304, Message: "a previous broadcast has no recorded outcome", Status: http.StatusConflict}

	// 503
	ErrLedgerUnavailable = Errno{Code: 30401, Message: "ledger network unavailable", Status: http.StatusServiceUnavailable}
)
