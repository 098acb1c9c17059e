package errno

import "fmt"

// code=0 请求成功
// code=4xx 客户端请求错误
// code=5xx 服务器端错误
// code=2xxxx 业务处理错误码

type Errno struct {
	Code    int
	Message string
}

// Error 实现error接口
func (e *Errno) Error() string {
	return e.Message
}

// BizError carries an Errno together with the underlying cause.
type BizError struct {
	Errno *Errno
	Cause error
}

// NewBizError wraps cause under the given code.
func NewBizError(code *Errno, cause error) *BizError {
	return &BizError{Errno: code, Cause: cause}
}

func (e *BizError) Error() string {
	if e.Cause == nil {
		return e.Errno.Message
	}
	return fmt.Sprintf("%s: %v", e.Errno.Message, e.Cause)
}

func (e *BizError) Unwrap() error {
	return e.Cause
}

var (
	OK = &Errno{Code: 200, Message: "Success"}

	ErrInvalidParam = &Errno{Code: 400, Message: "Invalid parameter"}
	ErrUnauthorized = &Errno{Code: 401, Message: "Unauthorized"}
	ErrForbidden    = &Errno{Code: 403, Message: "Forbidden"}
	ErrNotFound     = &Errno{Code: 404, Message: "Not found"}

	ErrInternalServer = &Errno{Code: 500, Message: "Internal server error"}
	ErrStorage        = &Errno{Code: 502, Message: "Object storage error"}
	ErrUnknown        = &Errno{Code: 510, Message: "Unknown error"}

	// 业务错误码
	ErrMissingParam         = &Errno{Code: 20001, Message: "Missing required parameter"}
	ErrFileNameIllegal      = &Errno{Code: 20002, Message: "File name is illegal"}
	ErrUnsupportedExtension = &Errno{Code: 20003, Message: "Only mp4 and mkv sources are accepted"}
	ErrUploadError          = &Errno{Code: 20004, Message: "Upload error"}
	ErrObjectNotFound       = &Errno{Code: 20005, Message: "Object not found"}

	// 打包任务错误码
	ErrSourceRequired         = &Errno{Code: 20010, Message: "Source locator is required"}
	ErrDestinationRequired    = &Errno{Code: 20011, Message: "Destination path is required"}
	ErrInvalidRendition       = &Errno{Code: 20012, Message: "Invalid rendition specification"}
	ErrQueueFull              = &Errno{Code: 20013, Message: "Job queue is full"}
	ErrSourceNotFound         = &Errno{Code: 20014, Message: "Source object does not exist"}
	ErrInvalidEncryptionURL   = &Errno{Code: 20015, Message: "Encryption key URL is invalid"}
	ErrInvalidNotificationURL = &Errno{Code: 20016, Message: "Notification URL is invalid"}
)

// Is lets errors.Is match a BizError against its code.
func (e *BizError) Is(target error) bool {
	t, ok := target.(*Errno)
	return ok && t == e.Errno
}
