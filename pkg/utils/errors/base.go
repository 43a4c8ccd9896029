package errors

// Common errors shared by all components.
var (
	// OK indicates success.
	OK = Register(New(0, "Success", "成功"))

	ErrUnknown      = NewInternalErr(ServiceCommon, 1, "Unknown error", "未知错误")
	ErrInternal     = NewInternalErr(ServiceCommon, 2, "Internal error", "内部错误")
	ErrInvalidParam = NewRequestErr(ServiceCommon, 1, "Invalid parameter", "参数无效")
	ErrNotFound     = NewNotFoundErr(ServiceCommon, 1, "Resource not found", "资源不存在")
	ErrTimeout      = NewTimeoutErr(ServiceCommon, 1, "Operation timeout", "操作超时")
	ErrCanceled     = NewInternalErr(ServiceCommon, 3, "Operation canceled", "操作已取消")
)
