package service

import (
	"errors"
	"fmt"
)

// ErrorCode 错误码类型
type ErrorCode int

const (
	// 系统级错误码
	ErrSystem ErrorCode = iota + 1
	ErrConfig
	ErrDatabase
	ErrInvalidInput
	ErrInternal

	// 业务级错误码
	ErrPermissionDenied ErrorCode = iota + 1000 // 设备或认证权限被拒绝
	ErrTransferFailed                           // 网络/存储传输失败（重试已用尽）
	ErrEncodeFailed                             // 本地编码/压缩失败
	ErrNotFound                                 // 成员或资料不存在
	ErrInvalidSelection                         // 合并选择不足
	ErrStorageCorrupt                           // 本地持久化状态损坏
)

// AppError 应用程序错误
type AppError struct {
	Code    ErrorCode // 错误码
	Message string    // 错误消息
	Err     error     // 原始错误
}

// Error 实现error接口
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap 实现errors.Unwrap接口
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewError 创建新的应用程序错误
func NewError(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// CodeOf 提取错误码，非AppError返回ErrInternal
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrInternal
}

// IsCode 检查错误链中是否包含指定错误码
func IsCode(err error, code ErrorCode) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}
