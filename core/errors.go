package core

import (
	"errors"
	"fmt"
)

// DomainError 是领域层的统一错误类型。
//
// 错误分类：
//   - NOT_FOUND：个性化列表/存储 key 不存在，触发降级到热门，不算错误
//   - UNAVAILABLE：历史服务、相似物品服务等依赖不可用或超时，对应来源降级为空列表
//   - INVALID_INPUT：非法 UserID 或 k，在入口处拒绝，是唯一会返回给调用方的错误
type DomainError struct {
	Code    string // 错误代码（如 "NOT_FOUND", "UNAVAILABLE"）
	Message string // 错误消息
	Module  string // 模块名称（如 "store", "history", "similar"）
	Err     error  // 底层原因（可选）
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *DomainError) Unwrap() error { return e.Err }

// Is 让 errors.Is 按 Module + Code 匹配，而不是按指针。
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code && (t.Module == "" || e.Module == t.Module)
}

// GetDomainError 沿错误链获取 DomainError，如果不存在则返回 nil
func GetDomainError(err error) *DomainError {
	var de *DomainError
	if errors.As(err, &de) {
		return de
	}
	return nil
}

// NewDomainError 创建新的领域错误
func NewDomainError(module, code, message string) *DomainError {
	return &DomainError{
		Module:  module,
		Code:    code,
		Message: message,
	}
}

// 错误代码常量
const (
	ErrorCodeNotFound      = "NOT_FOUND"      // 资源不存在
	ErrorCodeUnavailable   = "UNAVAILABLE"    // 依赖不可用
	ErrorCodeInvalidInput  = "INVALID_INPUT"  // 输入无效
	ErrorCodeInternalError = "INTERNAL_ERROR" // 内部错误
)

// 模块名称常量
const (
	ModuleStore     = "store"     // 存储模块
	ModulePersonal  = "personal"  // 个性化离线推荐
	ModulePopular   = "popular"   // 热门推荐
	ModuleHistory   = "history"   // 用户历史
	ModuleSimilar   = "similar"   // 相似物品
	ModuleRecommend = "recommend" // 编排入口
)

// ErrNotFound 是通用的 NOT_FOUND 哨兵，errors.Is(err, ErrNotFound) 对任何模块的 NOT_FOUND 成立。
var ErrNotFound = &DomainError{Code: ErrorCodeNotFound, Message: "not found"}

// NotFound 创建模块级 NOT_FOUND 错误。
func NotFound(module, format string, args ...any) *DomainError {
	return NewDomainError(module, ErrorCodeNotFound, fmt.Sprintf(format, args...))
}

// Unavailable 把依赖调用失败包装成 UNAVAILABLE。
func Unavailable(module string, err error) *DomainError {
	return &DomainError{
		Module:  module,
		Code:    ErrorCodeUnavailable,
		Message: module + ": unavailable",
		Err:     err,
	}
}

// InvalidInput 创建 INVALID_INPUT 错误。
func InvalidInput(format string, args ...any) *DomainError {
	return NewDomainError(ModuleRecommend, ErrorCodeInvalidInput, fmt.Sprintf(format, args...))
}

// IsNotFound 检查错误是否为 NOT_FOUND
func IsNotFound(err error) bool {
	return hasCode(err, ErrorCodeNotFound)
}

// IsUnavailable 检查错误是否为 UNAVAILABLE
func IsUnavailable(err error) bool {
	return hasCode(err, ErrorCodeUnavailable)
}

// IsInvalidInput 检查错误是否为 INVALID_INPUT
func IsInvalidInput(err error) bool {
	return hasCode(err, ErrorCodeInvalidInput)
}

func hasCode(err error, code string) bool {
	if de := GetDomainError(err); de != nil {
		return de.Code == code
	}
	return false
}
