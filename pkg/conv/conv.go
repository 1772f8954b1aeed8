// Package conv 提供装载表格时的值转换：DuckDB / YAML 行里的 any 值转为物品 ID 或排序分数。
package conv

import (
	"strconv"
)

// ToFloat64 将 any 转为 float64。
// 支持 float64、float32、各宽度整数、数字字符串；bool 视为 1.0/0.0。
func ToFloat64(v any) (float64, bool) {
	if v == nil {
		return 0, false
	}
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case int32:
		return float64(val), true
	case int16:
		return float64(val), true
	case int8:
		return float64(val), true
	case uint64:
		return float64(val), true
	case uint32:
		return float64(val), true
	case uint:
		return float64(val), true
	case string:
		f, err := strconv.ParseFloat(val, 64)
		return f, err == nil
	case bool:
		if val {
			return 1.0, true
		}
		return 0.0, true
	default:
		return 0, false
	}
}

// ToID 将 any 转为物品/用户 ID。
// 字符串与 []byte 原样保留；整数按十进制输出；整值浮点数（YAML 里的 42.0）输出为 "42"。
// 空字符串、非整值浮点数与其它类型返回 ("", false)。
func ToID(v any) (string, bool) {
	switch val := v.(type) {
	case nil:
		return "", false
	case string:
		return val, val != ""
	case []byte:
		return string(val), len(val) > 0
	case int:
		return strconv.FormatInt(int64(val), 10), true
	case int64:
		return strconv.FormatInt(val, 10), true
	case int32:
		return strconv.FormatInt(int64(val), 10), true
	case int16:
		return strconv.FormatInt(int64(val), 10), true
	case int8:
		return strconv.FormatInt(int64(val), 10), true
	case uint64:
		return strconv.FormatUint(val, 10), true
	case uint32:
		return strconv.FormatUint(uint64(val), 10), true
	case uint:
		return strconv.FormatUint(uint64(val), 10), true
	case float64:
		if val != float64(int64(val)) {
			return "", false
		}
		return strconv.FormatInt(int64(val), 10), true
	case float32:
		if val != float32(int64(val)) {
			return "", false
		}
		return strconv.FormatInt(int64(val), 10), true
	default:
		return "", false
	}
}
