package util

import (
	"strconv"
)

// MustParseUint 将字符串转换为无符号整数，解析失败时返回 0
func MustParseUint(s string) uint {
	id, _ := strconv.ParseUint(s, 10, 32)
	return uint(id)
}

// ParseTimezoneOffset 解析 tz 查询参数；空串返回 fallback
func ParseTimezoneOffset(s string, fallback int) (int, error) {
	if s == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, Invalid("tz must be an integer number of minutes")
	}
	if v < MinTimezoneOffset || v > MaxTimezoneOffset {
		return 0, Invalid("tz out of range")
	}
	return v, nil
}

// ParseBool 宽松解析布尔查询参数
func ParseBool(s string) bool {
	b, _ := strconv.ParseBool(s)
	return b
}
