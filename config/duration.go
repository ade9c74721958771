package config

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Duration 支持字符串与毫秒数两种写法的时长
//
// 支持的格式:
//   - 字符串: "3s", "500ms", "1m" 等
//   - 数字: 毫秒数，与命令行 -w 的单位一致
//
// JSON: {"timeout": "3s"} 或 {"timeout": 3000}
type Duration time.Duration

// Milliseconds 由毫秒数构造
func Milliseconds(ms int64) Duration {
	return Duration(time.Duration(ms) * time.Millisecond)
}

// UnmarshalJSON 实现 json.Unmarshaler 接口
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return d.UnmarshalText([]byte(s))
	}

	var ms int64
	if err := json.Unmarshal(data, &ms); err == nil {
		*d = Milliseconds(ms)
		return nil
	}

	return fmt.Errorf("duration must be a string (e.g. \"3s\") or a number of milliseconds")
}

// UnmarshalText 解析字符串；纯数字按毫秒处理
func (d *Duration) UnmarshalText(text []byte) error {
	s := string(text)
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		*d = Milliseconds(ms)
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

// MarshalJSON 输出为字符串
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// Duration 返回底层的 time.Duration 值
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// String 返回字符串表示
func (d Duration) String() string {
	return time.Duration(d).String()
}
