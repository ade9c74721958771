package config

import "time"

// ProbeConfig 探测参数
type ProbeConfig struct {
	// Timeout 每次尝试的等待时长，0 表示无限等待
	Timeout Duration `json:"timeout"`

	// Attempts 超时后的最多尝试次数
	Attempts int `json:"attempts"`

	// Burst 每次尝试发送的份数
	Burst int `json:"burst"`

	// Pace 突发发送的间隔
	Pace Duration `json:"pace,omitempty"`
}

// DefaultProbeConfig 默认探测参数
func DefaultProbeConfig() ProbeConfig {
	return ProbeConfig{
		Timeout:  Duration(3 * time.Second),
		Attempts: 3,
		Burst:    1,
	}
}

// Validate 验证探测参数
func (c ProbeConfig) Validate() error {
	switch {
	case c.Timeout < 0:
		return invalid("probe.timeout", "must not be negative")
	case c.Attempts < 1:
		return invalid("probe.attempts", "must be at least 1, got %d", c.Attempts)
	case c.Burst < 1 || c.Burst > 16:
		return invalid("probe.burst", "must be between 1 and 16, got %d", c.Burst)
	case c.Pace < 0:
		return invalid("probe.pace", "must not be negative")
	}
	return nil
}
