package config

// 输出格式
const (
	FormatText = "text"
	FormatJSON = "json"
)

// ReportConfig 输出配置
type ReportConfig struct {
	// Format "text" 或 "json"
	Format string `json:"format"`

	// MetricsFile 非空时以 Prometheus textfile 格式写入探测指标
	MetricsFile string `json:"metrics_file,omitempty"`
}

// DefaultReportConfig 默认文本输出
func DefaultReportConfig() ReportConfig {
	return ReportConfig{Format: FormatText}
}

// Validate 验证输出配置
func (c ReportConfig) Validate() error {
	if c.Format != FormatText && c.Format != FormatJSON {
		return invalid("report.format", "must be %q or %q, got %q", FormatText, FormatJSON, c.Format)
	}
	return nil
}
