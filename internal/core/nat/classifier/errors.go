package classifier

// ProbeError 探测过程中的传输失败
type ProbeError struct {
	Step  string
	Cause error
}

func (e *ProbeError) Error() string {
	return "probe " + e.Step + ": " + e.Cause.Error()
}

// Unwrap 解包错误
func (e *ProbeError) Unwrap() error {
	return e.Cause
}
