package logger

// NopLogger implements Logger by discarding everything. Used by package
// tests that need a Logger but don't assert on its output.
type NopLogger struct{}

// NewNopLogger returns a Logger that discards all output.
func NewNopLogger() *NopLogger {
	return &NopLogger{}
}

func (l *NopLogger) Debug(msg string, fields ...Field) {}
func (l *NopLogger) Info(msg string, fields ...Field)  {}
func (l *NopLogger) Warn(msg string, fields ...Field)  {}
func (l *NopLogger) Error(msg string, fields ...Field) {}
func (l *NopLogger) Fatal(msg string, fields ...Field) {}

func (l *NopLogger) WithFields(fields ...Field) Logger { return l }
func (l *NopLogger) WithError(err error) Logger         { return l }
func (l *NopLogger) Sync() error                        { return nil }

var _ Logger = (*NopLogger)(nil)
