package logging

// NullLogger discards everything. It is the default for library components
// constructed without a logger.
type NullLogger struct{}

func NewNullLogger() *NullLogger {
	return &NullLogger{}
}

func (NullLogger) Verbose(string, ...interface{}) {}
func (NullLogger) Info(string, ...interface{})    {}
func (NullLogger) Error(string, ...interface{})   {}
