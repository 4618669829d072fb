package telemetry

// Logger is the logging interface used throughout this module. It's
// deliberately small: callers chain WithField/WithError to attach
// structured context, then call one of the leveled methods with a
// message.
type Logger interface {
	WithField(key string, value any) Logger
	WithError(err error) Logger
	Debug(msg string)
	Warn(msg string)
	Error(msg string)
}

// Discard implements a Logger that does nothing. It's the default used
// by pager.Config, streamingpager.Config, and mediator.Config when no
// Logger is supplied.
type Discard struct{}

var _ Logger = Discard{}

func (Discard) WithField(string, any) Logger { return Discard{} }
func (Discard) WithError(error) Logger        { return Discard{} }
func (Discard) Debug(string)                  {}
func (Discard) Warn(string)                   {}
func (Discard) Error(string)                  {}
