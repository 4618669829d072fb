package telemetry

import (
	"io"
	"os"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// Logiface adapts a *logiface.Logger[*stumpy.Event] to the Logger
// interface, the way sql/log.Logrus adapts a logrus.Logger. Field
// accumulation is represented as a chain of closures applied to each
// new builder at log time, since logiface's Context/Builder types are
// not safe to retain across goroutines.
type Logiface struct {
	base   *logiface.Logger[*stumpy.Event]
	fields []func(*logiface.Builder[*stumpy.Event]) *logiface.Builder[*stumpy.Event]
}

var _ Logger = Logiface{}

// NewLogiface constructs a Logiface writing newline-delimited JSON to
// w, at minimum level Debug. A nil w defaults to os.Stderr.
func NewLogiface(w io.Writer) Logiface {
	if w == nil {
		w = os.Stderr
	}
	return Logiface{base: logiface.New[*stumpy.Event](
		stumpy.WithStumpy(stumpy.WithWriter(w)),
		logiface.WithLevel[*stumpy.Event](logiface.LevelDebug),
	)}
}

func (x Logiface) WithField(key string, value any) Logger {
	fields := append(append([]func(*logiface.Builder[*stumpy.Event]) *logiface.Builder[*stumpy.Event]{}, x.fields...), func(b *logiface.Builder[*stumpy.Event]) *logiface.Builder[*stumpy.Event] {
		return b.Any(key, value)
	})
	return Logiface{base: x.base, fields: fields}
}

func (x Logiface) WithError(err error) Logger {
	fields := append(append([]func(*logiface.Builder[*stumpy.Event]) *logiface.Builder[*stumpy.Event]{}, x.fields...), func(b *logiface.Builder[*stumpy.Event]) *logiface.Builder[*stumpy.Event] {
		return b.Err(err)
	})
	return Logiface{base: x.base, fields: fields}
}

func (x Logiface) Debug(msg string) { x.log(x.base.Debug(), msg) }
func (x Logiface) Warn(msg string)  { x.log(x.base.Warning(), msg) }
func (x Logiface) Error(msg string) { x.log(x.base.Err(), msg) }

func (x Logiface) log(b *logiface.Builder[*stumpy.Event], msg string) {
	for _, f := range x.fields {
		b = f(b)
	}
	b.Log(msg)
}
