// Package vrmerr classifies the errors and warnings produced by the VRM codec.
package vrmerr

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Kind is the error class a host can key its UI message on.
type Kind int

const (
	KindUnknown Kind = iota
	ContainerFormat
	LicenseRestricted
	UnsupportedCompression
	UnsupportedPrimitiveMode
	UnresolvedHumanBone
	UnknownMaterialProperty
	UnknownTexture
	ImageWriteCollision
	OutOfBounds
	UnsupportedComponentType
	InvalidDocument
	Canceled
)

var kindNames = map[Kind]string{
	KindUnknown:              "Unknown",
	ContainerFormat:          "ContainerFormatError",
	LicenseRestricted:        "LicenseRestricted",
	UnsupportedCompression:   "UnsupportedCompression",
	UnsupportedPrimitiveMode: "UnsupportedPrimitiveMode",
	UnresolvedHumanBone:      "UnresolvedHumanBone",
	UnknownMaterialProperty:  "UnknownMaterialProperty",
	UnknownTexture:           "UnknownTexture",
	ImageWriteCollision:      "ImageWriteCollision",
	OutOfBounds:              "OutOfBounds",
	UnsupportedComponentType: "UnsupportedComponentType",
	InvalidDocument:          "InvalidDocument",
	Canceled:                 "Canceled",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Fatal reports whether an error of this kind aborts the whole operation.
func (k Kind) Fatal() bool {
	switch k {
	case UnknownMaterialProperty, UnknownTexture, ImageWriteCollision:
		return false
	}
	return true
}

// Error is a classified error.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%v: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New returns a classified error with a formatted message.
func New(kind Kind, op string, format string, args ...interface{}) error {
	return &Error{Kind: kind, Op: op, Err: errors.Errorf(format, args...)}
}

// Wrap classifies err. A nil err yields nil.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: errors.WithStack(err)}
}

// Wrapf classifies err and annotates it with a message.
func Wrapf(kind Kind, op string, err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: errors.Wrapf(err, format, args...)}
}

// KindOf returns the kind of the outermost classified error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Warning is a recoverable issue reported alongside a successful result.
type Warning struct {
	Kind    Kind
	Subject string
	Message string
}

func (w Warning) String() string {
	if w.Subject == "" {
		return fmt.Sprintf("%v: %s", w.Kind, w.Message)
	}
	return fmt.Sprintf("%v: %s: %s", w.Kind, w.Subject, w.Message)
}

// Warnings collects recoverable issues and logs each one as it is added.
type Warnings struct {
	list   []Warning
	logger logrus.FieldLogger
}

// NewWarnings returns a collector logging to logger; a nil logger uses the
// logrus standard logger.
func NewWarnings(logger logrus.FieldLogger) *Warnings {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Warnings{logger: logger}
}

// Add records a warning. Adding to a nil collector only discards it.
func (w *Warnings) Add(kind Kind, subject string, format string, args ...interface{}) {
	if w == nil {
		return
	}
	msg := fmt.Sprintf(format, args...)
	w.list = append(w.list, Warning{Kind: kind, Subject: subject, Message: msg})
	w.logger.WithFields(logrus.Fields{"kind": kind.String(), "subject": subject}).Warn(msg)
}

// AddError records a recoverable error as a warning.
func (w *Warnings) AddError(subject string, err error) {
	w.Add(KindOf(err), subject, "%v", err)
}

func (w *Warnings) List() []Warning {
	if w == nil {
		return nil
	}
	return append([]Warning(nil), w.list...)
}

func (w *Warnings) Len() int {
	if w == nil {
		return 0
	}
	return len(w.list)
}

// Has reports whether a warning of the given kind was collected.
func (w *Warnings) Has(kind Kind) bool {
	if w == nil {
		return false
	}
	for _, x := range w.list {
		if x.Kind == kind {
			return true
		}
	}
	return false
}

// Merge appends the warnings of o without logging them again.
func (w *Warnings) Merge(o *Warnings) {
	if w == nil || o == nil {
		return
	}
	w.list = append(w.list, o.list...)
}
