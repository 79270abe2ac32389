package errors

import (
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

type ErrCode int
type HostfsErr struct {
	Code ErrCode
	Msg  string
}

func (e *HostfsErr) Error() string {
	return fmt.Sprintf("[%d] %s", e.Code, e.Msg)
}

func new(code ErrCode, msg string) *HostfsErr {
	return &HostfsErr{
		Code: code,
		Msg:  msg,
	}
}

const (
	sourceUnavailable ErrCode = iota + 1
	sourceOpen
	sourceRead
	invalid
	configInvalid
	mountFatal
)

// Setup errors. They abort a run before any mount is attempted.
var (
	SourceUnavailable = new(sourceUnavailable, "can not probe for currently mounted host file systems")
	SourceOpenError   = new(sourceOpen, "could not open mount table for reading")
	SourceReadError   = new(sourceRead, "could not read mount table")
	InvalidRoot       = new(invalid, "invalid container root")
	ConfigInvalid     = new(configInvalid, "invalid hostfs configuration")
)

var (
	MountFatal = new(mountFatal, "privileged bind mount failed")
)

// FatalError reports a failed privileged bind mount. Callers must stop the
// whole operation when they see it.
type FatalError struct {
	Source string
	Target string
	Err    error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("%s: binding %s to %s: %v", MountFatal, e.Source, e.Target, e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

func (e *FatalError) Is(target error) bool {
	return target == MountFatal
}

// IsFatal reports whether err, or anything it wraps, is a FatalError.
func IsFatal(err error) bool {
	var fe *FatalError
	return As(err, &fe)
}

// Thin aliases so callers only import one errors package.
var (
	Is     = pkgerrors.Is
	As     = pkgerrors.As
	Cause  = pkgerrors.Cause
	Wrap   = pkgerrors.Wrap
	Wrapf  = pkgerrors.Wrapf
	Errorf = pkgerrors.Errorf
)
