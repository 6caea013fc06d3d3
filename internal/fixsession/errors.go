package fixsession

import "errors"

// Failure taxonomy, per the error-handling design: each is a distinct
// sentinel so callers can branch with errors.Is.
var (
	ErrConnectTimeout = errors.New("fixsession: connect timeout")
	ErrLogonTimeout   = errors.New("fixsession: logon timeout")
	ErrLogonRejected  = errors.New("fixsession: logon rejected")
	ErrNotConnected   = errors.New("fixsession: not connected")
	ErrAlreadyRunning = errors.New("fixsession: session already running")
	ErrWriteFailure   = errors.New("fixsession: write failure")
)
