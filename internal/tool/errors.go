package tool

import "errors"

// ErrUnknownTool is returned when an invocation names an unregistered
// capability.
var ErrUnknownTool = errors.New("unknown tool")

// ErrConfirmationRequired is returned when an irreversible tool is invoked
// outside the confirmed execution path.
var ErrConfirmationRequired = errors.New("confirmation required before invoking irreversible tool")
