/*
Halt is the only way this module reports a broken kernel invariant.
An exhausted buffer pool, a lock released without being held or a free of an address
the allocator never handed out cannot be recovered locally, so the caller is stopped
with a diagnostic instead of receiving an error value.

The diagnostic is logged through zap's global logger (kernel.Boot replaces it with the
configured one) and then raised as a panic whose value is an error, so tests can assert
on the message with assert.PanicsWithError.
*/
package common

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Halt stops the caller with the formatted diagnostic
func Halt(format string, args ...interface{}) {
	err := errors.Errorf(format, args...)
	zap.L().Error("halt", zap.Error(err))
	panic(err)
}
