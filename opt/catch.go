package opt

import (
	"runtime"

	"github.com/cockroachdb/errors"
)

// CatchOptimizerError converts a value recovered from a panic raised inside
// plan search into an error. Plan search propagates errors internally as
// panics rather than threading error returns through every memo and rule
// function. Use it at API boundaries:
//
//	defer func() {
//		if r := recover(); r != nil {
//			err = opt.CatchOptimizerError(r)
//		}
//	}()
func CatchOptimizerError(r interface{}) error {
	err, ok := r.(error)
	if !ok {
		// Not an error object. The go runtime throws strings for serious
		// internal problems which we cannot recover from.
		panic(r)
	}
	if errors.HasInterface(err, (*runtime.Error)(nil)) {
		// Convert runtime errors (nil dereference, index out of range) to
		// assertion failures, which include stacks.
		return errors.HandleAsAssertionFailure(err)
	}
	return err
}
