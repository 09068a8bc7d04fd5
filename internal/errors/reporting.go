package errors

import "sync/atomic"

// Reporter receives every built EnhancedError. Implementations must be
// safe for concurrent use and must not block.
type Reporter func(*EnhancedError)

var reporter atomic.Pointer[Reporter]

// SetReporter installs a global error reporter. Passing nil disables
// reporting. Intended to be called once during startup.
func SetReporter(r Reporter) {
	if r == nil {
		reporter.Store(nil)
		return
	}
	reporter.Store(&r)
}

func report(ee *EnhancedError) {
	if r := reporter.Load(); r != nil {
		(*r)(ee)
	}
}
