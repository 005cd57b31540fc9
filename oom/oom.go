// Package oom is a ResourceExhausted signaling channel: a message sent with
// Notify is observable on Ch by a supervising goroutine (the process-exit
// path, out of this core's scope). No other package in this module calls
// Notify, so frame or swap exhaustion inside the core is not signaled here;
// it surfaces only as the error or panic of the failing call.
//
// Grounded on biscuit/src/oommsg/oommsg.go's OomCh/Oommsg_t pair, kept almost
// verbatim: it was already a minimal, portable notify-and-resume channel
// with nothing runtime-intrinsic in it.
package oom

// Msg is sent on Ch when a resource (frame pool or swap) is exhausted.
type Msg struct {
	// Need is the number of pages the failed request wanted.
	Need int
	// Resume is closed or sent on to let the notifying goroutine continue
	// once the observer has reacted (e.g. logged and begun process exit).
	Resume chan bool
}

// Ch is the system-wide ResourceExhausted notification channel.
var Ch = make(chan Msg)

// Notify sends a Msg for need pages and blocks until the observer resumes
// it, or returns immediately if nothing is listening on Ch.
func Notify(need int) {
	resume := make(chan bool)
	select {
	case Ch <- Msg{Need: need, Resume: resume}:
		<-resume
	default:
	}
}
