package connectivity

// Link is the wireless transport driven by the Manager. Implementations
// must make StartConnect non-blocking: it registers the attempt and
// returns immediately, and the Manager observes the result on later
// ticks through Connected and AttemptDone.
type Link interface {
	// Configured reports whether the link has an endpoint and any
	// credentials it needs. An unconfigured link is never dialed.
	Configured() bool

	// StartConnect begins a connect attempt without blocking. An error
	// means the attempt could not even be started.
	StartConnect() error

	// Connected reports whether the link is currently established.
	Connected() bool

	// AttemptDone reports whether the most recent StartConnect attempt
	// has finished, and the error it finished with if it failed.
	AttemptDone() (bool, error)

	// Close tears the link down. Safe to call on a link that never
	// connected.
	Close()
}
