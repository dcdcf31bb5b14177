package types

// LinkState is the wireless link's position in the connectivity state
// machine. Exactly one state holds at any time.
type LinkState int

const (
	// StateNoCredentials means no endpoint or credentials are configured;
	// the device will not attempt to connect until configuration changes.
	StateNoCredentials LinkState = iota
	// StateDisconnected means the link is down and a connect attempt may
	// be issued once the minimum retry interval has elapsed.
	StateDisconnected
	// StateConnecting means a connect attempt is in flight; its result is
	// observed on a later tick.
	StateConnecting
	// StateConnected means the link is established and uploads may proceed.
	StateConnected
)

func (s LinkState) String() string {
	switch s {
	case StateNoCredentials:
		return "no_credentials"
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// DeviceStatus is a read-only snapshot of the agent's internals for
// diagnostic surfaces (status page, serial console). Taking a snapshot
// has no side effects.
type DeviceStatus struct {
	DeviceID     string    `json:"device_id"`
	Link         LinkState `json:"-"`
	LinkName     string    `json:"link"`
	QueueSize    int       `json:"queue_size"`
	QueuePresent bool      `json:"queue_present"`
	LastCycle    string    `json:"last_cycle"`
	LastUploaded int       `json:"last_uploaded"`
}
