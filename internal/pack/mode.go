package pack

// Mode is one of the seven tagged pack operational states.
type Mode int

const (
	// Ready is the initial state: contactors open, eligible for connect.
	Ready Mode = iota
	// Connecting is the pre-charge dwell between RequestConnect and
	// contactor closure.
	Connecting
	// Connected is contactors closed, participating in the array's
	// Kirchhoff solve.
	Connected
	// Fault is the terminal-within-cycle state; exits only via a
	// successful ManualFaultReset.
	Fault
	// Off, PowerSave and NotReady are reserved state labels present for
	// interface fidelity. No transitions into or out of them are
	// defined by this core.
	Off
	PowerSave
	NotReady
)

func (m Mode) String() string {
	switch m {
	case Ready:
		return "Ready"
	case Connecting:
		return "Connecting"
	case Connected:
		return "Connected"
	case Fault:
		return "Fault"
	case Off:
		return "Off"
	case PowerSave:
		return "PowerSave"
	case NotReady:
		return "NotReady"
	default:
		return "Unknown"
	}
}
