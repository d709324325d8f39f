package checkout

type Status string

const (
	StatusCollectingAddress Status = "COLLECTING_ADDRESS"
	StatusResolvingAddress  Status = "RESOLVING_ADDRESS"
	StatusPlacingOrder      Status = "PLACING_ORDER"
	StatusCompleted         Status = "COMPLETED"
	StatusFailed            Status = "FAILED"
)

var transitions = map[Status][]Status{
	StatusCollectingAddress: {StatusResolvingAddress, StatusPlacingOrder, StatusFailed},
	StatusResolvingAddress:  {StatusPlacingOrder, StatusFailed},
	StatusPlacingOrder:      {StatusCompleted, StatusFailed},
}

func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// String representation (for logging)
func (s Status) String() string {
	return string(s)
}

func CanTransitionTo(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
