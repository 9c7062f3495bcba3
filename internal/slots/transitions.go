package slots

var transitionMap = map[Status][]Status{
	StatusAvailable: {StatusBooked, StatusDisabled},
	StatusBooked:    {StatusAvailable, StatusDisabled},
	StatusDisabled:  {StatusAvailable},
}

// CanTransition reports whether a status change is legal. A transition to
// the current status is not listed here; callers treat it as a no-op or an
// error depending on the operation.
func CanTransition(from, to Status) bool {
	for _, allowed := range transitionMap[from] {
		if allowed == to {
			return true
		}
	}
	return false
}
