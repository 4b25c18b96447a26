package enums

// DispatchOutcome is the result surfaced to a driver action endpoint.
type DispatchOutcome string

const (
	DispatchOutcomeAssigned DispatchOutcome = "assigned"
	DispatchOutcomeConflict DispatchOutcome = "conflict"
	DispatchOutcomeRefused  DispatchOutcome = "refused"
)

// String implements fmt.Stringer.
func (d DispatchOutcome) String() string {
	return string(d)
}
