package orders

type Status string

const (
	StatusPending  Status = "PENDING"
	StatusPaid     Status = "PAID"
	StatusCanceled Status = "CANCELED"
)

// PENDING is the only status with outgoing edges; PAID and CANCELED are final.
var validNext = map[Status]map[Status]bool{
	StatusPending:  {StatusPaid: true, StatusCanceled: true},
	StatusPaid:     {},
	StatusCanceled: {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}
