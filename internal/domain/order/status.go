package order

import (
	"github.com/go-faster/errors"
)

// Status is an order's position in its lifecycle. The Composer only ever
// creates orders in StatusNew; transitions are driven by the order
// management surface.
type Status string

const (
	StatusNew        Status = "new"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
	StatusRefunded   Status = "refunded"
)

var (
	// ErrInvalidStatus is returned when a status string is not a known status.
	ErrInvalidStatus = errors.New("invalid order status")
	// ErrStatusConflict is returned when a transition is not permitted from
	// the order's current status.
	ErrStatusConflict = errors.New("illegal status transition")
)

// transitions lists the permitted next statuses for each status.
// Terminal statuses (cancelled, refunded) have no successors.
var transitions = map[Status][]Status{
	StatusNew:        {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusShipped, StatusCancelled},
	StatusShipped:    {StatusDelivered},
	StatusDelivered:  {StatusRefunded},
	StatusCancelled:  {},
	StatusRefunded:   {},
}

// ParseStatus validates a status string.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if _, ok := transitions[st]; !ok {
		return "", errors.Wrapf(ErrInvalidStatus, "%q", s)
	}
	return st, nil
}

// CanTransitionTo reports whether the state machine permits moving from s
// to next.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}
