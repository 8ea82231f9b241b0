package models

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusChallenge OrderStatus = "challenge"
	StatusPaid      OrderStatus = "paid"
	StatusFailed    OrderStatus = "failed"
	StatusExpired   OrderStatus = "expired"
	StatusCancelled OrderStatus = "cancelled"
)

// AllStatuses lists every state in declaration order.
var AllStatuses = []OrderStatus{
	StatusPending,
	StatusChallenge,
	StatusPaid,
	StatusFailed,
	StatusExpired,
	StatusCancelled,
}

// transitions holds the legal targets of each state. States mapped to an
// empty list are terminal.
var transitions = map[OrderStatus][]OrderStatus{
	StatusPending:   {StatusChallenge, StatusPaid, StatusFailed, StatusExpired, StatusCancelled},
	StatusChallenge: {StatusPaid, StatusFailed},
	StatusPaid:      {},
	StatusFailed:    {},
	StatusExpired:   {},
	StatusCancelled: {},
}

func (s OrderStatus) Valid() bool {
	_, ok := transitions[s]
	return ok
}

func (s OrderStatus) IsTerminal() bool {
	next, ok := transitions[s]
	return ok && len(next) == 0
}

func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, t := range transitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// SourcesOf returns every state that may move to target.
func SourcesOf(target OrderStatus) []OrderStatus {
	var out []OrderStatus
	for _, s := range AllStatuses {
		if s.CanTransitionTo(target) {
			out = append(out, s)
		}
	}
	return out
}

// StatusFromNotification maps a gateway transaction/fraud pair to an order
// status. ok is false for combinations that must not change the order.
func StatusFromNotification(transactionStatus, fraudStatus string) (OrderStatus, bool) {
	if fraudStatus == "" {
		fraudStatus = FraudAccept
	}
	switch transactionStatus {
	case TransactionCapture:
		switch fraudStatus {
		case FraudChallenge:
			return StatusChallenge, true
		case FraudAccept:
			return StatusPaid, true
		}
		return "", false
	case TransactionSettlement:
		return StatusPaid, true
	case TransactionPending:
		return StatusPending, true
	case TransactionDeny, TransactionFailure:
		return StatusFailed, true
	case TransactionExpire:
		return StatusExpired, true
	case TransactionCancel:
		return StatusCancelled, true
	}
	return "", false
}
