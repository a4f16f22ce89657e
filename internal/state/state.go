package state

import "time"

// State represents a conversation state.
type State string

const (
	// StateChoosing is the initial and resting state: the user browses the catalog.
	StateChoosing State = "choosing"
	// StateConfirming indicates that a product is selected and awaits purchase confirmation.
	StateConfirming State = "confirming"
	// StateAwaitingPayerName indicates that the next free text is the PIX account holder name.
	StateAwaitingPayerName State = "awaiting_payer_name"
)

// States lists every known state in a stable order.
var States = []State{
	StateChoosing,
	StateConfirming,
	StateAwaitingPayerName,
}

// Session captures the conversation state of a single Telegram user.
type Session struct {
	UserID          int64
	State           State
	SelectedProduct string
	PayerName       string
	// Ticket identifies the payment notice awaiting an admin decision.
	Ticket    string
	UpdatedAt time.Time
}

// HasSelection reports whether a product code is stored on the session.
func (s Session) HasSelection() bool {
	return s.SelectedProduct != ""
}

// ClearSelection drops the selected product, payer name and pending ticket.
func (s *Session) ClearSelection() {
	s.SelectedProduct = ""
	s.PayerName = ""
	s.Ticket = ""
}
