package model

import "time"

// ExchangeState is a step of one intercepted request/response exchange
type ExchangeState string

const (
	StateAwaitRequest       ExchangeState = "AWAIT_REQUEST"
	StateSerialize          ExchangeState = "SERIALIZE"
	StateTransportSend      ExchangeState = "TRANSPORT_SEND"
	StateAwaitRelayResponse ExchangeState = "AWAIT_RELAY_RESPONSE"
	StateTransportReceive   ExchangeState = "TRANSPORT_RECEIVE"
	StateDeserialize        ExchangeState = "DESERIALIZE"
	StateReplay             ExchangeState = "REPLAY"
	StateClose              ExchangeState = "CLOSE"
)

// Exchange tracks one client connection through the tunnel
type Exchange struct {
	// ID is the unique exchange ID
	ID string
	// State is the current step
	State ExchangeState
	// Started is when the request was captured
	Started time.Time
	// Err is the error that sent the exchange to REPLAY early, if any
	Err error
}

// NewExchange creates a new Exchange in AWAIT_REQUEST
func NewExchange(id string) *Exchange {
	return &Exchange{
		ID:      id,
		State:   StateAwaitRequest,
		Started: time.Now(),
	}
}

// SetState moves the exchange to state
func (e *Exchange) SetState(state ExchangeState) {
	e.State = state
}

// Fail records err and jumps to REPLAY
func (e *Exchange) Fail(err error) {
	e.Err = err
	e.State = StateReplay
}

// Elapsed returns the time since the request was captured
func (e *Exchange) Elapsed() time.Duration {
	return time.Since(e.Started)
}
