package model

import (
	"encoding/json"
	"fmt"
)

// TransportEnvelope is the JSON body exchanged with the relay in both directions
type TransportEnvelope struct {
	// Payload is the sealed (or base64 encoded) raw HTTP message
	Payload string `json:"payload"`
}

// RelayErrorBody is returned by the relay when an exchange fails
type RelayErrorBody struct {
	// Error is a human readable description
	Error string `json:"error"`
	// Kind is the wire name of the error kind (optional)
	Kind string `json:"kind,omitempty"`
}

// NewEnvelope marshals a payload into the transport envelope
func NewEnvelope(payload string) ([]byte, error) {
	data, err := json.Marshal(TransportEnvelope{Payload: payload})
	if err != nil {
		return nil, fmt.Errorf("failed to convert envelope to JSON: %w", err)
	}
	return data, nil
}

// ParseEnvelope extracts the payload from a transport envelope.
// A missing or empty payload is an error.
func ParseEnvelope(data []byte) (string, error) {
	var env TransportEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", fmt.Errorf("invalid envelope JSON: %w", err)
	}
	if env.Payload == "" {
		return "", fmt.Errorf("envelope has no payload")
	}
	return env.Payload, nil
}

// NewRelayError builds the error body for err
func NewRelayError(err error) RelayErrorBody {
	return RelayErrorBody{Error: err.Error(), Kind: ErrorKind(err)}
}
