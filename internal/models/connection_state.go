package models

import (
	"fmt"
	"time"
)

type ConnectionState string

const (
	StateDisconnected ConnectionState = "disconnected"
	StateConnecting   ConnectionState = "connecting"
	StateConnected    ConnectionState = "connected"
	StateReconnecting ConnectionState = "reconnecting"
	StateFailed       ConnectionState = "failed"
)

// Endpoint is the host and port of the collaboration server.
type Endpoint struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

func (e Endpoint) URL() string {
	return ClientURL(e.Host, e.Port)
}

func (e Endpoint) String() string {
	return fmt.Sprintf("%s:%d", e.Host, e.Port)
}

// ConnectionStatus is a snapshot of the supervisor's state machine.
// Reason is set when State is StateFailed and may explain a Disconnected state.
type ConnectionStatus struct {
	State    ConnectionState `json:"state"`
	Reason   string          `json:"reason,omitempty"`
	Endpoint string          `json:"endpoint,omitempty"`
	Since    time.Time       `json:"since"`
}

// Live reports whether the connection is up or being established.
func (s ConnectionStatus) Live() bool {
	switch s.State {
	case StateConnected, StateConnecting, StateReconnecting:
		return true
	}
	return false
}
