package domain

import "time"

// ConnectionState is the health of one RPC endpoint.
type ConnectionState string

const (
	StateIdle      ConnectionState = "idle"
	StateConnected ConnectionState = "connected"
	StateFailing   ConnectionState = "failing"
)

// EndpointStatus is a snapshot of one RPC endpoint.
type EndpointStatus struct {
	URL       string
	State     ConnectionState
	Active    bool
	Failures  int
	LastError string
	LastUsed  time.Time
}
