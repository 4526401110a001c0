package mocks

import (
	"context"
	"sync"
	"time"

	"kharazmi/internal/models"
)

// ConnectionSupervisorMock records endpoint calls and lets tests push
// state transitions to subscribers.
type ConnectionSupervisorMock struct {
	ConnectFunc        func(endpoint models.Endpoint) error
	ReconnectFunc      func(endpoint models.Endpoint) error
	TestConnectionFunc func(ctx context.Context, endpoint models.Endpoint) (time.Duration, error)
	SendFunc           func(data []byte) error

	mu          sync.Mutex
	Connects    []models.Endpoint
	Reconnects  []models.Endpoint
	Disconnects int
	Sent        [][]byte
	status      models.ConnectionStatus
	subs        map[int]func(models.ConnectionStatus)
	nextSub     int
}

func (m *ConnectionSupervisorMock) Connect(endpoint models.Endpoint) error {
	m.mu.Lock()
	m.Connects = append(m.Connects, endpoint)
	m.mu.Unlock()
	if m.ConnectFunc != nil {
		return m.ConnectFunc(endpoint)
	}
	return nil
}

func (m *ConnectionSupervisorMock) Reconnect(endpoint models.Endpoint) error {
	m.mu.Lock()
	m.Reconnects = append(m.Reconnects, endpoint)
	m.mu.Unlock()
	if m.ReconnectFunc != nil {
		return m.ReconnectFunc(endpoint)
	}
	return nil
}

func (m *ConnectionSupervisorMock) Disconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Disconnects++
}

func (m *ConnectionSupervisorMock) TestConnection(ctx context.Context, endpoint models.Endpoint) (time.Duration, error) {
	if m.TestConnectionFunc != nil {
		return m.TestConnectionFunc(ctx, endpoint)
	}
	return time.Millisecond, nil
}

func (m *ConnectionSupervisorMock) Send(data []byte) error {
	if m.SendFunc != nil {
		if err := m.SendFunc(data); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, append([]byte(nil), data...))
	return nil
}

func (m *ConnectionSupervisorMock) Status() models.ConnectionStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

func (m *ConnectionSupervisorMock) Subscribe(fn func(models.ConnectionStatus)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.subs == nil {
		m.subs = make(map[int]func(models.ConnectionStatus))
	}
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subs, id)
	}
}

// Publish sets the status and notifies subscribers synchronously.
func (m *ConnectionSupervisorMock) Publish(status models.ConnectionStatus) {
	m.mu.Lock()
	m.status = status
	fns := make([]func(models.ConnectionStatus), 0, len(m.subs))
	for _, fn := range m.subs {
		fns = append(fns, fn)
	}
	m.mu.Unlock()
	for _, fn := range fns {
		fn(status)
	}
}

func (m *ConnectionSupervisorMock) Subscribers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs)
}

func (m *ConnectionSupervisorMock) ReconnectCalls() []models.Endpoint {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Endpoint(nil), m.Reconnects...)
}
