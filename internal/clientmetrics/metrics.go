// Package clientmetrics tracks traffic over one host-to-page channel.
package clientmetrics

import (
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Round trips are tracked from 1µs up to 10 minutes with 3 significant figures.
const (
	lowestRoundTripUs  = 1
	highestRoundTripUs = 600_000_000
)

// Traffic counts frames and bytes exchanged with a page, plus frames that
// were dropped because they were foreign or answered an abandoned request.
type Traffic struct {
	mu          sync.Mutex
	connectTime time.Time
	framesSent  int64
	framesRecv  int64
	bytesSent   int64
	bytesRecv   int64
	dropped     int64
	errors      int64
	roundTrips  *hdrhistogram.Histogram
}

// New creates an empty Traffic tracker.
func New() *Traffic {
	return &Traffic{roundTrips: hdrhistogram.New(lowestRoundTripUs, highestRoundTripUs, 3)}
}

// MarkConnected records when the channel was established.
func (m *Traffic) MarkConnected() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connectTime = time.Now()
}

// RecordSent counts one outgoing frame.
func (m *Traffic) RecordSent(bytes int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.framesSent++
	m.bytesSent += int64(bytes)
}

// RecordReceived counts one incoming frame.
func (m *Traffic) RecordReceived(bytes int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.framesRecv++
	m.bytesRecv += int64(bytes)
}

// RecordDropped counts an incoming frame that was discarded.
func (m *Traffic) RecordDropped() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dropped++
}

// RecordError counts a read or write failure.
func (m *Traffic) RecordError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors++
}

// RecordRoundTrip records the time between sending a request and receiving
// its matching response. This includes channel overhead on top of the suite
// duration the page reports.
func (m *Traffic) RecordRoundTrip(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	us := d.Microseconds()
	if us < lowestRoundTripUs {
		us = lowestRoundTripUs
	}
	if us > highestRoundTripUs {
		us = highestRoundTripUs
	}
	_ = m.roundTrips.RecordValue(us)
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	Connected      time.Duration `json:"-"`
	FramesSent     int64         `json:"frames_sent"`
	FramesReceived int64         `json:"frames_received"`
	BytesSent      int64         `json:"bytes_sent"`
	BytesReceived  int64         `json:"bytes_received"`
	Dropped        int64         `json:"dropped"`
	Errors         int64         `json:"errors"`
	RoundTrips     int64         `json:"round_trips"`
	RoundTripP50   time.Duration `json:"round_trip_p50"`
	RoundTripMax   time.Duration `json:"round_trip_max"`
}

// Snapshot returns a consistent copy of all counters.
func (m *Traffic) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	var connected time.Duration
	if !m.connectTime.IsZero() {
		connected = time.Since(m.connectTime)
	}
	return Snapshot{
		Connected:      connected,
		FramesSent:     m.framesSent,
		FramesReceived: m.framesRecv,
		BytesSent:      m.bytesSent,
		BytesReceived:  m.bytesRecv,
		Dropped:        m.dropped,
		Errors:         m.errors,
		RoundTrips:     m.roundTrips.TotalCount(),
		RoundTripP50:   time.Duration(m.roundTrips.ValueAtQuantile(50)) * time.Microsecond,
		RoundTripMax:   time.Duration(m.roundTrips.Max()) * time.Microsecond,
	}
}
