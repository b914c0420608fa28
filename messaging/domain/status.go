package domain

import (
	"strings"
	"time"
)

// Status is the delivery state of a message.
//
//	created -> sent (outgoing) | received (incoming)
//	sent -> delivered -> read
//	any -> failed
type Status string

const (
	StatusSent      Status = "sent"
	StatusReceived  Status = "received"
	StatusDelivered Status = "delivered"
	StatusRead      Status = "read"
	StatusFailed    Status = "failed"
)

var statusRank = map[Status]int{
	StatusSent:      1,
	StatusReceived:  1,
	StatusDelivered: 2,
	StatusRead:      3,
}

// ParseStatus accepts the vendor status strings (case-insensitive).
func ParseStatus(s string) (Status, bool) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	switch st {
	case StatusSent, StatusReceived, StatusDelivered, StatusRead, StatusFailed:
		return st, true
	}
	return "", false
}

// IsForward reports whether moving from -> to follows the delivery order.
// Updates are applied either way; this only drives logging.
func IsForward(from, to Status) bool {
	if to == StatusFailed {
		return true
	}
	if from == StatusFailed {
		return false
	}
	return statusRank[to] >= statusRank[from]
}

// StatusChange is one vendor status report. Phone and At come from the
// webhook and are used when the message is not stored locally.
type StatusChange struct {
	MessageID string
	Status    string
	Phone     string
	At        time.Time
}
