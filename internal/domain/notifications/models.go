package notifications

import "time"

type Notification struct {
	ID        string     `json:"id"`
	Type      string     `json:"type"`
	Title     string     `json:"title"`
	Body      string     `json:"body"`
	ReadAt    *time.Time `json:"readAt"`
	CreatedAt time.Time  `json:"createdAt"`
}

type Settings struct {
	EmailEnabled bool   `json:"emailEnabled"`
	EmailFrom    string `json:"emailFrom"`
}

type Email struct {
	From       string
	To         string
	Subject    string
	Body       string
	Type       string
	ApprovalID string
}

// Event is one thing a user should hear about. ApprovalID and RequestID are
// carried through to published events.
type Event struct {
	TenantID    string `json:"tenantId"`
	RecipientID string `json:"recipientId"`
	Type        string `json:"type"`
	Title       string `json:"title"`
	Body        string `json:"body"`
	ApprovalID  string `json:"approvalId,omitempty"`
	RequestID   string `json:"requestId,omitempty"`
}
