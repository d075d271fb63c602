package calls

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a call record.
type Status string

const (
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusProblem    Status = "problem"
	StatusHandled    Status = "handled"
)

// ValidStatus reports whether s is a known call status.
func ValidStatus(s Status) bool {
	switch s {
	case StatusProcessing, StatusCompleted, StatusProblem, StatusHandled:
		return true
	default:
		return false
	}
}

// Order resolution outcomes persisted per lookup attempt.
const (
	OrderStatusFound      = "Found"
	OrderStatusNotFound   = "Not Found"
	OrderStatusOverdue    = "Overdue Delivery"
	OrderStatusInProgress = "In Progress"
)

var (
	ErrCallNotFound  = errors.New("calls: call not found")
	ErrStepNotFound  = errors.New("calls: conversation step not found")
	ErrOrderNotFound = errors.New("calls: order record not found")
)

// Call is one phone conversation, keyed by the platform's call identifier.
type Call struct {
	ID          uuid.UUID `json:"id"`
	CallSID     string    `json:"call_sid"`
	PhoneNumber string    `json:"phone_number"`
	Language    string    `json:"language"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Step is one logged exchange within a call. Append-only; the audit trail
// is never read back for dialogue control flow.
type Step struct {
	ID          uuid.UUID `json:"id"`
	CallID      uuid.UUID `json:"call_id"`
	Step        string    `json:"step"`
	UserInput   string    `json:"user_input,omitempty"`
	BotResponse string    `json:"bot_response,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// OrderRecord is one resolved order-status outcome for a call.
type OrderRecord struct {
	ID                   uuid.UUID  `json:"id"`
	CallID               uuid.UUID  `json:"call_id"`
	OrderNumber          string     `json:"order_number"`
	Status               string     `json:"status"`
	Notes                string     `json:"notes,omitempty"`
	PromisedDeliveryDate *time.Time `json:"promised_delivery_date,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// Stats aggregates call counts for the audit API.
type Stats struct {
	Total      int `json:"total_calls"`
	Completed  int `json:"completed_calls"`
	Processing int `json:"processing_calls"`
	Problem    int `json:"problem_calls"`
	Handled    int `json:"handled_calls"`
}
