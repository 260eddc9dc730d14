package directory

import "time"

// Approver makes a user eligible to act at chain levels with Role. An
// empty Department means the user approves for every department.
type Approver struct {
	UserID     string    `json:"userId"`
	Role       string    `json:"role"`
	Department string    `json:"department"`
	Email      string    `json:"email"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"createdAt"`
}

type Delegation struct {
	ID          string     `json:"id"`
	DelegatorID string     `json:"delegatorId"`
	DelegateID  string     `json:"delegateId"`
	StartsAt    time.Time  `json:"startsAt"`
	EndsAt      time.Time  `json:"endsAt"`
	Reason      string     `json:"reason,omitempty"`
	RevokedAt   *time.Time `json:"revokedAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// ActiveAt reports whether the delegation covers at, in [StartsAt, EndsAt).
func (d Delegation) ActiveAt(at time.Time) bool {
	if d.RevokedAt != nil && !d.RevokedAt.After(at) {
		return false
	}
	return !at.Before(d.StartsAt) && at.Before(d.EndsAt)
}

type Absence struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	StartsAt  time.Time `json:"startsAt"`
	EndsAt    time.Time `json:"endsAt"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

func (a Absence) CoversAt(at time.Time) bool {
	return !at.Before(a.StartsAt) && at.Before(a.EndsAt)
}

// Policy selects which substitutions Substitute may apply.
type Policy struct {
	SkipIfDelegated bool
	SkipAbsent      bool
}

const (
	ReasonDelegated = "delegated"
	ReasonAbsent    = "absent"
)

type Substitution struct {
	ApproverID string `json:"approverId"`
	Reason     string `json:"reason"`
}
