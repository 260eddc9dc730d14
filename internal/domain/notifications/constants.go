package notifications

const (
	TypeApprovalRequested    = "approval_requested"
	TypeApprovalReminder     = "approval_reminder"
	TypeApprovalReassigned   = "approval_reassigned"
	TypeApprovalEscalated    = "approval_escalated"
	TypeApprovalHeld         = "approval_held"
	TypeApprovalApproved     = "approval_approved"
	TypeApprovalAutoApproved = "approval_auto_approved"
	TypeApprovalRejected     = "approval_rejected"
)
