package approval

import (
	"context"
	"fmt"

	"leaveflow/internal/platform/pdf"
)

// Sheet collects one signature row per chain level. With
// skipDuplicateSignatures an auto-signed level points at the level whose
// signature it reuses instead of repeating the signer.
func (s *Service) Sheet(ctx context.Context, tenantID, approvalID string) (pdf.ApprovalSheet, error) {
	a, err := s.Get(ctx, tenantID, approvalID)
	if err != nil {
		return pdf.ApprovalSheet{}, err
	}
	events, err := s.store.Events(ctx, tenantID, approvalID)
	if err != nil {
		return pdf.ApprovalSheet{}, err
	}

	signedAt := make(map[int]Event)
	firstLevelBy := make(map[string]int)
	for _, ev := range events {
		switch ev.Type {
		case EventApproved:
			signedAt[ev.LevelIndex] = ev
			if _, ok := firstLevelBy[ev.ActorID]; !ok {
				firstLevelBy[ev.ActorID] = ev.LevelIndex
			}
		case EventAutoSigned, EventAutoApproved:
			signedAt[ev.LevelIndex] = ev
		}
	}

	rows := make([]pdf.SignatureRow, 0, len(a.Chain))
	for i, level := range a.Chain {
		row := pdf.SignatureRow{Level: i, Role: level.Role}
		if ev, ok := signedAt[i]; ok {
			at := ev.CreatedAt
			row.SignedAt = &at
			row.SignedBy = ev.ActorID
			switch ev.Type {
			case EventAutoSigned:
				if first, ok := firstLevelBy[ev.ActorID]; ok && a.SkipDuplicateSignatures {
					row.SignedBy = ""
					row.Note = fmt.Sprintf("see level %d", first+1)
				} else {
					row.Note = "auto-signed"
				}
			case EventAutoApproved:
				row.Note = "auto-approved"
			}
		} else if !level.Required {
			row.Note = "optional"
		}
		rows = append(rows, row)
	}

	return pdf.ApprovalSheet{
		Title:       "Leave approval sheet",
		RequestID:   a.RequestID,
		RequesterID: a.RequesterID,
		Status:      a.Status,
		Rows:        rows,
		GeneratedAt: s.now(),
	}, nil
}
