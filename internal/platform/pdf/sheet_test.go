package pdf

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderProducesPDF(t *testing.T) {
	signed := time.Date(2024, 5, 2, 10, 0, 0, 0, time.UTC)
	var buf bytes.Buffer
	err := Render(&buf, ApprovalSheet{
		Title:       "Leave approval",
		RequestID:   "req-1",
		RequesterID: "emp-1",
		Status:      "APPROVED",
		Rows: []SignatureRow{
			{Level: 0, Role: "MANAGER", SignedBy: "mgr-1", SignedAt: &signed},
			{Level: 1, Role: "HR", SignedBy: "mgr-1", SignedAt: &signed, Note: "auto-signed"},
		},
		GeneratedAt: signed,
	})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
}
