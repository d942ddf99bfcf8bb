package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unicore-dev/uni-records-api/internal/models"
)

type mockAuditSink struct {
	entries []*models.AuditLog
}

func (m *mockAuditSink) CreateAuditLog(_ context.Context, log *models.AuditLog) error {
	m.entries = append(m.entries, log)
	return nil
}

func performAudit(sink AuditSink, status int) *httptest.ResponseRecorder {
	r := gin.New()
	r.POST("/registrations/:id/approve", func(c *gin.Context) {
		c.Set(ContextUserKey, &models.JWTClaims{UserID: "adm-1", Role: models.RoleAdmin})
		Audit(sink, models.AuditActionCommand, "registration")(c)
	}, func(c *gin.Context) {
		c.Status(status)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/registrations/reg-1/approve", nil)
	req.Header.Set("User-Agent", "test-agent")
	r.ServeHTTP(w, req)
	return w
}

func TestAuditRecordsSuccessfulRequest(t *testing.T) {
	sink := &mockAuditSink{}

	performAudit(sink, http.StatusOK)

	require.Len(t, sink.entries, 1)
	entry := sink.entries[0]
	assert.Equal(t, models.AuditActionCommand, entry.Action)
	assert.Equal(t, "registration", entry.Resource)
	require.NotNil(t, entry.UserID)
	assert.Equal(t, "adm-1", *entry.UserID)
	require.NotNil(t, entry.ResourceID)
	assert.Equal(t, "reg-1", *entry.ResourceID)
	assert.Equal(t, "test-agent", entry.UserAgent)
}

func TestAuditSkipsFailedRequest(t *testing.T) {
	sink := &mockAuditSink{}

	performAudit(sink, http.StatusConflict)

	assert.Empty(t, sink.entries)
}
