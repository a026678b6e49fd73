package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"envelope-service/internal/logging"
	"envelope-service/internal/mocks"
	"envelope-service/internal/telemetry"
)

func TestDebugAuditRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	publisher := new(mocks.PublisherMock)
	emitter := telemetry.NewAuditEmitter(publisher, "audit.test", "envelope-service", "test", logging.Discard())
	publisher.On("Publish", mock.Anything, "audit.test", mock.Anything).Return(nil).Once()

	r := gin.New()
	RegisterDebugRoutes(r, emitter, true)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/audit-test", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	publisher.AssertExpectations(t)
}

func TestDebugRoutesDisabled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterDebugRoutes(r, nil, false)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/audit-test", nil))

	require.Equal(t, http.StatusNotFound, rec.Code)
}
