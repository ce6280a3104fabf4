package attendance

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/benevia/backend/internal/auth"
)

func postSelfCertify(t *testing.T, h *Handler, userID, eventID uuid.UUID, body string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/events/"+eventID.String()+"/self-certify", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Params = gin.Params{{Key: "id", Value: eventID.String()}}
	c.Set(auth.ContextUserID, userID)
	h.SelfCertify(c)
	return w
}

func TestSelfCertifyAcceptsZeroCoordinates(t *testing.T) {
	f := newEvaluatorFixture(t)
	// Venue on the equator at the prime meridian.
	f.event.Latitude = float64Ptr(0)
	f.event.Longitude = float64Ptr(0)
	h := NewHandler(nil, f.evaluator, f.store, zap.NewNop())

	body := `{"registration_id":"` + f.reg.ID.String() + `","latitude":0,"longitude":0}`
	w := postSelfCertify(t, h, f.userID, f.event.ID, body)
	require.Equal(t, http.StatusOK, w.Code)

	stored := f.store.snapshot(f.reg.ID)
	require.NotNil(t, stored.CertificationStartAt)
}

func TestSelfCertifyRejectsOutOfRangeCoordinates(t *testing.T) {
	f := newEvaluatorFixture(t)
	h := NewHandler(nil, f.evaluator, f.store, zap.NewNop())

	body := `{"registration_id":"` + f.reg.ID.String() + `","latitude":91,"longitude":0}`
	w := postSelfCertify(t, h, f.userID, f.event.ID, body)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSelfCertifyRejectsMissingCoordinates(t *testing.T) {
	f := newEvaluatorFixture(t)
	h := NewHandler(nil, f.evaluator, f.store, zap.NewNop())

	body := `{"registration_id":"` + f.reg.ID.String() + `"}`
	w := postSelfCertify(t, h, f.userID, f.event.ID, body)
	require.Equal(t, http.StatusBadRequest, w.Code)
}
