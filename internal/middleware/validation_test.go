package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/itsmeEn/New-MediSync-sub001/internal/model"
)

func bindJoinRequest(t *testing.T, body string) int {
	t.Helper()
	gin.SetMode(gin.TestMode)
	RegisterValidators()

	r := gin.New()
	r.POST("/", func(c *gin.Context) {
		var req model.JoinQueueRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w.Code
}

func TestPriorityClassTag(t *testing.T) {
	assert.Equal(t, http.StatusOK, bindJoinRequest(t, `{"department":"OPD","priority_level":"pwd"}`))
	assert.Equal(t, http.StatusOK, bindJoinRequest(t, `{"department":"OPD"}`))
	assert.Equal(t, http.StatusBadRequest, bindJoinRequest(t, `{"department":"OPD","priority_level":"vip"}`))
}

func TestClockTimeAndDateTags(t *testing.T) {
	gin.SetMode(gin.TestMode)
	RegisterValidators()

	r := gin.New()
	r.POST("/", func(c *gin.Context) {
		var req model.ScheduleAppointmentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.Status(http.StatusOK)
	})

	post := func(body string) int {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(w, req)
		return w.Code
	}

	valid := `{"type":"consultation","date":"2025-03-01","time":"10:00","doctor_id":"5b8a39c1-8a3a-4a89-9f1e-0a4c6f1b2d3e","department":"OPD"}`
	assert.Equal(t, http.StatusOK, post(valid))

	badTime := `{"type":"consultation","date":"2025-03-01","time":"25:99","doctor_id":"5b8a39c1-8a3a-4a89-9f1e-0a4c6f1b2d3e","department":"OPD"}`
	assert.Equal(t, http.StatusBadRequest, post(badTime))

	badDate := `{"type":"consultation","date":"03/01/2025","time":"10:00","doctor_id":"5b8a39c1-8a3a-4a89-9f1e-0a4c6f1b2d3e","department":"OPD"}`
	assert.Equal(t, http.StatusBadRequest, post(badDate))
}
