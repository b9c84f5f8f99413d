package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/MorphGrid/Framework/internal/jobqueue"
)

// SubmitJobRequest is the POST /v1/jobs body. Payload is passed through to
// the configured jobqueue.Handler untouched.
type SubmitJobRequest struct {
	Payload []byte `json:"payload"`
}

// Validate follows the teacher's Registration.Validate() idiom: a plain
// method the handler calls before trusting the body.
func (r SubmitJobRequest) Validate() error {
	if len(r.Payload) == 0 {
		return errors.New("payload is required")
	}
	return nil
}

func (a *API) handleSubmitJob(c *gin.Context) {
	var req SubmitJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	idempotencyKey := c.GetHeader("Idempotency-Key")
	id, err := a.Jobs.Submit(c.Request.Context(), idempotencyKey, req.Payload)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"id": id})
}

func (a *API) handleGetJob(c *gin.Context) {
	result, err := a.Jobs.Result(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, jobqueue.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}
