package proxy

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/bigdegenenergy/open-cloud-ops/hermes/internal/usage"
	"github.com/bigdegenenergy/open-cloud-ops/hermes/pkg/models"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// defaultMaxRequestBodySize bounds the JSON body of a generation request.
const defaultMaxRequestBodySize = 10 << 20 // 10 MB

// RequestRecorder persists metadata for each generation attempt.
type RequestRecorder interface {
	InsertRequest(ctx context.Context, rec *models.GenerationRecord) error
}

// ProxyHandler serves the per-provider generation endpoints.
type ProxyHandler struct {
	dispatcher         *Dispatcher
	counter            *usage.Counter
	ledger             RequestRecorder
	maxRequestBodySize int64
}

// NewProxyHandler creates a new ProxyHandler. ledger may be nil.
func NewProxyHandler(dispatcher *Dispatcher, counter *usage.Counter, ledger RequestRecorder) *ProxyHandler {
	return &ProxyHandler{
		dispatcher:         dispatcher,
		counter:            counter,
		ledger:             ledger,
		maxRequestBodySize: defaultMaxRequestBodySize,
	}
}

// HandleGemini serves POST /api/ai/gemini.
func (h *ProxyHandler) HandleGemini(c *gin.Context) {
	h.generate(c, models.ProviderGemini)
}

// HandleGroq serves POST /api/ai/groq.
func (h *ProxyHandler) HandleGroq(c *gin.Context) {
	h.generate(c, models.ProviderGroq)
}

// HandleHuggingFace serves POST /api/ai/huggingface.
func (h *ProxyHandler) HandleHuggingFace(c *gin.Context) {
	h.generate(c, models.ProviderHuggingFace)
}

func (h *ProxyHandler) generate(c *gin.Context, provider models.AIProvider) {
	start := time.Now()
	reqID := uuid.New().String()
	clientIP := c.ClientIP()

	h.counter.Record(clientIP)
	c.Header("X-Request-ID", reqID)

	// 1. Bind the body (with size limit to prevent OOM).
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxRequestBodySize)
	var req models.GenerationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.counter.RecordError()
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "request body too large", "provider": provider})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{
			"error":    "invalid request body",
			"details":  err.Error(),
			"provider": provider,
		})
		return
	}
	req.ApplyDefaults()

	// 2. Dispatch. No counter or limiter lock is held across this call.
	resp, err := h.dispatcher.Dispatch(c.Request.Context(), provider, req)
	latency := time.Since(start).Milliseconds()

	rec := &models.GenerationRecord{
		ID:        reqID,
		Provider:  provider,
		ClientIP:  clientIP,
		LatencyMs: latency,
		Timestamp: time.Now().UTC(),
	}

	if err != nil {
		log.Printf("[%s] %s API error: %v", reqID, provider, err)
		rec.StatusCode = http.StatusInternalServerError
		rec.ErrorDetail = err.Error()
		h.record(reqID, rec)

		c.JSON(http.StatusInternalServerError, gin.H{
			"error":    "AI service temporarily unavailable",
			"details":  err.Error(),
			"provider": provider,
		})
		return
	}

	rec.Model = resp.Model
	rec.PromptTokens = resp.Usage.PromptTokens
	rec.CompletionTokens = resp.Usage.CompletionTokens
	rec.TotalTokens = resp.Usage.TotalTokens
	rec.StatusCode = http.StatusOK
	h.record(reqID, rec)

	c.Header("X-Latency-Ms", fmt.Sprintf("%d", latency))
	c.JSON(http.StatusOK, resp)
}

// record writes rec to the ledger in the background, if one is configured.
func (h *ProxyHandler) record(reqID string, rec *models.GenerationRecord) {
	if h.ledger == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := h.ledger.InsertRequest(ctx, rec); err != nil {
			log.Printf("[%s] failed to record request: %v", reqID, err)
		}
	}()
}
