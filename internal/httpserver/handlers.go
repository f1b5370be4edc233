package httpserver

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/tinytelemetry/logwatch/internal/analytics"
	"github.com/tinytelemetry/logwatch/internal/logstore"
	"github.com/tinytelemetry/logwatch/internal/model"
	"github.com/tinytelemetry/logwatch/internal/otlp"
	"github.com/tinytelemetry/logwatch/internal/reader"
	"github.com/tinytelemetry/logwatch/internal/tenant"
)

const maxBodyBytes = 16 << 20

func (s *Server) handleHealth(c *gin.Context) {
	body := gin.H{
		"status": "ok",
		"uptime": time.Since(s.startTime).String(),
	}
	if s.deps.Buffer != nil {
		body["droppedEvents"] = s.deps.Buffer.DroppedEvents()
	}
	if s.deps.Streams != nil {
		body["activeStreams"] = s.deps.Streams.TotalStreams()
	}
	c.JSON(http.StatusOK, body)
}

// appParam returns the validated :app path parameter, answering 400 itself
// when it is unusable.
func appParam(c *gin.Context) (string, bool) {
	app := c.Param("app")
	if err := logstore.ValidateTenant(app); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return "", false
	}
	return app, true
}

// decodeBatch reads the request body as arbitrary JSON. Numbers stay
// json.Number so integral timestamps survive intact.
func decodeBatch(c *gin.Context) (any, bool) {
	data, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return nil, false
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
		return nil, false
	}
	return raw, true
}

func (s *Server) handleSubmit(c *gin.Context) {
	app, ok := appParam(c)
	if !ok {
		return
	}
	raw, ok := decodeBatch(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, s.deps.Ingest.Submit(app, raw))
}

// handleKeyedSubmit resolves the tenant from the X-API-Key or X-App-Id
// header.
func (s *Server) handleKeyedSubmit(c *gin.Context) {
	app, ok := s.resolveTenant(c)
	if !ok {
		return
	}
	raw, ok := decodeBatch(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, s.deps.Ingest.Submit(app, raw))
}

func (s *Server) resolveTenant(c *gin.Context) (string, bool) {
	t, err := s.deps.Tenants.TenantFor(c.GetHeader(otlp.AppIDKey), c.GetHeader(otlp.APIKeyKey))
	switch {
	case err == nil:
		return t, true
	case errors.Is(err, tenant.ErrUnknownKey):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unknown api key"})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	}
	return "", false
}

func (s *Server) handleQuery(c *gin.Context) {
	app, ok := appParam(c)
	if !ok {
		return
	}
	var params reader.QueryParams
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&params); err != nil && !errors.Is(err, io.EOF) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query body"})
			return
		}
	}
	if params.Limit < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must not be negative"})
		return
	}

	logs, err := s.deps.Logs.Query(app, params)
	if err != nil {
		log.Error().Err(err).Str("tenant", app).Msg("httpserver: query failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to query logs"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"logs": logs, "count": len(logs)})
}

func (s *Server) handleStats(c *gin.Context) {
	app := c.DefaultQuery("app", model.DefaultTenant)
	if err := logstore.ValidateTenant(app); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, s.deps.Stats.GetStats(c.DefaultQuery("range", "1h"), app))
}

func (s *Server) handleDeleteTenant(c *gin.Context) {
	app, ok := appParam(c)
	if !ok {
		return
	}
	discarded := 0
	if s.deps.Buffer != nil {
		discarded = s.deps.Buffer.Discard(app)
	}
	if err := s.deps.Remover.Remove(app); err != nil {
		log.Error().Err(err).Str("tenant", app).Msg("httpserver: delete tenant failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete tenant"})
		return
	}
	log.Info().Str("tenant", app).Int("discarded", discarded).Msg("httpserver: tenant deleted")
	c.JSON(http.StatusOK, gin.H{"deleted": app})
}

func (s *Server) handleSQL(c *gin.Context) {
	if s.deps.SQL == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "sql analytics disabled"})
		return
	}
	app, ok := appParam(c)
	if !ok {
		return
	}
	var req struct {
		SQL string `json:"sql" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body or missing sql field"})
		return
	}

	res, err := s.deps.SQL.Query(c.Request.Context(), app, req.SQL)
	if err != nil {
		if !errors.Is(err, analytics.ErrReadOnly) {
			log.Warn().Err(err).Str("tenant", app).Msg("httpserver: sql query failed")
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) handleOTLP(c *gin.Context) {
	if s.deps.OTLP == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "otlp receiver disabled"})
		return
	}
	app, ok := s.resolveTenant(c)
	if !ok {
		return
	}
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}
	contentType := c.GetHeader("Content-Type")
	req, err := otlp.DecodeRequest(contentType, body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	out, ct, err := otlp.EncodeResponse(contentType, s.deps.OTLP.Ingest(app, req))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to encode response"})
		return
	}
	c.Data(http.StatusOK, ct, out)
}
