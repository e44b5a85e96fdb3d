package server

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mikeboe/support-agent/pkg/agent"
	"github.com/mikeboe/support-agent/pkg/bot"
	"github.com/mikeboe/support-agent/pkg/ingest"
	"github.com/mikeboe/support-agent/pkg/vectorstore"
)

type Handler struct {
	Service  *Service
	Store    *vectorstore.PGVectorStore
	Sessions *agent.SessionStore
}

func NewHandler(s *Service, store *vectorstore.PGVectorStore, sessions *agent.SessionStore) *Handler {
	return &Handler{Service: s, Store: store, Sessions: sessions}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/api/health", h.health)
	api := r.Group("/api")
	{
		api.POST("/chat", h.chat)
		api.POST("/documents", h.uploadDocuments)

		api.GET("/runs", h.listRuns)
		api.GET("/runs/:id", h.getRun)
		api.GET("/runs/:id/logs", h.getRunLogs)

		api.GET("/collection/stats", h.collectionStats)
		api.POST("/collection/wipe", h.wipeCollection)
	}
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type chatResponse struct {
	RunID              string      `json:"run_id"`
	Response           string      `json:"response"`
	Error              string      `json:"error,omitempty"`
	AvgVectorRelevance float64     `json:"avg_vector_relevance"`
	Stats              interface{} `json:"stats,omitempty"`
}

func (h *Handler) chat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query is required"})
		return
	}

	state, err := h.Service.Chat(c.Request.Context(), req, h.Sessions)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	response := state.FinalResponse
	if req.Format == "slack" {
		response = bot.Sanitize(bot.FormatResponse(response))
		if state.Stats != nil {
			response += bot.SourcesBlock(response, state.Stats.WebSources)
		}
	}

	resp := chatResponse{
		RunID:              state.RunID.String(),
		Response:           response,
		Error:              state.Error,
		AvgVectorRelevance: state.AvgVectorRelevance,
	}
	if state.Stats != nil {
		resp.Stats = state.Stats
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) uploadDocuments(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "multipart form required"})
		return
	}

	var files []ingest.File
	for _, fh := range form.File["files"] {
		f, err := fh.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "failed to open uploaded file: " + fh.Filename})
			return
		}
		content, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read uploaded file: " + fh.Filename})
			return
		}
		files = append(files, ingest.File{Name: fh.Filename, Content: content})
	}
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "at least one file is required"})
		return
	}

	query := c.PostForm("query")
	userEmail := c.PostForm("user_email")

	state, err := h.Service.IngestDocuments(c.Request.Context(), files, query, userEmail)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"run_id":         state.RunID.String(),
		"response":       state.FinalResponse,
		"error":          state.Error,
		"processed_docs": state.ProcessedDocs,
	})
}

func (h *Handler) listRuns(c *gin.Context) {
	runs, err := h.Service.ListRuns(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if runs == nil {
		runs = []Run{}
	}
	c.JSON(http.StatusOK, runs)
}

func (h *Handler) getRun(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid uuid"})
		return
	}

	run, err := h.Service.GetRun(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, run)
}

func (h *Handler) getRunLogs(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid uuid"})
		return
	}

	logs, err := h.Service.GetRunLogs(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if logs == nil {
		logs = []LogEntry{}
	}
	c.JSON(http.StatusOK, logs)
}

func (h *Handler) collectionStats(c *gin.Context) {
	stats, err := h.Store.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *Handler) wipeCollection(c *gin.Context) {
	if err := h.Store.Wipe(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "wiped"})
}
