package api

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"scholarbot/internal/ingest"
	"scholarbot/internal/models"
	"scholarbot/internal/rag"
)

// ChatService answers session-scoped questions over the indexed corpus.
type ChatService interface {
	Ask(ctx context.Context, sessionID, message string) (*rag.Answer, error)
	AskStream(ctx context.Context, sessionID, message string, emit func(string) error) (*rag.Answer, error)
	DeleteSession(ctx context.Context, sessionID string) error
}

// Ingestor rebuilds the knowledge base from a document.
type Ingestor interface {
	IngestFile(ctx context.Context, storedPath, fileName, mimeType string, size int64) (*models.IngestResponse, error)
	InitializeKnowledgeBase(ctx context.Context, seedPath string) (*models.IngestResponse, error)
}

// Handler wires HTTP routes to the chat pipeline and the ingestion
// service.
type Handler struct {
	chat      ChatService
	ingestor  Ingestor
	uploadDir string
	staticDir string
}

// NewHandler constructs a Handler instance.
func NewHandler(chat ChatService, ingestor Ingestor, uploadDir, staticDir string) *Handler {
	return &Handler{
		chat:      chat,
		ingestor:  ingestor,
		uploadDir: uploadDir,
		staticDir: staticDir,
	}
}

// RegisterRoutes attaches all HTTP routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.GET("/healthz", h.health)
	chat := router.Group("/chat")
	chat.POST("/query", h.chatQuery)
	chat.DELETE("/session/:session_id", h.deleteSession)
	embeddings := router.Group("/embeddings")
	embeddings.POST("/upload-file", h.uploadFile)
	embeddings.POST("/initialize-knowledge-base", h.initializeKnowledgeBase)
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

const chatTimeout = 2 * time.Minute

func (h *Handler) chatQuery(c *gin.Context) {
	var req models.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	message := strings.TrimSpace(req.Message)
	if message == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message is required"})
		return
	}
	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), chatTimeout)
	defer cancel()

	if req.IsStream {
		h.streamAnswer(ctx, c, sessionID, message)
		return
	}

	answer, err := h.chat.Ask(ctx, sessionID, message)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, models.ChatResponse{
		SessionID:       answer.SessionID,
		Response:        answer.Response,
		Context:         answer.Context,
		SourceDocuments: answer.Passages,
	})
}

// streamAnswer writes the answer as raw text fragments over an
// event-stream body. The session id travels in a response header since
// the body carries only model output.
func (h *Handler) streamAnswer(ctx context.Context, c *gin.Context, sessionID, message string) {
	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming not supported"})
		return
	}
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Writer.Header().Set("X-Session-ID", sessionID)
	c.Status(http.StatusOK)

	emit := func(fragment string) error {
		if _, err := c.Writer.WriteString(fragment); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}
	if _, err := h.chat.AskStream(ctx, sessionID, message, emit); err != nil {
		// Headers are gone; the best we can do is end the stream.
		_ = emit(rag.Apology)
	}
}

func (h *Handler) deleteSession(c *gin.Context) {
	sessionID := c.Param("session_id")
	if err := h.chat.DeleteSession(c.Request.Context(), sessionID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	// Clearing an unknown session succeeds; there is nothing to keep.
	c.JSON(http.StatusOK, models.MessageResponse{
		Message: fmt.Sprintf("Session %s cleared", sessionID),
	})
}

const maxUploadBytes = 10 << 20 // 10 MB

var allowedExtensions = map[string]bool{
	".pdf":  true,
	".doc":  true,
	".docx": true,
	".txt":  true,
	".md":   true,
}

func (h *Handler) uploadFile(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	if file.Size > maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
		return
	}
	filename := filepath.Base(file.Filename)
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedExtensions[ext] {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported file type"})
		return
	}

	if err := os.MkdirAll(h.uploadDir, 0o755); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create directory failed"})
		return
	}
	destPath := filepath.Join(h.uploadDir, fmt.Sprintf("%d-%s", time.Now().UnixNano(), filename))
	if err := c.SaveUploadedFile(file, destPath); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "save file failed"})
		return
	}

	mimeType := file.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = mime.TypeByExtension(ext)
	}
	resp, err := h.ingestor.IngestFile(c.Request.Context(), destPath, filename, mimeType, file.Size)
	if err != nil {
		if errors.Is(err, ingest.ErrNoText) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "document has no readable text content"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) initializeKnowledgeBase(c *gin.Context) {
	seedPath, err := h.findSeedDocument()
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no seed document found"})
		return
	}
	resp, err := h.ingestor.InitializeKnowledgeBase(c.Request.Context(), seedPath)
	if err != nil {
		if errors.Is(err, ingest.ErrNoText) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "document has no readable text content"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, resp)
}

// findSeedDocument picks the first supported file in the static
// directory.
func (h *Handler) findSeedDocument() (string, error) {
	entries, err := os.ReadDir(h.staticDir)
	if err != nil {
		return "", err
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if allowedExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			return filepath.Join(h.staticDir, entry.Name()), nil
		}
	}
	return "", os.ErrNotExist
}
