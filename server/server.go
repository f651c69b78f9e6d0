// Package server exposes the matching engine and conversation controller over
// HTTP.
package server

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/connectify-ai/connectify/conversation"
	cerrors "github.com/connectify-ai/connectify/errors"
	"github.com/connectify-ai/connectify/logging"
	"github.com/connectify-ai/connectify/matching"
)

const greeting = "Welcome to Connectify AI, we help job seekers enhance their employability through an interactive chatbot"

// genericFailure is the only message a 500 ever carries; real errors go to
// the log, not the wire.
const genericFailure = "Something went wrong, please try again later."

// Server is the HTTP boundary.
type Server struct {
	engine     *matching.Engine
	controller *conversation.Controller
	log        *zap.Logger
	router     *gin.Engine
	httpSrv    *http.Server

	seed *seedFile
}

// New builds the server and its routes. seedPath is the job dataset new jobs
// are appended to; empty disables the append.
func New(engine *matching.Engine, controller *conversation.Controller, log *zap.Logger, seedPath string) *Server {
	if log == nil {
		log = zap.NewNop()
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		engine:     engine,
		controller: controller,
		log:        log,
		router:     router,
		seed:       newSeedFile(seedPath),
	}

	router.GET("/", s.handleRoot)
	router.POST("/profile", s.handleCreateProfile)
	router.GET("/profile", s.handleGetProfile)
	router.GET("/jobs", s.handleListJobs)
	router.POST("/jobs", s.handleCreateJob)
	router.POST("/jobs/batch", s.handleCreateJobsBatch)
	router.POST("/recommend", s.handleRecommend)
	router.POST("/chat/start", s.handleChatStart)
	router.POST("/chat", s.handleChat)
	router.POST("/chat/document", s.handleChatDocument)

	return s
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves on addr until Stop is called. It blocks.
func (s *Server) Start(addr string) error {
	s.httpSrv = &http.Server{Addr: addr, Handler: s.router}
	s.log.Info("listening", zap.String("addr", addr))
	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop drains in-flight requests and closes the listener.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) handleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": greeting})
}

type profileRequest struct {
	ProfileData matching.UserProfile `json:"profile_data"`
}

func (s *Server) handleCreateProfile(c *gin.Context) {
	var req profileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid request body"})
		return
	}

	if err := s.engine.SaveProfile(c.Request.Context(), req.ProfileData); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Profile saved successfully"})
}

func (s *Server) handleGetProfile(c *gin.Context) {
	name := c.Query("name")
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "name query parameter is required"})
		return
	}

	profile, err := s.engine.GetProfile(c.Request.Context(), name)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (s *Server) handleListJobs(c *gin.Context) {
	jobs, err := s.engine.ListJobs(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": jobs})
}

func (s *Server) handleCreateJob(c *gin.Context) {
	var req matching.JobSubmission
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid request body"})
		return
	}

	if err := s.engine.IngestJob(c.Request.Context(), req.Title, req.Description); err != nil {
		s.respondError(c, err)
		return
	}

	// The store is the source of truth; a seed append failure only costs the
	// job a place in the next startup ingestion.
	if err := s.seed.append(req); err != nil {
		s.log.Warn("appending job to seed file failed",
			zap.String("title", req.Title), zap.Error(err))
	}

	c.JSON(http.StatusOK, gin.H{"message": "Job saved successfully"})
}

type batchItemResult struct {
	Title string `json:"title"`
	Error string `json:"error,omitempty"`
}

func (s *Server) handleCreateJobsBatch(c *gin.Context) {
	var req []matching.JobSubmission
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid request body"})
		return
	}

	results := s.engine.IngestJobsBatch(c.Request.Context(), req)
	out := make([]batchItemResult, len(results))
	for i, r := range results {
		out[i] = batchItemResult{Title: r.Title}
		if r.Err != nil {
			out[i].Error = userMessage(r.Err)
		} else if err := s.seed.append(req[i]); err != nil {
			s.log.Warn("appending job to seed file failed",
				zap.String("title", req[i].Title), zap.Error(err))
		}
	}
	c.JSON(http.StatusOK, gin.H{"results": out})
}

type recommendRequest struct {
	ProfileData struct {
		Conversation string `json:"conversation"`
	} `json:"profile_data"`
}

func (s *Server) handleRecommend(c *gin.Context) {
	var req recommendRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.ProfileData.Conversation == "" {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "profile_data.conversation is required"})
		return
	}

	recs, err := s.engine.Recommend(c.Request.Context(), req.ProfileData.Conversation, 0)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"recommendation": recs})
}

func (s *Server) handleChatStart(c *gin.Context) {
	id := s.controller.StartSession()
	c.JSON(http.StatusOK, gin.H{
		"session_id": id,
		"response":   conversation.Greeting,
	})
}

type chatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

func (s *Server) handleChat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid request body"})
		return
	}
	if req.SessionID == "" {
		req.SessionID = s.controller.StartSession()
	}

	turn, err := s.controller.Advance(c.Request.Context(), req.SessionID, req.Message)
	if err != nil {
		s.respondError(c, err)
		return
	}

	s.log.Debug("chat turn",
		zap.String("session", turn.SessionID),
		zap.String("state", turn.State.String()),
		zap.String("response", logging.Truncate(turn.Message, 200)))
	c.JSON(http.StatusOK, turn)
}

func (s *Server) handleChatDocument(c *gin.Context) {
	sessionID := c.Query("session_id")
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "session_id query parameter is required"})
		return
	}

	data, err := c.GetRawData()
	if err != nil || len(data) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "request body must contain the document"})
		return
	}

	turn, err := s.controller.ProvideDocument(c.Request.Context(), sessionID, data)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, turn)
}

// respondError translates a typed failure into its transport status. Anything
// unrecognized is a 500 with a generic message.
func (s *Server) respondError(c *gin.Context, err error) {
	switch cerrors.CodeOf(err) {
	case cerrors.CodeNotFound, cerrors.CodeNoMatchFound:
		c.JSON(http.StatusNotFound, gin.H{"detail": userMessage(err)})
	case cerrors.CodeInvalidInput, cerrors.CodeUnknownOperation:
		c.JSON(http.StatusBadRequest, gin.H{"detail": userMessage(err)})
	default:
		s.log.Error("request failed",
			zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": genericFailure})
	}
}

// userMessage extracts the typed error's message without the wrap chain.
func userMessage(err error) string {
	if msg := cerrors.MessageOf(err); msg != "" {
		return msg
	}
	return genericFailure
}
