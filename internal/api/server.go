// Package api exposes the analysis engine over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/inodb/pharmaguard/internal/analysis"
	"github.com/inodb/pharmaguard/internal/config"
)

// multipartSlack allows for multipart framing and form fields around the file.
const multipartSlack = 64 << 10

// Options configures a Server.
type Options struct {
	Server      config.ServerConfig
	Version     string
	LLMProvider string // reported by /api/health; "" when explanations are off
	StaticDir   string // optional single-page frontend
}

// Server is the HTTP transport.
type Server struct {
	orch   *analysis.Orchestrator
	opts   Options
	router *gin.Engine
	server *http.Server
	logger *zap.Logger
}

// NewServer creates a server. A nil logger disables logging.
func NewServer(orch *analysis.Orchestrator, opts Options, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Server.ShutdownTimeout <= 0 {
		opts.Server.ShutdownTimeout = 15 * time.Second
	}

	router := gin.New()
	router.Use(requestID())
	router.Use(accessLog(logger))
	router.Use(recovery(logger))
	router.Use(cors(opts.Server.CORSOrigins))
	router.Use(securityHeaders())

	s := &Server{
		orch:   orch,
		opts:   opts,
		router: router,
		logger: logger,
	}
	s.setupRoutes()
	return s
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	cfg := s.opts.Server
	s.server = &http.Server{
		Addr:         cfg.Addr(),
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", zap.String("addr", cfg.Addr()))
		errCh <- s.server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen on %s: %w", cfg.Addr(), err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	s.logger.Info("shutting down")
	return s.server.Shutdown(shutdownCtx)
}

func (s *Server) setupRoutes() {
	api := s.router.Group("/api")
	{
		api.GET("/health", s.handleHealth)
		api.GET("/supported-drugs", s.handleSupportedDrugs)
		api.POST("/parse-vcf", s.handleParseVCF)
		api.POST("/assess-risk", s.handleAssessRisk)
		api.POST("/analyze", s.handleAnalyze)
		api.POST("/analyze-batch", s.handleAnalyzeBatch)
	}

	if dir := s.opts.StaticDir; dir != "" {
		index := filepath.Join(dir, "index.html")
		s.router.NoRoute(func(c *gin.Context) {
			if strings.HasPrefix(c.Request.URL.Path, "/api/") {
				c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
				return
			}
			path := filepath.Join(dir, filepath.Clean("/"+c.Request.URL.Path))
			if info, err := os.Stat(path); err == nil && !info.IsDir() {
				c.File(path)
				return
			}
			c.File(index)
		})
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	provider := s.opts.LLMProvider
	if provider == "" {
		provider = "disabled"
	}
	c.JSON(http.StatusOK, gin.H{
		"status":            "healthy",
		"service":           "PharmaGuard API",
		"version":           s.opts.Version,
		"knowledge_version": s.orch.KnowledgeVersion(),
		"llm_provider":      provider,
	})
}

func (s *Server) handleSupportedDrugs(c *gin.Context) {
	e := s.orch.Engine()
	c.JSON(http.StatusOK, gin.H{
		"drugs":         e.SupportedDrugs(),
		"gene_drug_map": e.GeneDrugMap(),
	})
}

func (s *Server) handleParseVCF(c *gin.Context) {
	content, ok := s.readUpload(c)
	if !ok {
		return
	}
	report, err := s.orch.ParseProfile(content)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (s *Server) handleAssessRisk(c *gin.Context) {
	gene := strings.TrimSpace(c.PostForm("gene"))
	dip := strings.TrimSpace(c.PostForm("diplotype"))
	if gene == "" || dip == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "gene and diplotype are required"})
		return
	}
	report, err := s.orch.AssessRisk(gene, dip, c.PostForm("drug"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (s *Server) handleAnalyze(c *gin.Context) {
	content, ok := s.readUpload(c)
	if !ok {
		return
	}
	res, err := s.orch.Analyze(c.Request.Context(), content, c.PostForm("drug"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) handleAnalyzeBatch(c *gin.Context) {
	content, ok := s.readUpload(c)
	if !ok {
		return
	}
	var drugs []string
	for _, v := range c.PostFormArray("drugs") {
		drugs = append(drugs, strings.Split(v, ",")...)
	}
	results, err := s.orch.AnalyzeDrugs(c.Request.Context(), content, drugs)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

// readUpload reads the multipart "file" field, enforcing the upload limit.
// On failure the response has been written and ok is false.
func (s *Server) readUpload(c *gin.Context) (content []byte, ok bool) {
	limit := s.orch.MaxFileSize()
	if c.Request.ContentLength > limit+multipartSlack {
		s.tooLarge(c, limit)
		return nil, false
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit+multipartSlack)

	fh, err := c.FormFile("file")
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			s.tooLarge(c, limit)
			return nil, false
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return nil, false
	}
	if fh.Size > limit {
		s.tooLarge(c, limit)
		return nil, false
	}

	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read uploaded file"})
		return nil, false
	}
	defer f.Close()

	content, err = io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read uploaded file"})
		return nil, false
	}
	return content, true
}

func (s *Server) tooLarge(c *gin.Context, limit int64) {
	c.JSON(http.StatusRequestEntityTooLarge, gin.H{
		"error": "file too large (max " + formatLimit(limit) + ")",
	})
}

func formatLimit(n int64) string {
	if n >= 1<<20 && n%(1<<20) == 0 {
		return fmt.Sprintf("%dMB", n>>20)
	}
	return fmt.Sprintf("%d bytes", n)
}

// fail maps an orchestrator error to a response.
func (s *Server) fail(c *gin.Context, err error) {
	_ = c.Error(err)
	switch {
	case errors.Is(err, analysis.ErrFileTooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": err.Error()})
	case analysis.IsInputError(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		s.logger.Error("request failed",
			zap.String("request_id", c.GetString(requestIDKey)),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
