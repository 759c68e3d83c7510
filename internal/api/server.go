// Package api serves statistics, early warnings, breakdowns, reports and
// case records over HTTP.
package api

import (
	"context"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/Rosevil15/TPMSS-sub001/internal/aggregation"
	"github.com/Rosevil15/TPMSS-sub001/internal/cases"
	"github.com/Rosevil15/TPMSS-sub001/internal/database"
	"github.com/Rosevil15/TPMSS-sub001/internal/report"
	"github.com/Rosevil15/TPMSS-sub001/internal/session"
	"github.com/Rosevil15/TPMSS-sub001/internal/warning"
)

// SessionHeader carries the session id. The "session" query parameter is
// accepted as well.
const SessionHeader = "X-Session-ID"

// Store is everything the API reads and writes. *database.DB implements it.
type Store interface {
	report.Store
	cases.Store
	InsertProfile(ctx context.Context, p *database.Profile) error
	InsertHealthRecord(ctx context.Context, r *database.HealthRecord) error
	InsertEducationRecord(ctx context.Context, r *database.EducationRecord) error
	PingContext(ctx context.Context) error
}

// Options tunes the server.
type Options struct {
	CaseIDAttempts int
	ReportFormat   string
	ReportTheme    string
}

// Server holds the HTTP handlers and their dependencies
type Server struct {
	store      Store
	sessions   *session.Manager
	statistics *aggregation.StatisticsAggregator
	breakdown  *aggregation.BreakdownAggregator
	warnings   *warning.Evaluator
	reports    *report.Generator
	cases      *cases.Service
	opts       Options
	logger     *zap.Logger
	engine     *gin.Engine
}

var registerTagNames sync.Once

// NewServer creates a new API server
func NewServer(store Store, sessions *session.Manager, opts Options, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	registerTagNames.Do(func() {
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			v.RegisterTagNameFunc(jsonName)
		}
	})

	s := &Server{
		store:      store,
		sessions:   sessions,
		statistics: aggregation.NewStatisticsAggregator(store, logger),
		breakdown:  aggregation.NewBreakdownAggregator(store, logger),
		warnings:   warning.NewEvaluator(store, logger),
		reports:    report.NewGenerator(store, logger),
		cases:      cases.NewService(store, opts.CaseIDAttempts, logger),
		opts:       opts,
		logger:     logger,
	}
	s.engine = s.routes()
	return s
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	r.GET("/healthz", s.health)

	api := r.Group("/api")
	{
		api.POST("/sessions", s.createSession)
		api.DELETE("/sessions/:id", s.deleteSession)

		api.GET("/statistics", s.getStatistics)
		api.GET("/breakdown", s.getBreakdown)
		api.GET("/warnings", s.getWarnings)
		api.GET("/warnings/more", s.moreWarnings)
		api.GET("/reports/:kind", s.downloadReport)

		api.POST("/cases", s.createCase)
		api.GET("/cases/:id", s.getCase)
		api.PUT("/cases/:id", s.updateCase)

		api.POST("/profiles", s.createProfile)
		api.POST("/health-records", s.createHealthRecord)
		api.POST("/education-records", s.createEducationRecord)
	}

	return r
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		s.logger.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()))
	}
}

func jsonName(f reflect.StructField) string {
	name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	if name == "-" || name == "" {
		return f.Name
	}
	return name
}
