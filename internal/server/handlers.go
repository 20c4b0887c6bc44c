package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kapu/gamepulse-dashboard/internal/util"
	"github.com/kapu/gamepulse-dashboard/pkg/errors"
	"go.uber.org/zap"
)

type healthResponse struct {
	Status    string                      `json:"status"`
	Cache     string                      `json:"cache"`
	Upstreams []util.CircuitBreakerStatus `json:"upstreams"`
}

func (s *Server) handleHealth(c *gin.Context) {
	resp := healthResponse{
		Status:    "ok",
		Upstreams: make([]util.CircuitBreakerStatus, 0, len(s.breakers)),
	}

	for _, b := range s.breakers {
		st := b.Status()
		if st.State == util.CircuitStateOpen {
			resp.Status = "degraded"
		}
		resp.Upstreams = append(resp.Upstreams, st)
	}

	code := http.StatusOK
	if s.cache != nil {
		resp.Cache = s.cache.Tier()
		if !s.cache.IsConnected(c.Request.Context()) {
			resp.Status = "unavailable"
			code = http.StatusServiceUnavailable
		}
	}

	c.JSON(code, resp)
}

func (s *Server) handleTrending(c *gin.Context) {
	games, err := s.dashboard.FetchTrendingGames(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, games)
}

func (s *Server) handleGenres(c *gin.Context) {
	genres, err := s.dashboard.FetchGenreTrends(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, genres)
}

func (s *Server) handlePlatforms(c *gin.Context) {
	platforms, err := s.dashboard.FetchPlatformPerformance(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, platforms)
}

func (s *Server) handleOverview(c *gin.Context) {
	overview, err := s.dashboard.FetchOverview(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, overview)
}

func (s *Server) respondError(c *gin.Context, err error) {
	status := errors.StatusCode(err)
	s.logger.Error("Request failed",
		zap.String("path", c.Request.URL.Path),
		zap.Int("status", status),
		zap.Error(err),
	)
	c.JSON(status, gin.H{"error": publicMessage(err)})
}

// publicMessage hides upstream detail (keys, URLs) from clients.
func publicMessage(err error) string {
	var catalogErr *errors.CatalogFetchError
	if errors.As(err, &catalogErr) {
		return catalogErr.Message
	}
	var openErr *errors.CircuitOpenError
	if errors.As(err, &openErr) {
		return openErr.Message
	}
	return "internal server error"
}
