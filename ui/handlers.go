package ui

import (
	"html/template"
	"net/http"

	"github.com/VictoriaMetrics/metrics"
	"github.com/gin-gonic/gin"

	"tbdash/ui/services"
)

// aboutPage feeds about.html
type aboutPage struct {
	services.PageData
	Body template.HTML
}

func (s *Server) handleIndex(c *gin.Context) {
	s.renderTemplate(c, "index.html", s.dashboard.Page())
}

func (s *Server) handleAbout(c *gin.Context) {
	s.renderTemplate(c, "about.html", aboutPage{PageData: s.dashboard.Page(), Body: s.dashboard.About()})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, s.dashboard.Health())
}

// handleFigure is the HTTP fallback for the websocket channel
func (s *Server) handleFigure(c *gin.Context) {
	featureID := c.Query("feature")
	fig, err := s.dashboard.Figure(c.Request.Context(), featureID)
	if err != nil {
		status := services.HTTPStatus(err)
		if status >= http.StatusInternalServerError {
			s.logger.Error("figure %q failed: %v", featureID, err)
		}
		c.JSON(status, services.ErrorBody(err))
		return
	}
	c.Data(http.StatusOK, "application/json", fig)
}

func (s *Server) handleFeatures(c *gin.Context) {
	infos, err := s.dashboard.Features()
	if err != nil {
		s.logger.Error("feature summaries failed: %v", err)
		c.JSON(services.HTTPStatus(err), services.ErrorBody(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"default":  s.dashboard.DefaultFeature(),
		"features": infos,
	})
}

func writeMetrics(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	metrics.WritePrometheus(w, true)
}
