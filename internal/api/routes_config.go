package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cubelink-project/cubelink/internal/config"
)

const redacted = "********"

// handleGetConfig returns the configuration with secrets masked, plus the
// result of validating it.
func (s *Server) handleGetConfig(c *gin.Context) {
	client := s.cfg.GetClientData()
	app := s.cfg.GetApplicationData()

	if client.AccessToken != "" {
		client.AccessToken = redacted
	}
	if app.Security.APIToken != "" {
		app.Security.APIToken = redacted
	}
	if app.Webhook.URL != "" {
		app.Webhook.URL = redacted
	}

	result := config.Validate(s.cfg)
	c.JSON(http.StatusOK, gin.H{
		"client_data":      client,
		"application_data": app,
		"valid":            result.IsValid(),
		"errors":           result.Errors,
		"warnings":         result.Warnings,
	})
}
