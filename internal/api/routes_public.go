package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cubelink-project/cubelink/internal/protocol"
)

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *gin.Context) {
	_, attached := s.current()
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"service":   "cubelink",
		"version":   s.version,
		"connected": attached,
	})
}

// handleVersion lists the client version and the protocol revisions it speaks.
func (s *Server) handleVersion(c *gin.Context) {
	versions := protocol.SupportedVersions()
	supported := make([]gin.H, 0, len(versions))
	for _, v := range versions {
		supported = append(supported, gin.H{"name": v.String(), "protocol": int32(v)})
	}
	c.JSON(http.StatusOK, gin.H{
		"name":      "cubelink",
		"version":   s.version,
		"protocols": supported,
	})
}

// handleLastStatus returns the newest status probe seen on the bus.
func (s *Server) handleLastStatus(c *gin.Context) {
	s.statusMu.RLock()
	st := s.lastStatus
	s.statusMu.RUnlock()

	if st == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no status probe has completed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"address":    st.Address,
		"version":    st.VersionName,
		"protocol":   st.Protocol,
		"online":     st.Online,
		"max":        st.Max,
		"motd":       st.MOTD,
		"latency_ms": st.Latency.Milliseconds(),
	})
}
