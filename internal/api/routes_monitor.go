package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/cubelink-project/cubelink/internal/util"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 1000
)

func limitParam(c *gin.Context) int {
	n, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultHistoryLimit)))
	if err != nil || n < 1 {
		return defaultHistoryLimit
	}
	if n > maxHistoryLimit {
		return maxHistoryLimit
	}
	return n
}

func (s *Server) historyOr503(c *gin.Context) bool {
	if s.history == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "history database is disabled"})
		return false
	}
	return true
}

func (s *Server) handleStatusHistory(c *gin.Context) {
	if !s.historyOr503(c) {
		return
	}
	records, err := s.history.RecentStatus(c.Request.Context(), limitParam(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"probes": records, "count": len(records)})
}

func (s *Server) handleChatHistory(c *gin.Context) {
	if !s.historyOr503(c) {
		return
	}
	records, err := s.history.RecentChat(c.Request.Context(), limitParam(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": records, "count": len(records)})
}

func (s *Server) handleSessionHistory(c *gin.Context) {
	if !s.historyOr503(c) {
		return
	}
	records, err := s.history.RecentSessions(c.Request.Context(), limitParam(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": records, "count": len(records)})
}

// handleSystemInfo returns host information and memory usage.
func (s *Server) handleSystemInfo(c *gin.Context) {
	resp := gin.H{"system": util.GetSystemInfo()}
	if mem, err := util.GetMemoryUsage(); err == nil {
		resp["memory"] = mem
	}
	c.JSON(http.StatusOK, resp)
}

// handleProcessStats returns resource use of the client process and the
// newest log lines.
func (s *Server) handleProcessStats(c *gin.Context) {
	stats, err := util.GetProcessStats()
	if err != nil && stats == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	count, convErr := strconv.Atoi(c.DefaultQuery("log_lines", "0"))
	if convErr != nil || count < 0 {
		count = 0
	}
	if count > maxHistoryLimit {
		count = maxHistoryLimit
	}

	resp := gin.H{"process": stats}
	if count > 0 {
		entries, err := readRecentLogEntries(s.cfg.GetApplicationData().Logging.Directory, count)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		resp["log"] = entries
	}
	c.JSON(http.StatusOK, resp)
}

// logEntry is a parsed log line.
type logEntry struct {
	Timestamp string                 `json:"timestamp"`
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// readRecentLogEntries parses the last count JSON lines of the newest log file.
func readRecentLogEntries(logDir string, count int) ([]logEntry, error) {
	dirEntries, err := os.ReadDir(logDir)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, e := range dirEntries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".log" {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return []logEntry{}, nil
	}
	sort.Strings(names)

	data, err := os.ReadFile(filepath.Join(logDir, names[len(names)-1]))
	if err != nil {
		return nil, err
	}

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if start := len(lines) - count; start > 0 {
		lines = lines[start:]
	}

	knownKeys := map[string]bool{
		"level": true, "time": true, "message": true, "caller": true, "app": true,
	}

	result := make([]logEntry, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		var raw map[string]interface{}
		if err := json.Unmarshal([]byte(line), &raw); err != nil {
			result = append(result, logEntry{Message: line})
			continue
		}

		entry := logEntry{
			Level:   stringFromMap(raw, "level"),
			Message: stringFromMap(raw, "message"),
		}
		if t, ok := raw["time"]; ok {
			entry.Timestamp = fmt.Sprintf("%v", t)
		}
		for k, v := range raw {
			if knownKeys[k] {
				continue
			}
			if entry.Fields == nil {
				entry.Fields = make(map[string]interface{})
			}
			entry.Fields[k] = v
		}
		result = append(result, entry)
	}
	return result, nil
}

func stringFromMap(m map[string]interface{}, key string) string {
	if v, ok := m[key]; ok {
		return fmt.Sprintf("%v", v)
	}
	return ""
}
