// Package connector implements the external services the client talks to
// besides the game server: the session service that proves account
// ownership during login, and outbound notification webhooks.
package connector

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/cubelink-project/cubelink/internal/config"
)

const (
	joinPath  = "/session/minecraft/join"
	userAgent = "cubelink/%s"
)

// SessionClient performs the session join for online-mode servers. The
// server later asks the session service whether this profile joined with
// the same server hash.
type SessionClient struct {
	baseURL     string
	accessToken string
	profileID   string
	version     string
	client      *http.Client
}

// NewSessionClient creates a session client from the client configuration.
func NewSessionClient(cfg config.ClientData, version string) *SessionClient {
	return &SessionClient{
		baseURL:     strings.TrimRight(cfg.SessionServerURL, "/"),
		accessToken: cfg.AccessToken,
		profileID:   strings.ReplaceAll(cfg.ProfileID, "-", ""),
		version:     version,
		client: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:    10,
				IdleConnTimeout: 90 * time.Second,
			},
		},
	}
}

type joinRequest struct {
	AccessToken     string `json:"accessToken"`
	SelectedProfile string `json:"selectedProfile"`
	ServerID        string `json:"serverId"`
}

type sessionError struct {
	Error        string `json:"error"`
	ErrorMessage string `json:"errorMessage"`
}

// Join registers serverHash for the configured profile. The service answers
// 204 No Content on success.
func (s *SessionClient) Join(ctx context.Context, serverHash string) error {
	body, err := json.Marshal(joinRequest{
		AccessToken:     s.accessToken,
		SelectedProfile: s.profileID,
		ServerID:        serverHash,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal join request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+joinPath, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create join request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", fmt.Sprintf(userAgent, s.version))

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("session join request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	switch resp.StatusCode {
	case http.StatusNoContent, http.StatusOK:
		log.Debug().
			Str("profile", s.profileID).
			Dur("took", time.Since(start)).
			Msg("session joined")
		return nil
	}

	var se sessionError
	if json.Unmarshal(respBody, &se) == nil && se.ErrorMessage != "" {
		return fmt.Errorf("session service returned %d: %s: %s", resp.StatusCode, se.Error, se.ErrorMessage)
	}
	return fmt.Errorf("session service returned status %d: %s", resp.StatusCode, string(respBody))
}

// OfflineSession is used for servers running in offline mode. Such servers
// never send an encryption request, and if one arrives anyway the join is
// skipped.
type OfflineSession struct{}

// Join always succeeds.
func (OfflineSession) Join(ctx context.Context, serverHash string) error {
	log.Debug().Str("server_hash", serverHash).Msg("offline mode, session join skipped")
	return nil
}

// OfflineUUID derives the UUID offline-mode servers assign to name: a
// version 3 UUID over "OfflinePlayer:" + name.
func OfflineUUID(name string) uuid.UUID {
	sum := md5.Sum([]byte("OfflinePlayer:" + name))
	sum[6] = sum[6]&0x0f | 0x30
	sum[8] = sum[8]&0x3f | 0x80
	return uuid.UUID(sum)
}
