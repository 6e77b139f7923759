package network

import (
	"bufio"
	"crypto/cipher"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/cubelink-project/cubelink/internal/events"
	"github.com/cubelink-project/cubelink/internal/protocol"
	"github.com/cubelink-project/cubelink/internal/world"
)

// ---- Status ----

func handleStatusResponse(c *Connection, p protocol.Packet) error {
	resp := p.(*protocol.StatusResponse)
	c.mu.Lock()
	c.status = &StatusResult{Status: resp.Status, Raw: resp.Raw}
	c.mu.Unlock()

	c.pingSent = time.Now()
	if err := c.Send(&protocol.StatusPing{Payload: c.pingSent.UnixMilli()}); err != nil {
		c.emitStatus()
		c.shutdown("status probe complete", nil)
	}
	return nil
}

func handleStatusPong(c *Connection, p protocol.Packet) error {
	latency := time.Since(c.pingSent)
	c.mu.Lock()
	if c.status != nil {
		c.status.Latency = latency
	}
	c.mu.Unlock()
	c.emitStatus()
	c.shutdown("status probe complete", nil)
	return nil
}

func (c *Connection) emitStatus() {
	st, ok := c.Status()
	if !ok {
		return
	}
	c.logger.Info().
		Str("server_version", st.Status.Version.Name).
		Int32("protocol", st.Status.Version.Protocol).
		Int("online", st.Status.Players.Online).
		Dur("latency", st.Latency).
		Msg("status received")
	c.emit(events.EventStatusReceived, events.StatusReceivedPayload{
		Address:     net.JoinHostPort(c.opts.Host, strconv.Itoa(int(c.opts.Port))),
		VersionName: st.Status.Version.Name,
		Protocol:    st.Status.Version.Protocol,
		Online:      st.Status.Players.Online,
		Max:         st.Status.Players.Max,
		MOTD:        st.Status.Description.ClearString(),
		Latency:     st.Latency,
	})
}

// ---- Login ----

func handleLoginDisconnect(c *Connection, p protocol.Packet) error {
	reason := p.(*protocol.LoginDisconnect).Reason.ClearString()
	c.shutdown("login rejected", &DisconnectError{Reason: reason})
	return nil
}

// handleEncryptionRequest runs the key exchange. The inbound flow stays
// blocked until the response is on the wire and both cipher streams are
// installed, so the next frame is read through the decrypter.
func handleEncryptionRequest(c *Connection, p protocol.Packet) error {
	req := p.(*protocol.EncryptionRequest)
	hs, err := NewHandshake(req, c.opts.Random)
	if err != nil {
		return fatal(err)
	}
	enc, dec, err := NewCipherStreams(hs.Secret)
	if err != nil {
		return fatal(err)
	}

	if c.opts.Session != nil {
		if err := c.opts.Session.Join(c.ctx, hs.ServerHash); err != nil {
			return fatal(fmt.Errorf("session join failed: %w", err))
		}
	}

	err = c.sendAndWait(hs.Response, func() {
		c.out = cipher.StreamWriter{S: enc, W: c.out}
	})
	if err != nil {
		return fatal(err)
	}
	c.in = bufio.NewReader(cipher.StreamReader{S: dec, R: c.in})
	c.encrypted.Store(true)
	c.logger.Info().Str("server_id", req.ServerID).Msg("encryption enabled")
	return nil
}

func handleLoginSuccess(c *Connection, p protocol.Packet) error {
	ok := p.(*protocol.LoginSuccess)
	if err := c.transition(protocol.PhasePlay); err != nil {
		return fatal(err)
	}
	c.world.UpdatePlayer(func(pl *world.Player) {
		pl.UUID = ok.UUID
		pl.Name = ok.Username
	})
	c.logger.Info().Str("username", ok.Username).Str("uuid", ok.UUID.String()).Msg("login succeeded")
	c.emit(events.EventLoginSucceeded, events.LoginPayload{Username: ok.Username, UUID: ok.UUID.String()})
	return nil
}

// handleSetCompression serves both the login packet and its 1.8 play twin.
func handleSetCompression(c *Connection, p protocol.Packet) error {
	var threshold int32
	switch v := p.(type) {
	case *protocol.SetCompression:
		threshold = v.Threshold
	case *protocol.PlaySetCompression:
		threshold = v.Threshold
	}
	if threshold < 0 {
		threshold = CompressionDisabled
	}
	c.threshold.Store(threshold)
	c.logger.Debug().Int32("threshold", threshold).Msg("compression threshold set")
	return nil
}
