package api

import (
	"fmt"
	"net/http"
	"sort"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/cubelink-project/cubelink/internal/world"
)

// All world views are snapshots; the inbound flow may have moved on by the
// time the response is written.

// EntityView is the JSON form of a mirrored entity.
type EntityView struct {
	ID        int32             `json:"id"`
	UUID      string            `json:"uuid,omitempty"`
	Category  string            `json:"category"`
	Type      string            `json:"type"`
	TypeID    int32             `json:"type_id"`
	Position  [3]float64        `json:"position"`
	Velocity  [3]float64        `json:"velocity"`
	Yaw       float32           `json:"yaw"`
	Pitch     float32           `json:"pitch"`
	HeadYaw   float32           `json:"head_yaw"`
	OnGround  bool              `json:"on_ground"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Equipment map[string]string `json:"equipment,omitempty"`
}

// NewEntityView converts an entity snapshot.
func NewEntityView(e *world.Entity) EntityView {
	v := EntityView{
		ID:       e.ID,
		Category: e.Kind.Category.String(),
		Type:     e.Info().Name,
		TypeID:   e.Kind.TypeID,
		Position: e.Position,
		Velocity: e.Velocity,
		Yaw:      e.Yaw,
		Pitch:    e.Pitch,
		HeadYaw:  e.HeadYaw,
		OnGround: e.OnGround,
	}
	if e.UUID != [16]byte{} {
		v.UUID = e.UUID.String()
	}
	if len(e.Metadata) > 0 {
		v.Metadata = make(map[string]string, len(e.Metadata))
		for k, val := range e.Metadata {
			v.Metadata[strconv.Itoa(int(k))] = fmt.Sprint(val)
		}
	}
	if len(e.Equipment) > 0 {
		v.Equipment = make(map[string]string, len(e.Equipment))
		for slot, item := range e.Equipment {
			v.Equipment[strconv.Itoa(slot)] = item.String()
		}
	}
	return v
}

func (s *Server) sessionOr503(c *gin.Context) (Session, bool) {
	sess, ok := s.current()
	if !ok {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no active session"})
		return nil, false
	}
	return sess, true
}

// handleSession describes the connection itself.
func (s *Server) handleSession(c *gin.Context) {
	sess, ok := s.sessionOr503(c)
	if !ok {
		return
	}
	age, timeOfDay := sess.World().Time()
	c.JSON(http.StatusOK, gin.H{
		"phase":                 sess.Phase().String(),
		"version":               sess.Version().String(),
		"protocol":              int32(sess.Version()),
		"encrypted":             sess.Encrypted(),
		"compression_threshold": sess.CompressionThreshold(),
		"connected_at":          sess.ConnectedAt(),
		"last_activity":         sess.LastActivity(),
		"world_age":             age,
		"time_of_day":           timeOfDay,
		"entities":              sess.World().EntityCount(),
	})
}

func (s *Server) handlePlayer(c *gin.Context) {
	sess, ok := s.sessionOr503(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, sess.World().Player())
}

// handleEntities lists entities, optionally filtered by ?category=.
func (s *Server) handleEntities(c *gin.Context) {
	sess, ok := s.sessionOr503(c)
	if !ok {
		return
	}
	category := c.Query("category")

	entities := sess.World().Entities()
	views := make([]EntityView, 0, len(entities))
	for _, e := range entities {
		if category != "" && e.Kind.Category.String() != category {
			continue
		}
		views = append(views, NewEntityView(e))
	}
	sort.Slice(views, func(i, j int) bool { return views[i].ID < views[j].ID })

	c.JSON(http.StatusOK, gin.H{
		"entities": views,
		"total":    len(views),
	})
}

func (s *Server) handleEntity(c *gin.Context) {
	sess, ok := s.sessionOr503(c)
	if !ok {
		return
	}
	id, err := strconv.ParseInt(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid entity id"})
		return
	}
	e, found := sess.World().Entity(int32(id))
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "entity not found", "id": id})
		return
	}
	c.JSON(http.StatusOK, NewEntityView(e))
}

func (s *Server) handleChunks(c *gin.Context) {
	sess, ok := s.sessionOr503(c)
	if !ok {
		return
	}
	chunks := sess.World().Chunks()
	c.JSON(http.StatusOK, gin.H{
		"chunks": chunks,
		"total":  len(chunks),
	})
}

// handleChunkSection returns the 4096 block states of one section in
// y, z, x order.
func (s *Server) handleChunkSection(c *gin.Context) {
	sess, ok := s.sessionOr503(c)
	if !ok {
		return
	}
	var args [3]int64
	for i, name := range []string{"x", "z", "section"} {
		n, err := strconv.ParseInt(c.Param(name), 10, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
			return
		}
		args[i] = n
	}
	if args[2] < 0 || args[2] >= world.SectionsPerColumn {
		c.JSON(http.StatusBadRequest, gin.H{"error": "section out of range"})
		return
	}
	pos := world.ChunkPos{X: int32(args[0]), Z: int32(args[1])}
	states, found := sess.World().ChunkBlocks(pos, int(args[2]))
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "chunk not loaded", "chunk": pos})
		return
	}
	nonAir := 0
	for _, st := range states {
		if st != world.Air {
			nonAir++
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"chunk":   pos,
		"section": args[2],
		"non_air": nonAir,
		"states":  states,
	})
}

// handleBlock returns the state and block entity at a position.
func (s *Server) handleBlock(c *gin.Context) {
	sess, ok := s.sessionOr503(c)
	if !ok {
		return
	}
	var coords [3]int32
	for i, name := range []string{"x", "y", "z"} {
		n, err := strconv.ParseInt(c.Param(name), 10, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid coordinate " + name})
			return
		}
		coords[i] = int32(n)
	}
	pos := world.BlockPos{X: coords[0], Y: coords[1], Z: coords[2]}
	w := sess.World()
	if !w.HasChunk(pos.Chunk()) {
		c.JSON(http.StatusNotFound, gin.H{"error": "chunk not loaded", "chunk": pos.Chunk()})
		return
	}

	state := w.Block(pos)
	resp := gin.H{
		"pos":   pos,
		"state": uint16(state),
		"id":    state.ID(),
		"meta":  state.Meta(),
	}
	if be, found := w.BlockEntity(pos); found {
		resp["block_entity"] = be
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleWindows(c *gin.Context) {
	sess, ok := s.sessionOr503(c)
	if !ok {
		return
	}
	windows := sess.World().Windows()
	summaries := make([]gin.H, 0, len(windows))
	for _, w := range windows {
		summaries = append(summaries, gin.H{
			"id":     w.ID,
			"type":   w.Type,
			"title":  w.Title,
			"slots":  len(w.Slots),
			"filled": w.Filled(),
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"windows": summaries,
		"cursor":  sess.World().Cursor(),
	})
}

func (s *Server) handleWindow(c *gin.Context) {
	sess, ok := s.sessionOr503(c)
	if !ok {
		return
	}
	id, err := strconv.ParseInt(c.Param("id"), 10, 16)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid window id"})
		return
	}
	w, found := sess.World().Window(int16(id))
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "window not open", "id": id})
		return
	}
	c.JSON(http.StatusOK, w)
}
