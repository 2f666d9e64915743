package web

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/olahol/melody"

	"github.com/GoSim-25-26J-441/obras/internal/logging"
	"github.com/GoSim-25-26J-441/obras/internal/workspace"
)

const (
	keyWorkspace = "workspace_id"
	keyCancel    = "cancel"
)

var refreshMessage = []byte("refresh")

// Hub pushes a refresh signal to every socket of a workspace when its view
// changes.
type Hub struct {
	m   *melody.Melody
	log *logging.Logger
}

func NewHub(manager *workspace.Manager) *Hub {
	m := melody.New()
	m.Config.MaxMessageSize = 512
	m.Config.PingPeriod = 30 * time.Second
	m.Config.PongWait = 60 * time.Second

	h := &Hub{m: m, log: logging.New("ws")}

	m.HandleConnect(func(s *melody.Session) {
		id, _ := s.Get(keyWorkspace)
		wsID := toString(id)
		w, ok := manager.Get(wsID)
		if !ok {
			_ = s.Close()
			return
		}
		cancel := w.OnChange(func() {
			// Write never blocks; a full buffer is reported to HandleError.
			_ = s.Write(refreshMessage)
		})
		s.Set(keyCancel, cancel)
		h.log.With(wsID).LogDebugf("connect", "sockets=%d", m.Len())
	})

	m.HandleDisconnect(func(s *melody.Session) {
		if v, ok := s.Get(keyCancel); ok {
			if cancel, ok := v.(func()); ok {
				cancel()
			}
		}
		id, _ := s.Get(keyWorkspace)
		h.log.With(toString(id)).LogDebugf("disconnect", "sockets=%d", m.Len())
	})

	m.HandleError(func(s *melody.Session, err error) {
		id, _ := s.Get(keyWorkspace)
		h.log.With(toString(id)).LogWarnf("socket", "error=%v", err)
	})

	return h
}

// Serve upgrades the request into a socket bound to workspaceID. It blocks
// until the socket closes.
func (h *Hub) Serve(c *gin.Context, workspaceID string) error {
	return h.m.HandleRequestWithKeys(c.Writer, c.Request, map[string]any{keyWorkspace: workspaceID})
}

func (h *Hub) Len() int {
	return h.m.Len()
}

func (h *Hub) Close() error {
	return h.m.Close()
}

func toString(v any) string {
	s, _ := v.(string)
	return s
}
