package api

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"sync"

	"go-triage/internal/agent"
	"go-triage/internal/auth"
	"go-triage/internal/chat"
	"go-triage/internal/db"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// WSChatPrompt is one question sent over the socket. A zero
// ConversationID starts a new conversation.
type WSChatPrompt struct {
	ConversationID uint           `json:"conversation_id"`
	Query          string         `json:"query"`
	Context        map[string]any `json:"context,omitempty"`
}

// WSMessage is what the server sends: progress events while the agent
// works, then a result or an error.
type WSMessage struct {
	Type           string            `json:"type"` // "progress", "result" or "error"
	ConversationID uint              `json:"conversation_id,omitempty"`
	Event          *agent.Event      `json:"event,omitempty"`
	Turn           *chat.Turn        `json:"turn,omitempty"`
	Result         *agent.ChatResult `json:"result,omitempty"`
	Error          string            `json:"error,omitempty"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Thread-safe wrapper for websocket.Conn
type safeWSConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *safeWSConn) WriteJSON(v interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(v)
}

func (s *safeWSConn) ReadMessage() (int, []byte, error) {
	return s.conn.ReadMessage()
}

func (s *safeWSConn) Close() error {
	return s.conn.Close()
}

// GET /ws/chat. The token comes from the Authorization header or the
// token query parameter and must match the user's session.
func WSChatHandler(svc *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader("Authorization")
		if token == "" {
			token = c.Query("token")
		}
		if token == "" {
			errorJSON(c, http.StatusUnauthorized, "missing JWT")
			return
		}
		token = strings.TrimPrefix(token, "Bearer ")
		claims, err := auth.ParseJWT(svc.Config.Server.JWTSecret, token)
		if err != nil {
			errorJSON(c, http.StatusUnauthorized, "invalid JWT")
			return
		}
		current, err := svc.Sessions.Get(c.Request.Context(), claims.UserID)
		if err != nil || current != token {
			errorJSON(c, http.StatusUnauthorized, "Session expired or invalid")
			return
		}

		rawConn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Printf("[WS] Upgrade failed: %v", err)
			return
		}
		conn := &safeWSConn{conn: rawConn}
		defer conn.Close()

		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var prompt WSChatPrompt
			if err := json.Unmarshal(msg, &prompt); err != nil {
				conn.WriteJSON(WSMessage{Type: "error", Error: "invalid request"})
				continue
			}
			if strings.TrimSpace(prompt.Query) == "" {
				conn.WriteJSON(WSMessage{Type: "error", ConversationID: prompt.ConversationID, Error: "missing query"})
				continue
			}
			handleWSPrompt(c, svc, conn, claims.UserID, prompt)
		}
	}
}

func handleWSPrompt(c *gin.Context, svc *Services, conn *safeWSConn, userID uint, prompt WSChatPrompt) {
	var conv *chat.Conversation
	if prompt.ConversationID == 0 {
		conv = &chat.Conversation{UserID: userID}
		if err := db.DB.Create(conv).Error; err != nil {
			conn.WriteJSON(WSMessage{Type: "error", Error: "failed to create conversation"})
			return
		}
	} else {
		var err error
		if conv, err = chat.GetConversation(db.DB, userID, prompt.ConversationID); err != nil {
			conn.WriteJSON(WSMessage{Type: "error", ConversationID: prompt.ConversationID, Error: "conversation not found"})
			return
		}
	}

	observe := func(ev agent.Event) {
		if ev.Stage == agent.StageDone || ev.Stage == agent.StageError {
			return
		}
		if err := conn.WriteJSON(WSMessage{Type: "progress", ConversationID: conv.ID, Event: &ev}); err != nil {
			log.Printf("[WS] Failed to send progress: %v", err)
		}
	}

	turn, res, err := runTurn(c.Request.Context(), svc, conv, prompt.Query, prompt.Context, observe)
	if err != nil {
		conn.WriteJSON(WSMessage{Type: "error", ConversationID: conv.ID, Error: err.Error()})
		return
	}
	out := WSMessage{Type: "result", ConversationID: conv.ID, Turn: turn, Result: res}
	if res.Error != "" {
		out.Type = "error"
		out.Error = res.Error
	}
	conn.WriteJSON(out)
}
