package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"go-triage/internal/agent"
	"go-triage/internal/chat"
	"go-triage/internal/db"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const historyTimestamp = "2006-01-02 15:04:05"

// TurnRequest asks the agent one question within a conversation.
type TurnRequest struct {
	Query   string         `json:"query"`
	Context map[string]any `json:"context,omitempty"`
}

// conversationFromParam loads the :id conversation of the current user,
// writing the error response itself when it can't.
func conversationFromParam(c *gin.Context) (*chat.Conversation, bool) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		errorJSON(c, http.StatusUnauthorized, "unauthorized")
		return nil, false
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		errorJSON(c, http.StatusBadRequest, "invalid conversation id")
		return nil, false
	}
	conv, err := chat.GetConversation(db.DB, userID, uint(id))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			errorJSON(c, http.StatusNotFound, "conversation not found")
			return nil, false
		}
		errorJSON(c, http.StatusInternalServerError, "failed to load conversation")
		return nil, false
	}
	return conv, true
}

// POST /conversations
func CreateConversationHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := getUserIDFromContext(c)
		if !ok {
			errorJSON(c, http.StatusUnauthorized, "unauthorized")
			return
		}
		var req struct {
			Title string `json:"title"`
		}
		// An empty body is fine; the title then comes from the first question.
		_ = c.ShouldBindJSON(&req)

		conv := chat.Conversation{Title: chat.TitleFrom(strings.TrimSpace(req.Title)), UserID: userID}
		if err := db.DB.Create(&conv).Error; err != nil {
			errorJSON(c, http.StatusInternalServerError, "failed to create conversation")
			return
		}
		c.JSON(http.StatusCreated, conv)
	}
}

// GET /conversations
func ListConversationsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := getUserIDFromContext(c)
		if !ok {
			errorJSON(c, http.StatusUnauthorized, "unauthorized")
			return
		}
		convs, err := chat.ListConversations(db.DB, userID)
		if err != nil {
			errorJSON(c, http.StatusInternalServerError, "failed to fetch conversations")
			return
		}
		c.JSON(http.StatusOK, convs)
	}
}

// GET /conversations/:id
func GetConversationHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		conv, ok := conversationFromParam(c)
		if !ok {
			return
		}
		turns, err := chat.ListTurns(db.DB, conv.ID)
		if err != nil {
			errorJSON(c, http.StatusInternalServerError, "failed to fetch turns")
			return
		}
		c.JSON(http.StatusOK, gin.H{"conversation": conv, "turns": turns})
	}
}

// DELETE /conversations/:id
func DeleteConversationHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		conv, ok := conversationFromParam(c)
		if !ok {
			return
		}
		if err := chat.DeleteConversation(db.DB, conv); err != nil {
			errorJSON(c, http.StatusInternalServerError, "failed to delete conversation")
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Conversation deleted"})
	}
}

// GET /conversations/:id/turns
func ListTurnsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		conv, ok := conversationFromParam(c)
		if !ok {
			return
		}
		turns, err := chat.ListTurns(db.DB, conv.ID)
		if err != nil {
			errorJSON(c, http.StatusInternalServerError, "failed to fetch turns")
			return
		}
		c.JSON(http.StatusOK, turns)
	}
}

// POST /conversations/:id/turns runs the agent on the question and stores
// the turn. A failed answer is stored too and reported with 502.
func CreateTurnHandler(svc *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		conv, ok := conversationFromParam(c)
		if !ok {
			return
		}
		var req TurnRequest
		if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Query) == "" {
			errorJSON(c, http.StatusBadRequest, "missing query")
			return
		}

		turn, res, err := runTurn(c.Request.Context(), svc, conv, req.Query, req.Context, nil)
		if err != nil {
			errorJSON(c, http.StatusInternalServerError, err.Error())
			return
		}
		status := http.StatusCreated
		if res.Error != "" {
			status = http.StatusBadGateway
		}
		c.JSON(status, gin.H{"turn": turn, "result": res})
	}
}

// runTurn answers query with the conversation's stored history and
// persists the turn. The returned error is only set when loading or saving
// fails; agent failures are reported in the result.
func runTurn(ctx context.Context, svc *Services, conv *chat.Conversation, query string, base map[string]any, observe agent.Observer) (*chat.Turn, *agent.ChatResult, error) {
	stored, err := chat.ListTurns(db.DB, conv.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("load turns: %w", err)
	}
	history := svc.Agent.NewConversation()
	history.Load(agentHistory(stored, svc.Config.Agent.ContextSize))

	res, _ := svc.Agent.ChatIn(ctx, history, query, base, observe)

	turn := &chat.Turn{Query: query, Response: res.Response, Error: res.Error}
	if res.Reasoning != nil {
		if raw, err := json.Marshal(res.Reasoning); err == nil {
			turn.Reasoning = datatypes.JSON(raw)
		}
	}
	if err := chat.AddTurn(db.DB, conv, turn); err != nil {
		return nil, res, fmt.Errorf("save turn: %w", err)
	}
	return turn, res, nil
}

// agentHistory converts the stored turns that were answered into agent
// history, trimmed to the context window when one is configured.
func agentHistory(stored []chat.Turn, contextSize int) []agent.Turn {
	answered := make([]chat.Turn, 0, len(stored))
	for _, t := range stored {
		if t.Error == "" {
			answered = append(answered, t)
		}
	}
	if contextSize > 0 {
		answered = chat.BuildSlidingWindow(answered, contextSize)
	}
	history := make([]agent.Turn, 0, len(answered))
	for _, t := range answered {
		history = append(history, agent.Turn{
			Timestamp: t.CreatedAt.Format(historyTimestamp),
			Query:     t.Query,
			Response:  t.Response,
		})
	}
	return history
}
