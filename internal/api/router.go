package api

import (
	"context"
	"net/http"

	"go-triage/internal/agent"
	"go-triage/internal/auth"
	"go-triage/internal/config"
	"go-triage/internal/db"
	"go-triage/internal/fetcher"
	"go-triage/internal/knowledge"
	"go-triage/internal/llm"
	"go-triage/internal/parser"
	"go-triage/internal/tools"
	"go-triage/internal/user"

	"github.com/gin-gonic/gin"
)

// KnowledgeService is the part of knowledge.Base the API serves.
type KnowledgeService interface {
	Search(ctx context.Context, query string, k int) ([]knowledge.Result, error)
	Add(ctx context.Context, content string, metadata map[string]any) error
	Count(ctx context.Context) (int, error)
}

// FetchService is the part of fetcher.Fetcher the API serves.
type FetchService interface {
	Fetch(ctx context.Context, rawURL string, linkType parser.LinkType) (*fetcher.Document, error)
	FetchFromInput(ctx context.Context, text string) []fetcher.FetchResult
}

// Services are the components the HTTP handlers use. Discovery and
// Fetcher may be nil; their routes then answer 503.
type Services struct {
	Config    *config.Config
	Sessions  auth.SessionStore
	Agent     *agent.Agent
	Knowledge KnowledgeService
	Tools     *tools.Registry
	Fetcher   FetchService
	Discovery *llm.DiscoveryService
}

func usersExist() bool {
	var count int64
	if db.DB == nil {
		return false
	}
	db.DB.Model(&user.User{}).Count(&count)
	return count > 0
}

func SetupRouter(svc *Services) *gin.Engine {
	r := gin.Default()
	cfg := svc.Config
	subpath := cfg.Server.Subpath // "" or a path starting with '/'
	authed := auth.AuthMiddleware(cfg.Server.JWTSecret, svc.Sessions, false)
	admin := auth.AuthMiddleware(cfg.Server.JWTSecret, svc.Sessions, true)

	group := r.Group(subpath)
	{
		group.GET("/health", healthHandler)
		group.GET("/config", configHandler(cfg))
		group.GET("/models", authed, ModelsHandler(svc.Discovery))

		// Setup: only if no users
		group.GET("/setup", SetupStatusHandler())
		group.POST("/setup", SetupHandler())

		// Auth
		group.POST("/auth/login", LoginHandler(cfg, svc.Sessions))
		group.POST("/auth/logout", authed, LogoutHandler(svc.Sessions))
		group.GET("/auth/me", authed, MeHandler())
		group.GET("/users/online", authed, OnlineUserCountHandler(svc.Sessions))

		// Admin: operators
		group.GET("/users", admin, ListUsersHandler())
		group.POST("/users", admin, CreateUserHandler())
		group.PUT("/users/:id", admin, UpdateUserHandler(svc.Sessions))
		group.DELETE("/users/:id", admin, DeleteUserHandler(svc.Sessions))

		// Conversations
		group.POST("/conversations", authed, CreateConversationHandler())
		group.GET("/conversations", authed, ListConversationsHandler())
		group.GET("/conversations/:id", authed, GetConversationHandler())
		group.DELETE("/conversations/:id", authed, DeleteConversationHandler())
		group.GET("/conversations/:id/turns", authed, ListTurnsHandler())
		group.POST("/conversations/:id/turns", authed, CreateTurnHandler(svc))

		// Streaming chat; authenticates itself so browsers can pass ?token=
		group.GET("/ws/chat", WSChatHandler(svc))

		// Knowledge base
		group.GET("/knowledge/search", authed, KnowledgeSearchHandler(svc.Knowledge, cfg.Knowledge.TopK))
		group.POST("/knowledge", admin, AddKnowledgeHandler(svc.Knowledge))

		// Tools
		group.GET("/tools", authed, ListToolsHandler(svc.Tools))
		group.POST("/tools/:name", admin, RunToolHandler(svc.Tools))

		group.POST("/fetch", authed, FetchHandler(svc.Fetcher))
	}
	r.NoRoute(func(c *gin.Context) {
		errorJSON(c, http.StatusNotFound, "Not found")
	})
	return r
}
