package main

import (
	"context"
	"fmt"
	"log"

	"go-triage/internal/agent"
	"go-triage/internal/config"
	"go-triage/internal/db"
	"go-triage/internal/fetcher"
	"go-triage/internal/knowledge"
	"go-triage/internal/llm"
	redisdb "go-triage/internal/redis"
	"go-triage/internal/tools"

	"github.com/redis/go-redis/v9"
)

// app holds the components every command is built from.
type app struct {
	cfg     *config.Config
	rdb     *redis.Client
	client  *llm.Client
	kb      *knowledge.Base
	fetcher *fetcher.Fetcher
	tools   *tools.Registry
	agent   *agent.Agent
}

func bootstrap(ctx context.Context) (*app, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := db.Init(cfg); err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}

	rdb, err := redisdb.Connect(ctx, cfg)
	if err != nil {
		log.Printf("[Main] WARNING: %v; continuing without redis", err)
	}

	client := llm.NewClient(cfg.LLM, nil)
	a := &app{cfg: cfg, rdb: rdb, client: client}

	if a.kb, err = knowledge.Open(cfg, db.DB, client); err != nil {
		a.Close()
		return nil, fmt.Errorf("knowledge base: %w", err)
	}

	a.fetcher = fetcher.New(cfg.Fetcher, fetcher.NewRedisCache(rdb))
	a.tools = tools.NewRegistry(cfg.Tools.PerTool)
	if err := tools.RegisterDefaults(a.tools, cfg, a.fetcher); err != nil {
		a.Close()
		return nil, fmt.Errorf("tools: %w", err)
	}

	a.agent, err = agent.New(agent.Deps{
		Model:     client,
		Knowledge: a.kb,
		Tools:     a.tools,
		Fetcher:   a.fetcher,
	}, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// seed fills an empty knowledge base from the configured seed file, or the
// built-in entries when none is set.
func (a *app) seed(ctx context.Context) (int, error) {
	entries := knowledge.BuiltinSeed()
	if path := a.cfg.Knowledge.SeedFile; path != "" {
		var err error
		if entries, err = knowledge.LoadSeedFile(path); err != nil {
			return 0, err
		}
	}
	return a.kb.Seed(llm.WithPriority(ctx, llm.PriorityBackground), entries)
}

// seedQuietly seeds at startup; a failure only costs the seed entries.
func (a *app) seedQuietly(ctx context.Context) {
	if _, err := a.seed(ctx); err != nil {
		log.Printf("[Main] WARNING: knowledge seed failed: %v", err)
	}
}

func (a *app) Close() {
	a.client.Manager().Stop()
	if a.rdb != nil {
		a.rdb.Close()
	}
	if db.DB != nil {
		if sqlDB, err := db.DB.DB(); err == nil {
			sqlDB.Close()
		}
	}
}
