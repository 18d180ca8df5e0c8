// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch

// Package app wires every subsystem into a single AppState, replacing
// the teacher's module-level globals and ad-hoc *sql.DB/vectordb.VectorDB
// parameter threading in cmd/hive-server/main.go with one explicit
// constructor so both cmd/server/main.go and tests share the same
// wiring path (tests substitute fakes for the external-service fields).
package app

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/redis/go-redis/v9"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/northbound/ragcore/internal/chat"
	"github.com/northbound/ragcore/internal/config"
	"github.com/northbound/ragcore/internal/embeddings"
	"github.com/northbound/ragcore/internal/llm"
	"github.com/northbound/ragcore/internal/logger"
	"github.com/northbound/ragcore/internal/queue"
	"github.com/northbound/ragcore/internal/rerank"
	"github.com/northbound/ragcore/internal/retriever"
	"github.com/northbound/ragcore/internal/sparse"
	"github.com/northbound/ragcore/internal/store"
	"github.com/northbound/ragcore/internal/vectordb"
	"github.com/northbound/ragcore/internal/worker"
)

// State bundles every live dependency the HTTP server and background
// workers need. Nil fields (Redis and the Progress, Chat and Queue
// built on it; a SQLite failure aborts New instead) mean that subsystem is
// running in degraded/offline mode, not a programmer error -- callers
// check for nil the same way cmd/hive-server/main.go checked for a nil
// redisClient before deciding to start workers.
type State struct {
	Config      *config.Config
	DB          *sql.DB
	Redis       *redis.Client
	QdrantConn  *grpc.ClientConn
	VectorDB    vectordb.VectorDB
	Embedder    embeddings.Embedder
	LLM         llm.Provider
	Reranker    rerank.Reranker
	SparseIndex *sparse.Index
	Progress    *store.ProgressStore
	Chat        *store.ChatStore
	Retriever   *retriever.Retriever
	Engine      *chat.Engine
	Queue       queue.Queue
}

// New constructs the full dependency graph from a loaded Config. Any
// subsystem failure that isn't fatal to a reduced ("UI-only") mode
// degrades to a mock/nil field with a logged warning, matching the
// teacher's own "warning: ... using mock vector DB" posture in
// cmd/hive-server/main.go.
func New(ctx context.Context, cfg *config.Config) (*State, error) {
	s := &State{Config: cfg}

	db, err := config.OpenSQLite(cfg.SQLite)
	if err != nil {
		return nil, fmt.Errorf("app: sqlite: %w", err)
	}
	s.DB = db

	if redisClient, err := config.NewRedisClient(ctx, cfg.Redis); err != nil {
		logger.Warnf("app: redis unavailable, chat memory and progress tracking disabled: %v", err)
	} else {
		s.Redis = redisClient
		s.Progress = store.NewProgressStore(redisClient)
		s.Chat = store.NewChatStore(redisClient, db)

		q, err := queue.NewRedisQueue(redisClient, "ragcore:ingest")
		if err != nil {
			logger.Warnf("app: queue init failed: %v", err)
		} else {
			s.Queue = q
		}
	}

	s.VectorDB, s.QdrantConn = buildVectorDB(cfg)

	embedder, err := embeddings.NewEmbedder(embeddings.Config{
		Provider: cfg.Embedding.Provider,
		Model:    cfg.Embedding.Model,
		BaseURL:  cfg.Embedding.BaseURL,
		APIKey:   cfg.Embedding.APIKey,
		Timeout:  cfg.Embedding.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("app: embedder: %w", err)
	}
	s.Embedder = embedder

	provider, err := llm.NewProvider(llm.Config{
		Provider:    cfg.LLM.Provider,
		Model:       cfg.LLM.Model,
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      cfg.LLM.APIKey,
		Timeout:     int64(cfg.LLM.Timeout.Seconds()),
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("app: llm provider: %w", err)
	}
	s.LLM = provider

	if cfg.Reranker.Enabled {
		s.Reranker = rerank.NewHTTPReranker(rerank.Config{
			BaseURL: cfg.Reranker.BaseURL,
			Model:   cfg.Reranker.Model,
			Timeout: cfg.Reranker.Timeout,
		})
	} else {
		s.Reranker = rerank.Noop{}
	}

	if cfg.Retrieval.HybridEnabled {
		s.SparseIndex = sparse.NewIndex()
		if count, err := s.VectorDB.Count(ctx); err == nil && count > 0 {
			if err := s.SparseIndex.Refresh(ctx, s.VectorDB); err != nil {
				logger.Warnf("app: initial sparse index warm-up failed: %v", err)
			}
		}
	}

	s.Retriever = retriever.New(s.Embedder, s.VectorDB, s.SparseIndex, cfg.Retrieval.HybridEnabled, cfg.Retrieval.RRFK)
	s.Engine = chat.New(s.Retriever, s.Reranker, s.LLM, s.Chat, chat.Config{
		TopK:     cfg.Retrieval.TopK,
		MinScore: cfg.Retrieval.MinScore,
	})

	return s, nil
}

// buildVectorDB dials Qdrant exactly as cmd/hive-server/main.go did
// (grpc.Dial against localhost:6334, insecure credentials) and falls
// back to the in-memory mock store on any failure, preserving the
// teacher's "UI-only mode" degradation instead of refusing to start.
func buildVectorDB(cfg *config.Config) (vectordb.VectorDB, *grpc.ClientConn) {
	conn, err := grpc.Dial("localhost:6334", grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		logger.Warnf("app: failed to dial qdrant: %v, using mock vector DB (UI-only mode)", err)
		return vectordb.NewMockVectorDB(), nil
	}
	vdb, err := vectordb.NewQdrantVectorDB(conn, "ragcore_chunks", embeddingDimension(cfg))
	if err != nil {
		logger.Warnf("app: failed to init qdrant collection: %v, using mock vector DB (UI-only mode)", err)
		conn.Close()
		return vectordb.NewMockVectorDB(), nil
	}
	return vdb, conn
}

func embeddingDimension(cfg *config.Config) int {
	switch cfg.Embedding.Provider {
	case "openai":
		return 1536
	default:
		return 384
	}
}

// IngestDeps builds the ingestion worker's dependency bundle from this
// State.
func (s *State) IngestDeps() worker.IngestDeps {
	return worker.IngestDeps{
		Embedder:      s.Embedder,
		VectorDB:      s.VectorDB,
		Progress:      s.Progress,
		SparseIndex:   s.SparseIndex,
		LLM:           s.LLM,
		Contextualize: s.Config.Retrieval.EnableContextualRetrieval,
		ChunkTokens:   s.Config.Retrieval.ChunkTokens,
		ChunkOverlap:  s.Config.Retrieval.ChunkOverlap,
		Queue:         s.Queue,
	}
}

// Close releases held connections on shutdown.
func (s *State) Close() {
	if s.DB != nil {
		s.DB.Close()
	}
	if s.Redis != nil {
		s.Redis.Close()
	}
	if s.QdrantConn != nil {
		s.QdrantConn.Close()
	}
}
