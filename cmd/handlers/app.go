package handlers

import (
	"context"
	"fmt"
	"time"

	"pheme/internal/config"
	"pheme/internal/fetch"
	"pheme/internal/llm"
	"pheme/internal/pipeline"
	"pheme/internal/store"
	"pheme/internal/summarize"
)

// app bundles the wired dependencies a command needs. Everything is
// constructed once here and passed by reference; no command reaches
// into ambient global state.
type app struct {
	cfg      *config.Config
	store    *store.Store
	llm      llm.Client
	pipeline *pipeline.Pipeline
}

// buildApp opens storage and wires the pipeline from configuration.
func buildApp() (*app, error) {
	cfg := config.Get()

	st, err := store.New(cfg.App.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	fetchTimeout := config.Duration(cfg.Fetch.Timeout, 30*time.Second)
	extractTimeout := config.Duration(cfg.Extract.Timeout, 15*time.Second)
	llmTimeout := config.Duration(cfg.LLM.Timeout, 60*time.Second)

	factory := fetch.NewFactory(fetch.Options{
		Timeout:   fetchTimeout,
		UserAgent: cfg.Fetch.UserAgent,
	})
	extractor := fetch.NewExtractor(extractTimeout, cfg.Fetch.UserAgent)

	client, err := llm.New(cfg.LLM.Provider, llm.Options{
		Timeout: llmTimeout,
		Host:    cfg.LLM.Ollama.Host,
		Model:   llmModel(cfg),
		APIKey:  cfg.LLM.Gemini.APIKey,
	})
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to build llm client: %w", err)
	}

	summarizer := summarize.New(client, summarize.Options{
		Workers:        cfg.Summarize.Workers,
		MaxInputChars:  cfg.Summarize.MaxInputChars,
		FallbackChars:  cfg.Summarize.FallbackChars,
		MaxOutputWords: cfg.Summarize.MaxOutputWords,
	})

	p := pipeline.New(pipeline.Deps{
		Storage:    st,
		Fetchers:   factory,
		Extractor:  extractor,
		Summarizer: summarizer,
	}, pipeline.Options{
		FetchWorkers:   cfg.Fetch.Workers,
		ExtractWorkers: cfg.Extract.Workers,
	})

	return &app{cfg: cfg, store: st, llm: client, pipeline: p}, nil
}

// llmReady reports whether the configured inference backend is
// reachable. Only the Ollama provider exposes a health endpoint;
// other providers are assumed reachable.
func llmReady(ctx context.Context, client llm.Client) bool {
	if o, ok := client.(*llm.Ollama); ok {
		return o.Ping(ctx)
	}
	return true
}

func (a *app) Close() {
	a.store.Close()
}

func llmModel(cfg *config.Config) string {
	if cfg.LLM.Provider == "gemini" {
		return cfg.LLM.Gemini.Model
	}
	return cfg.LLM.Ollama.Model
}
