// Package backend provides stand-in inference executors. The real engines
// (LLM runtime, TTS voice bank, diffusion model) are external collaborators;
// these simulated versions reproduce their scheduling-relevant behavior —
// they hold a worker for a configurable duration and honor context
// cancellation — without touching any hardware.
package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/lunaris-ai/scheduler/internal/task"
)

// llmRequest is the payload shape accepted by the LLM executor.
type llmRequest struct {
	Prompt string `json:"prompt"`
}

// ttsRequest is the payload shape accepted by the TTS executor.
type ttsRequest struct {
	Text string `json:"text"`
}

// imageRequest is the payload shape accepted by the image executor.
type imageRequest struct {
	Prompt string `json:"prompt"`
}

// simulate blocks for the synthetic inference latency or until the context
// is cancelled, whichever comes first.
func simulate(ctx context.Context, latency time.Duration) error {
	if latency <= 0 {
		return nil
	}
	timer := time.NewTimer(latency)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SimulatedLLM returns an executor that mimics language-model generation.
func SimulatedLLM(latency time.Duration, logger *slog.Logger) task.Executor {
	logger = logger.With("backend", "simulated_llm")
	return func(ctx context.Context, payload []byte) (string, error) {
		var req llmRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			return "", fmt.Errorf("decoding llm request: %w", err)
		}
		if req.Prompt == "" {
			return "", fmt.Errorf("llm request has empty prompt")
		}

		logger.Debug("generating", "prompt_len", len(req.Prompt))
		if err := simulate(ctx, latency); err != nil {
			return "", err
		}
		return fmt.Sprintf("generated %d tokens", len(req.Prompt)), nil
	}
}

// SimulatedTTS returns an executor that mimics CPU speech synthesis.
func SimulatedTTS(latency time.Duration, logger *slog.Logger) task.Executor {
	logger = logger.With("backend", "simulated_tts")
	return func(ctx context.Context, payload []byte) (string, error) {
		var req ttsRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			return "", fmt.Errorf("decoding tts request: %w", err)
		}
		if req.Text == "" {
			return "", fmt.Errorf("tts request has empty text")
		}

		logger.Debug("synthesizing", "text_len", len(req.Text))
		if err := simulate(ctx, latency); err != nil {
			return "", err
		}
		return fmt.Sprintf("synthesized %d characters of speech", len(req.Text)), nil
	}
}

// SimulatedImage returns an executor that mimics diffusion image generation.
func SimulatedImage(latency time.Duration, logger *slog.Logger) task.Executor {
	logger = logger.With("backend", "simulated_image")
	return func(ctx context.Context, payload []byte) (string, error) {
		var req imageRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			return "", fmt.Errorf("decoding image request: %w", err)
		}
		if req.Prompt == "" {
			return "", fmt.Errorf("image request has empty prompt")
		}

		logger.Debug("rendering", "prompt_len", len(req.Prompt))
		if err := simulate(ctx, latency); err != nil {
			return "", err
		}
		return "rendered 1 image", nil
	}
}

// RegisterAll binds a simulated executor for every routing key the
// scheduler knows, all sharing the same synthetic latency.
func RegisterAll(f *task.Factory, latency time.Duration, logger *slog.Logger) {
	f.Register(task.TypeLLMGPU, SimulatedLLM(latency, logger))
	f.Register(task.TypeTTSCPU, SimulatedTTS(latency, logger))
	f.Register(task.TypeImageGPU, SimulatedImage(latency, logger))
}
