//go:build llama

package engine

import (
	"context"
	"fmt"
	"image"

	llama "github.com/go-skynet/go-llama.cpp"
)

// llamaRuntime loads GGUF models in-process via llama.cpp. Built only with
// the 'llama' tag so default builds stay CGO-free.
type llamaRuntime struct{}

// NewLlamaRuntime returns the in-process llama.cpp runtime.
func NewLlamaRuntime() Runtime { return &llamaRuntime{} }

type llamaSession struct {
	model *llama.LLama
	load  LoadOptions
}

func (r *llamaRuntime) Load(path string, opts LoadOptions) (Session, error) {
	mo := []llama.ModelOption{}
	if opts.ContextSize > 0 {
		mo = append(mo, llama.SetContext(opts.ContextSize))
	}
	m, err := llama.New(path, mo...)
	if err != nil {
		return nil, err
	}
	return &llamaSession{model: m, load: opts}, nil
}

func (s *llamaSession) Predict(ctx context.Context, prompt string, img image.Image, opts GenOptions) (string, error) {
	if s.model == nil {
		return "", fmt.Errorf("llama model not initialized")
	}
	if img != nil {
		// go-llama.cpp has no vision path; multimodal prompts need a
		// different runtime build.
		return "", fmt.Errorf("image input not supported by the llama runtime")
	}

	s.model.SetTokenCallback(func(string) bool {
		select {
		case <-ctx.Done():
			return false
		default:
			return true
		}
	})

	po := []llama.PredictOption{
		llama.SetThreads(maxInt(1, s.load.Threads)),
	}
	if opts.MaxTokens > 0 {
		po = append(po, llama.SetTokens(opts.MaxTokens))
	}
	if opts.Temperature > 0 {
		po = append(po, llama.SetTemperature(opts.Temperature))
	}
	if opts.TopK > 0 {
		po = append(po, llama.SetTopK(opts.TopK))
	}
	if opts.TopP > 0 {
		po = append(po, llama.SetTopP(opts.TopP))
	}

	text, err := s.model.Predict(prompt, po...)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", err
	}
	return text, nil
}

func (s *llamaSession) Close() error {
	if s.model != nil {
		s.model.Free()
		s.model = nil
	}
	return nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
