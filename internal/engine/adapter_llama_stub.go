//go:build !llama

package engine

// This file provides a no-CGO stub for the llama runtime. It is compiled when
// the 'llama' build tag is NOT set, keeping default builds and CI CGO-free.
// The real runtime lives in adapter_llama.go (tagged 'llama').

type llamaRuntime struct{}

// NewLlamaRuntime returns a stub that refuses to load models without the
// 'llama' build tag. This avoids any mocked inference in production binaries
// built without CGO support.
func NewLlamaRuntime() Runtime { return &llamaRuntime{} }

func (r *llamaRuntime) Load(path string, opts LoadOptions) (Session, error) {
	return nil, ErrRuntimeUnavailable("llama support not built (missing 'llama' build tag)")
}
