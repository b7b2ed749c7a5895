package llm

import "context"

// Middleware wraps a client with one cross-cutting concern.
type Middleware func(next LLMClient) LLMClient

type funcClient struct {
	complete func(context.Context, CompletionRequest) (CompletionResponse, error)
	model    func() string
}

func (f funcClient) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	return f.complete(ctx, req)
}

func (f funcClient) GetModelName() string {
	return f.model()
}

// WrapClient adapts a Complete function and a model-name getter to LLMClient.
func WrapClient(
	complete func(context.Context, CompletionRequest) (CompletionResponse, error),
	model func() string,
) LLMClient {
	return funcClient{complete: complete, model: model}
}

// Chain wraps base so that Chain(c, a, b) runs a, then b, then c.
// Nil middlewares are skipped.
func Chain(base LLMClient, middlewares ...Middleware) LLMClient {
	client := base
	for i := len(middlewares) - 1; i >= 0; i-- {
		if middlewares[i] == nil {
			continue
		}
		client = middlewares[i](client)
	}
	return client
}
