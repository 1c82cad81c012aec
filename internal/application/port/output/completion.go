package output

import "context"

type CompletionPort interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

type CompletionRequest struct {
	Prompt      string
	Stop        []string
	Temperature float64
}
