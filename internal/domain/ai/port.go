package ai

import "context"

// Client explains a scan result in plain language. input is a JSON
// document describing the result.
type Client interface {
	Explain(ctx context.Context, input string) (string, error)
}
