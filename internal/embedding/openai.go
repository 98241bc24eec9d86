// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package embedding

import (
	"context"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

// OpenAI embeds through an OpenAI-compatible API using langchaingo.
type OpenAI struct {
	model    string
	embedder embeddings.Embedder
}

// NewOpenAI creates an OpenAI-compatible embedder. An empty token is sent
// as "none" for local services that do not authenticate.
func NewOpenAI(baseURL, model, token string) (*OpenAI, error) {
	if token == "" {
		token = "none"
	}
	opts := []openai.Option{
		openai.WithToken(token),
		openai.WithEmbeddingModel(model),
	}
	if baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}

	client, err := openai.New(opts...)
	if err != nil {
		return nil, err
	}
	embedder, err := embeddings.NewEmbedder(client, embeddings.WithStripNewLines(true))
	if err != nil {
		return nil, err
	}
	return &OpenAI{model: model, embedder: embedder}, nil
}

// Name implements Embedder.
func (o *OpenAI) Name() string { return "openai:" + o.model }

// Embed implements Embedder.
func (o *OpenAI) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := o.embedder.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 || len(vecs[0]) == 0 {
		return nil, ErrEmptyEmbedding
	}
	return vecs[0], nil
}
