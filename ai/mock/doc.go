// Package mock provides test doubles for the ai package interfaces.
//
// Each mock offers deterministic default behavior so tests run without any
// model server, plus function fields for injecting custom behavior:
//
//	embedder := mock.NewMockEmbedder()
//	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
//	    return nil, errors.New("embedding service down")
//	}
package mock
