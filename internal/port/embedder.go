package port

// Embedder generates vector embeddings for text.
type Embedder interface {
	// Embed generates embeddings for the given texts, one vector per input
	// in the same order. Inputs are sent in sequential batches; a batch
	// failure fails the whole call. An entry may be nil when the provider
	// omitted it from the response.
	Embed(texts []string) ([][]float32, error)

	// Dimension returns the embedding vector dimension.
	Dimension() int

	// ModelName returns the name of the embedding model.
	ModelName() string
}
