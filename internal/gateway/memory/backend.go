package memory

import "github.com/GoSim-25-26J-441/obras/internal/gateway"

// NewBackend wires the three in-memory stores together.
func NewBackend(publicURL string) *gateway.Backend {
	docs := NewDocs()
	b := &gateway.Backend{
		Name:  "memory",
		Auth:  NewAuth(),
		Docs:  docs,
		Blobs: NewBlobs(publicURL),
	}
	b.OnClose(docs.Close)
	return b
}
