// Package face is the optional face-embedding collaborator of a capture.
//
// Recognition itself lives outside memento. When enabled, the capture
// pipeline asks an [Embedder] for a vector of the counterpart's face and
// passes it through to the result sink untouched.
package face

import "context"

// Embedder produces a face embedding for the current counterpart. A nil
// vector with a nil error means no face was available.
type Embedder interface {
	Embed(ctx context.Context) ([]float32, error)
}

// Noop is the disabled embedder. It never returns a vector.
type Noop struct{}

// Embed implements [Embedder].
func (Noop) Embed(context.Context) ([]float32, error) { return nil, nil }

var _ Embedder = Noop{}
