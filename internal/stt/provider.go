// Package stt integrates external streaming speech-to-text providers.
// The relay only ever sees the Provider/Stream pair; provider-specific
// wire shapes stay behind this boundary.
package stt

import "context"

// Result is one recognized text segment.
type Result struct {
	Text       string
	Confidence float64
	IsFinal    bool
}

// Stream is one live transcription session. Send forwards a raw audio
// chunk in receipt order; Results yields recognized segments until the
// provider side ends, then the channel closes. Close must be safe to call
// more than once.
type Stream interface {
	Send(chunk []byte) error
	Results() <-chan Result
	Close() error
}

// Provider opens live transcription streams.
type Provider interface {
	OpenStream(ctx context.Context) (Stream, error)
}
