package api

import "context"

// Transcriber turns recorded audio into a question string. Implementations
// call an external speech-to-text service.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte) (string, error)
}

// Speaker turns an answer into audio for playback.
type Speaker interface {
	Speak(ctx context.Context, text string) ([]byte, error)
}
