// Package speech holds the collaborator interfaces for speech recognition
// and translation plus their HTTP implementations.
package speech

import "context"

// Transcriber converts a local audio file to text.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

// Translator renders text into the named target language.
type Translator interface {
	Translate(ctx context.Context, text, targetLanguage string) (string, error)
}
