package driven

import "context"

// VisionService describes an image in response to a prompt.
//
// Responses are expected to be JSON, optionally wrapped in a markdown code
// fence; callers must tolerate both.
type VisionService interface {
	// Describe sends the image with the prompt and returns the raw response text.
	Describe(ctx context.Context, image []byte, mimeType, prompt string) (string, error)

	// ModelName returns the name of the vision model being used.
	ModelName() string
}
