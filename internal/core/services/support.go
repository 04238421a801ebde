package services

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/custodia-labs/agora/internal/core/ports/driven"
)

// guard runs fn and converts a panic into an error naming the unit.
// Third-party PDF and image decoders panic on malformed input.
func guard(unit string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s: panic: %v", unit, r)
		}
	}()
	return fn()
}

// renderPrompt loads a template and fills its placeholders. Templates
// without arguments are returned untouched so literal percent signs survive.
func renderPrompt(store driven.PromptStore, name string, args ...any) (string, error) {
	if store == nil {
		return "", fmt.Errorf("prompt %s: no prompt store configured", name)
	}
	tmpl, err := store.Load(name)
	if err != nil {
		return "", fmt.Errorf("load prompt %s: %w", name, err)
	}
	if len(args) == 0 {
		return tmpl, nil
	}
	return fmt.Sprintf(tmpl, args...), nil
}

// writeArtifact writes an extracted image, creating parent directories.
func writeArtifact(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil { //nolint:gosec // extracted figures are not secret
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}

// imageWithSize is a decoded image with its pixel dimensions.
type imageWithSize struct {
	image.Image
	width  int
	height int
	mime   string
}

func decodeSized(codec driven.ImageCodec, data []byte) (imageWithSize, error) {
	if codec == nil {
		return imageWithSize{}, errors.New("no image codec configured")
	}
	img, mime, err := codec.Decode(data)
	if err != nil {
		return imageWithSize{}, fmt.Errorf("decode image: %w", err)
	}
	b := img.Bounds()
	return imageWithSize{Image: img, width: b.Dx(), height: b.Dy(), mime: mime}, nil
}
