package ocr

import (
	"context"
	"fmt"
	"strings"
)

// Recognizer turns an image into text, labels and objects. Implementations
// return Empty() alongside any error.
type Recognizer interface {
	Name() string
	Recognize(ctx context.Context, img Image) (Result, error)
}

type Engines struct {
	Vision Recognizer
	Yandex Recognizer
}

func (e *Engines) Get(name string) (Recognizer, error) {
	var r Recognizer
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "vision", "google":
		r = e.Vision
	case "yandex":
		r = e.Yandex
	default:
		return nil, fmt.Errorf("unknown ocr engine %q; use 'vision' or 'yandex'", name)
	}
	if r == nil {
		return nil, fmt.Errorf("ocr engine %q is not configured", name)
	}
	return r, nil
}
