// Package vision is a Google Cloud Vision recognizer over images:annotate,
// authenticated with an API key.
package vision

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/api/option"
	visionapi "google.golang.org/api/vision/v1"

	"labelcheck/api/internal/ocr"
)

const (
	// fallbackConfidence is used when the API reports no page confidence.
	fallbackConfidence = 0.95
	maxLabels          = 10
)

type Engine struct {
	APIKey string
	// Endpoint overrides the API base URL; empty means the library default.
	Endpoint string
	Timeout  time.Duration
}

func New(apiKey string) *Engine {
	return &Engine{
		APIKey:  strings.TrimSpace(apiKey),
		Timeout: 60 * time.Second,
	}
}

func (e *Engine) Name() string { return "vision" }

func (e *Engine) service(ctx context.Context) (*visionapi.Service, error) {
	opts := []option.ClientOption{option.WithAPIKey(e.APIKey)}
	if ep := strings.TrimSpace(e.Endpoint); ep != "" {
		opts = append(opts, option.WithEndpoint(strings.TrimRight(ep, "/")+"/"))
	}
	return visionapi.NewService(ctx, opts...)
}

// Recognize runs text, label and object detection in a single request.
func (e *Engine) Recognize(ctx context.Context, img ocr.Image) (ocr.Result, error) {
	if e.APIKey == "" {
		return ocr.Empty(), errors.New("VISION_API_KEY is empty")
	}
	data, err := img.Bytes()
	if err != nil {
		return ocr.Empty(), err
	}
	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	svc, err := e.service(ctx)
	if err != nil {
		return ocr.Empty(), fmt.Errorf("vision client: %w", err)
	}
	req := &visionapi.BatchAnnotateImagesRequest{Requests: []*visionapi.AnnotateImageRequest{{
		Image: &visionapi.Image{Content: base64.StdEncoding.EncodeToString(data)},
		Features: []*visionapi.Feature{
			{Type: "TEXT_DETECTION"},
			{Type: "LABEL_DETECTION", MaxResults: maxLabels},
			{Type: "OBJECT_LOCALIZATION", MaxResults: maxLabels},
		},
	}}}
	out, err := svc.Images.Annotate(req).Context(ctx).Do()
	if err != nil {
		return ocr.Empty(), fmt.Errorf("vision annotate: %w", err)
	}
	if len(out.Responses) == 0 || out.Responses[0] == nil {
		return ocr.Empty(), nil
	}
	r := out.Responses[0]
	if r.Error != nil {
		return ocr.Empty(), fmt.Errorf("vision error %d: %s", r.Error.Code, r.Error.Message)
	}
	return toResult(r), nil
}

func toResult(r *visionapi.AnnotateImageResponse) ocr.Result {
	res := ocr.Empty()
	for _, l := range r.LabelAnnotations {
		res.Labels = append(res.Labels, ocr.Annotation{Name: l.Description, Score: l.Score})
	}
	for _, o := range r.LocalizedObjectAnnotations {
		res.Objects = append(res.Objects, ocr.Annotation{Name: o.Name, Score: o.Score})
	}
	if len(r.TextAnnotations) == 0 {
		return res
	}

	// The first text annotation is the whole text; the rest are words.
	res.Text = r.TextAnnotations[0].Description
	res.Confidence = fallbackConfidence
	if fta := r.FullTextAnnotation; fta != nil && len(fta.Pages) > 0 {
		sum := 0.0
		for _, p := range fta.Pages {
			sum += p.Confidence
		}
		if avg := sum / float64(len(fta.Pages)); avg > 0 {
			res.Confidence = avg
		}
	}
	for _, a := range r.TextAnnotations[1:] {
		if a.BoundingPoly == nil || len(a.BoundingPoly.Vertices) < 4 {
			continue
		}
		vs := a.BoundingPoly.Vertices
		if vs[0] == nil || vs[2] == nil {
			continue
		}
		conf := a.Confidence
		if conf <= 0 {
			conf = res.Confidence
		}
		res.Fragments = append(res.Fragments, ocr.Fragment{
			Text:       a.Description,
			Confidence: conf,
			Box: ocr.Box{
				X:      int(vs[0].X),
				Y:      int(vs[0].Y),
				Width:  int(vs[2].X - vs[0].X),
				Height: int(vs[2].Y - vs[0].Y),
			},
		})
	}
	return res
}
