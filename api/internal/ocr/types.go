package ocr

import (
	"errors"
	"os"
	"strings"
)

// Box is a fragment's axis-aligned bounding box in image pixels.
type Box struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Fragment is one recognized piece of text.
type Fragment struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Box        Box     `json:"bbox"`
}

// Annotation is a detected label or object.
type Annotation struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// Result is what a recognizer returns for one image.
type Result struct {
	Text       string       `json:"full_text"`
	Confidence float64      `json:"confidence"`
	Fragments  []Fragment   `json:"blocks"`
	Labels     []Annotation `json:"labels"`
	Objects    []Annotation `json:"objects"`
}

// Empty is the result shape returned alongside any recognizer error.
func Empty() Result {
	return Result{
		Fragments: []Fragment{},
		Labels:    []Annotation{},
		Objects:   []Annotation{},
	}
}

// UsableText returns the text to feed downstream. Tokens whose fragment is
// below threshold are removed from the full text, keeping its line layout;
// when nothing falls below threshold the full text is returned as is.
func (r Result) UsableText(threshold float64) string {
	text := strings.TrimSpace(r.Text)
	if len(r.Fragments) == 0 {
		return text
	}
	dropped := false
	for _, f := range r.Fragments {
		if f.Confidence < threshold {
			dropped = true
			break
		}
	}
	if !dropped {
		return text
	}
	if text == "" {
		kept := make([]string, 0, len(r.Fragments))
		for _, f := range r.Fragments {
			if t := strings.TrimSpace(f.Text); t != "" && f.Confidence >= threshold {
				kept = append(kept, t)
			}
		}
		return strings.Join(kept, " ")
	}

	// Fragments follow reading order, so tokens are matched against them
	// with a forward-only cursor. Tokens with no fragment are kept.
	next := 0
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		var kept []string
		for _, tok := range strings.Fields(line) {
			if i := r.fragmentFor(tok, next); i >= 0 {
				next = i + 1
				if r.Fragments[i].Confidence < threshold {
					continue
				}
			}
			kept = append(kept, tok)
		}
		if len(kept) > 0 {
			out = append(out, strings.Join(kept, " "))
		}
	}
	return strings.Join(out, "\n")
}

const alignWindow = 3

func (r Result) fragmentFor(tok string, from int) int {
	for i := from; i < len(r.Fragments) && i < from+alignWindow; i++ {
		if strings.TrimSpace(r.Fragments[i].Text) == tok {
			return i
		}
	}
	return -1
}

// Mentions reports whether any label or object name equals one of terms,
// ignoring case. "Textile" does not mention "text".
func (r Result) Mentions(terms ...string) bool {
	for _, list := range [][]Annotation{r.Labels, r.Objects} {
		for _, a := range list {
			name := strings.TrimSpace(a.Name)
			for _, t := range terms {
				if t != "" && strings.EqualFold(name, t) {
					return true
				}
			}
		}
	}
	return false
}

// LabelNames lists label then object names.
func (r Result) LabelNames() []string {
	out := make([]string, 0, len(r.Labels)+len(r.Objects))
	for _, a := range r.Labels {
		out = append(out, a.Name)
	}
	for _, a := range r.Objects {
		out = append(out, a.Name)
	}
	return out
}

// ErrNoImage is returned for an image without bytes or a readable path.
var ErrNoImage = errors.New("ocr: image has no data")

// Image is one product image handed to a recognizer.
type Image struct {
	ID   int64  `json:"id"`
	Path string `json:"path,omitempty"`
	URL  string `json:"url,omitempty"`
	MIME string `json:"mime,omitempty"`
	Data []byte `json:"-"`
}

// Bytes returns the inline data, or reads Path.
func (im Image) Bytes() ([]byte, error) {
	if len(im.Data) > 0 {
		return im.Data, nil
	}
	if strings.TrimSpace(im.Path) == "" {
		return nil, ErrNoImage
	}
	b, err := os.ReadFile(im.Path)
	if err != nil {
		return nil, err
	}
	if len(b) == 0 {
		return nil, ErrNoImage
	}
	return b, nil
}
