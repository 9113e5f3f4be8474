package noteservice

import (
	"bytes"
	"context"
	"fmt"
	"html"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/starford/notter/internal/apperr"
	"github.com/starford/notter/internal/models"
)

var mdRenderer = goldmark.New(goldmark.WithExtensions(extension.GFM))

// RenderHTML renders a note for preview. Plain-text notes are escaped into
// a <pre> block.
func (s *Service) RenderHTML(_ context.Context, id string) (string, error) {
	n, err := s.Store().Get(id)
	if err != nil {
		return "", err
	}
	return Render(n)
}

// Render converts the note content to HTML.
func Render(n *models.Note) (string, error) {
	if n.Type == models.PlainText {
		return "<pre>" + html.EscapeString(n.Content) + "</pre>", nil
	}
	var b bytes.Buffer
	if err := mdRenderer.Convert([]byte(n.Content), &b); err != nil {
		return "", fmt.Errorf("noteservice: render: %w: %w", apperr.ErrIO, err)
	}
	return b.String(), nil
}
