package scanning

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/Govindcoderr/Autonomous-Document-Processing-ERP-Sync-System/internal/llm"
)

// ErrNoText is returned when nothing legible could be read from a document
var ErrNoText = errors.New("no text detected in the document")

const transcribePrompt = `You are an OCR engine. Transcribe every piece of text visible in the attached document pages.

Rules:
- Keep the reading order: top to bottom, left to right.
- Keep table rows on a single line with cells separated by spaces.
- Keep numbers, dates, currency symbols and identifiers exactly as printed.
- Do not summarize, translate, correct or explain anything.
- Output plain text only, without markdown.`

// Transcriber reads the text of a document with a vision-capable model
type Transcriber struct {
	completer llm.Completer
}

// NewTranscriber creates a new Transcriber
func NewTranscriber(completer llm.Completer) *Transcriber {
	return &Transcriber{completer: completer}
}

// ExtractText returns the raw text of a PDF, image or plain text upload
func (t *Transcriber) ExtractText(ctx context.Context, data []byte, contentType string) (string, error) {
	if normalizeMimeType(contentType) == "text/plain" {
		if !utf8.Valid(data) || strings.TrimSpace(string(data)) == "" {
			return "", ErrNoText
		}
		return string(data), nil
	}

	pages, err := preparePages(data, contentType)
	if err != nil {
		return "", err
	}

	images := make([]llm.Image, 0, len(pages))
	for _, page := range pages {
		images = append(images, llm.Image{MIMEType: "image/png", Data: page})
	}

	text, err := t.completer.Complete(ctx, []llm.Message{llm.User(transcribePrompt, images...)}, 0)
	if err != nil {
		slog.Error("Failed to transcribe document",
			"content_type", contentType,
			"file_size", len(data),
			"pages", len(pages),
			"error", err,
		)
		return "", fmt.Errorf("transcribing document: %w", err)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrNoText
	}
	return text, nil
}
