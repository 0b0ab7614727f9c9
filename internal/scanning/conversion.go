package scanning

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	"image/png"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/gen2brain/heic"
)

// maxPages bounds how many PDF pages are rendered for transcription
const maxPages = 5

// pdfToPages renders the leading pages of a PDF as PNG images
func pdfToPages(pdfData []byte) ([][]byte, error) {
	doc, err := fitz.NewFromMemory(pdfData)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer doc.Close()

	count := doc.NumPage()
	if count == 0 {
		return nil, fmt.Errorf("PDF has no pages")
	}
	if count > maxPages {
		count = maxPages
	}

	pages := make([][]byte, 0, count)
	for n := 0; n < count; n++ {
		img, err := doc.Image(n)
		if err != nil {
			return nil, fmt.Errorf("rendering PDF page %d: %w", n+1, err)
		}
		data, err := encodePNG(img)
		if err != nil {
			return nil, err
		}
		pages = append(pages, data)
	}
	return pages, nil
}

// imageToPNG converts any supported image format to PNG
func imageToPNG(imageData []byte, mimeType string) ([]byte, error) {
	var (
		img image.Image
		err error
	)

	// Phone uploads are often HEIC, which the standard image package cannot decode
	if isHEICFormat(imageData) || isHEICMimeType(mimeType) {
		img, err = heic.Decode(bytes.NewReader(imageData))
		if err != nil {
			return nil, fmt.Errorf("decoding HEIC/HEIF image: %w", err)
		}
	} else {
		img, _, err = image.Decode(bytes.NewReader(imageData))
		if err != nil {
			if strings.Contains(err.Error(), "unknown format") {
				return nil, fmt.Errorf("unsupported document format, expected PDF, JPEG, PNG, GIF, HEIC or HEIF: %w", err)
			}
			return nil, fmt.Errorf("decoding image: %w", err)
		}
	}

	return encodePNG(img)
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// isHEICFormat checks for an ftyp box with a HEIC-family brand
func isHEICFormat(data []byte) bool {
	if len(data) < 12 || string(data[4:8]) != "ftyp" {
		return false
	}
	switch string(data[8:12]) {
	case "heic", "heix", "heif", "mif1", "msf1":
		return true
	}
	return false
}

// isHEICMimeType checks if the MIME type indicates HEIC/HEIF format
func isHEICMimeType(mimeType string) bool {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	return strings.Contains(mimeType, "heic") || strings.Contains(mimeType, "heif")
}

// isPDF reports whether the upload is a PDF, by MIME type or magic bytes
func isPDF(data []byte, mimeType string) bool {
	return mimeType == "application/pdf" || bytes.HasPrefix(data, []byte("%PDF-"))
}

// normalizeMimeType lowercases the content type and drops any parameters
func normalizeMimeType(contentType string) string {
	mimeType := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	return mimeType
}

// preparePages turns an uploaded document into one PNG per page
func preparePages(data []byte, contentType string) ([][]byte, error) {
	mimeType := normalizeMimeType(contentType)

	if isPDF(data, mimeType) {
		pages, err := pdfToPages(data)
		if err != nil {
			return nil, fmt.Errorf("converting PDF to images: %w", err)
		}
		return pages, nil
	}

	if mimeType == "image/png" && !isHEICFormat(data) {
		return [][]byte{data}, nil
	}

	page, err := imageToPNG(data, mimeType)
	if err != nil {
		return nil, fmt.Errorf("converting image to PNG: %w", err)
	}
	return [][]byte{page}, nil
}
