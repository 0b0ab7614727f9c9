package scanning

import "github.com/Govindcoderr/Autonomous-Document-Processing-ERP-Sync-System/internal/llm"

// Scanner bundles the three model-backed document stages behind one completer
type Scanner struct {
	*Transcriber
	*Classifier
	*Extractor
}

// NewScanner creates a Scanner whose stages share the given completer
func NewScanner(completer llm.Completer) *Scanner {
	return &Scanner{
		Transcriber: NewTranscriber(completer),
		Classifier:  NewClassifier(completer),
		Extractor:   NewExtractor(completer),
	}
}
