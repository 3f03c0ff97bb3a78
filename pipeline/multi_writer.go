package pipeline

import (
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/aluiziolira/go-crawl-books/models"
)

// MultiWriter fans each batch out to several writers concurrently.
type MultiWriter struct {
	writers []OutputWriter
}

// NewMultiWriter combines writers; every batch goes to all of them.
func NewMultiWriter(writers ...OutputWriter) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// NewDualWriter creates a writer for both CSV and JSON output.
func NewDualWriter(csvFilename, jsonFilename string) (*MultiWriter, error) {
	csvWriter, err := NewCSVWriter(csvFilename)
	if err != nil {
		return nil, fmt.Errorf("failed to create CSV writer: %w", err)
	}

	jsonWriter, err := NewJSONWriter(jsonFilename)
	if err != nil {
		csvWriter.Close()
		return nil, fmt.Errorf("failed to create JSON writer: %w", err)
	}

	return NewMultiWriter(csvWriter, jsonWriter), nil
}

// Write sends books to every writer and returns the first failure.
func (mw *MultiWriter) Write(books []*models.Book) error {
	var g errgroup.Group
	for _, w := range mw.writers {
		g.Go(func() error {
			return w.Write(books)
		})
	}
	return g.Wait()
}

// Close closes every writer, joining their errors.
func (mw *MultiWriter) Close() error {
	var errs []error
	for _, w := range mw.writers {
		if err := w.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Validate validates every writer, joining their errors.
func (mw *MultiWriter) Validate() error {
	var errs []error
	for _, w := range mw.writers {
		if err := w.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
