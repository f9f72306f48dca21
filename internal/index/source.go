package index

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/Aman-CERP/searchkit/internal/backend"
	"github.com/Aman-CERP/searchkit/internal/errors"
)

// DocumentSource streams the documents a new generation is populated
// with.
type DocumentSource interface {
	// Count returns the number of documents, or -1 if unknown.
	Count(ctx context.Context) (int, error)

	// Each calls fn for every document and stops at the first error.
	Each(ctx context.Context, fn func(backend.Document) error) error
}

// SliceSource serves documents from memory.
type SliceSource []backend.Document

func (s SliceSource) Count(context.Context) (int, error) { return len(s), nil }

func (s SliceSource) Each(ctx context.Context, fn func(backend.Document) error) error {
	for _, d := range s {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(d); err != nil {
			return err
		}
	}
	return nil
}

// NDJSONSource reads one JSON object per line. The id is taken from
// IDField, which is removed from the source when StripID is set.
type NDJSONSource struct {
	Open    func() (io.ReadCloser, error)
	IDField string
	StripID bool
}

func (s *NDJSONSource) Count(context.Context) (int, error) { return -1, nil }

func (s *NDJSONSource) Each(ctx context.Context, fn func(backend.Document) error) error {
	r, err := s.Open()
	if err != nil {
		return errors.New(errors.ErrCodeInvalidInput, "cannot open document source", err)
	}
	defer func() { _ = r.Close() }()

	idField := s.IDField
	if idField == "" {
		idField = "id"
	}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		if err := ctx.Err(); err != nil {
			return err
		}
		raw := sc.Bytes()
		if len(raw) == 0 {
			continue
		}
		var src map[string]any
		if err := json.Unmarshal(raw, &src); err != nil {
			return errors.New(errors.ErrCodeInvalidInput, fmt.Sprintf("line %d: invalid JSON", line), err)
		}
		id, ok := src[idField]
		if !ok || id == nil {
			return errors.Newf(errors.ErrCodeInvalidInput, "line %d: missing %q", line, idField)
		}
		if s.StripID {
			delete(src, idField)
		}
		if err := fn(backend.Document{ID: fmt.Sprint(id), Source: src}); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return errors.New(errors.ErrCodeInvalidInput, "reading document source failed", err)
	}
	return nil
}
