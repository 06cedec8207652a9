package localstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/mind-engage/dsat-sync/internal/attempt"
)

const (
	ExportFormat  = "dsat_attempts"
	ExportVersion = "1.0.0"
	ExportApp     = "dsat-sync"
)

// Envelope is the export file layout.
type Envelope struct {
	Format    string            `json:"format"`
	Version   string            `json:"version"`
	App       string            `json:"app"`
	CreatedAt string            `json:"createdAt"`
	Attempts  []json.RawMessage `json:"attempts"`
}

var ErrNotAnExport = errors.New("not an attempts export")

// Export writes every local attempt, sync metadata included, to w.
func (s *Store) Export(ctx context.Context, w io.Writer) (int, error) {
	list, err := s.Load(ctx)
	if err != nil {
		return 0, err
	}
	env := Envelope{
		Format:    ExportFormat,
		Version:   ExportVersion,
		App:       ExportApp,
		CreatedAt: s.now().UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		Attempts:  make([]json.RawMessage, 0, len(list)),
	}
	for _, a := range list {
		b, err := json.Marshal(a)
		if err != nil {
			return 0, fmt.Errorf("encode attempt %s: %w", a.ID, err)
		}
		env.Attempts = append(env.Attempts, b)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(env); err != nil {
		return 0, err
	}
	return len(list), nil
}

// ImportResult counts what Import did.
type ImportResult struct {
	Added   int
	Skipped int // id already present locally
	Dropped int // malformed
}

// Import reads an export envelope or a bare JSON array of attempts.
// Malformed records are dropped with a warning; records whose id is already
// stored are skipped; the rest are appended and the store is migrated.
func (s *Store) Import(ctx context.Context, r io.Reader) (ImportResult, error) {
	var res ImportResult
	raws, err := decodeImport(r)
	if err != nil {
		return res, err
	}

	err = s.Update(ctx, func(list []attempt.Attempt) ([]attempt.Attempt, error) {
		have := make(map[string]bool, len(list))
		for _, a := range list {
			have[a.ID] = true
		}
		for i, raw := range raws {
			a, err := decodeImported(raw)
			if err != nil {
				s.log.Printf("import: drop record %d: %v", i, err)
				res.Dropped++
				continue
			}
			if have[a.ID] {
				res.Skipped++
				continue
			}
			have[a.ID] = true
			list = append(list, a)
			res.Added++
		}
		return list, nil
	})
	if err != nil {
		return ImportResult{}, err
	}
	if res.Added > 0 {
		if _, err := s.MigrateSchema(ctx); err != nil {
			return res, err
		}
	}
	return res, nil
}

func decodeImport(r io.Reader) ([]json.RawMessage, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, ErrNotAnExport
	}
	if body[0] == '[' {
		var raws []json.RawMessage
		if err := json.Unmarshal(body, &raws); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNotAnExport, err)
		}
		return raws, nil
	}
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotAnExport, err)
	}
	if env.Format != ExportFormat {
		return nil, fmt.Errorf("%w: format %q", ErrNotAnExport, env.Format)
	}
	return env.Attempts, nil
}

// decodeImported validates one record and decodes it as stored locally.
// Records written before ids existed get one here.
func decodeImported(raw json.RawMessage) (attempt.Attempt, error) {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil || m == nil {
		return attempt.Attempt{}, fmt.Errorf("%w: not an object", attempt.ErrMalformed)
	}
	if id, _ := m["id"].(string); id == "" {
		m["id"] = attempt.NewID()
	}
	if err := attempt.ValidateValue(m); err != nil {
		return attempt.Attempt{}, err
	}
	b, err := json.Marshal(m)
	if err != nil {
		return attempt.Attempt{}, err
	}
	var a attempt.Attempt
	if err := json.Unmarshal(b, &a); err != nil {
		return attempt.Attempt{}, fmt.Errorf("%w: %v", attempt.ErrMalformed, err)
	}
	if !a.Kind.Valid() {
		return attempt.Attempt{}, fmt.Errorf("%w: kind %q", attempt.ErrMalformed, a.Kind)
	}
	return a, nil
}
