package wisdom

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
)

// FormatVersion is the version written by Archive.
const FormatVersion = 1

type document struct {
	Version int            `json:"version"`
	Library []documentItem `json:"library"`
}

type documentItem struct {
	Scenario    documentScenario    `json:"scenario"`
	Type        documentType        `json:"type"`
	Performance documentPerformance `json:"performance"`
	Cost        float64             `json:"cost"`
}

type documentScenario struct {
	Nx           uint32 `json:"nx"`
	Ny           uint32 `json:"ny"`
	Radix        uint32 `json:"radix"`
	Mode         uint32 `json:"mode"`
	InputTarget  uint32 `json:"input_target"`
	OutputTarget uint32 `json:"output_target"`
}

type documentType struct {
	FP16       bool `json:"fp16"`
	InputFP16  bool `json:"input_fp16"`
	OutputFP16 bool `json:"output_fp16"`
	Normalize  bool `json:"normalize"`
}

type documentPerformance struct {
	SharedBanked   bool   `json:"shared_banked"`
	VectorSize     uint32 `json:"vector_size"`
	WorkgroupSizeX uint32 `json:"workgroup_size_x"`
	WorkgroupSizeY uint32 `json:"workgroup_size_y"`
}

// Archive writes every entry to w as JSON.
func (l *Library) Archive(w io.Writer) error {
	shapes := l.Shapes()
	doc := document{Version: FormatVersion, Library: make([]documentItem, 0, len(shapes))}

	l.mu.RLock()
	for _, s := range shapes {
		e, ok := l.entries[s]
		if !ok {
			continue
		}

		doc.Library = append(doc.Library, documentItem{
			Scenario: documentScenario{
				Nx:           s.Nx,
				Ny:           s.Ny,
				Radix:        s.Radix,
				Mode:         uint32(s.Mode),
				InputTarget:  uint32(s.Input),
				OutputTarget: uint32(s.Output),
			},
			Type: documentType(s.Type),
			Performance: documentPerformance{
				SharedBanked:   e.Tuning.SharedBanked,
				VectorSize:     e.Tuning.VectorSize,
				WorkgroupSizeX: e.Tuning.WorkgroupSizeX,
				WorkgroupSizeY: e.Tuning.WorkgroupSizeY,
			},
			Cost: e.Cost,
		})
	}
	l.mu.RUnlock()

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("wisdom: archive: %w", err)
	}

	return nil
}

// Extract replaces the library's entries with those read from r. On any
// error the library is left unchanged.
func (l *Library) Extract(r io.Reader) error {
	var raw struct {
		Version *int            `json:"version"`
		Library *[]documentItem `json:"library"`
	}

	dec := json.NewDecoder(r)
	if err := dec.Decode(&raw); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	version := 1
	if raw.Version != nil {
		version = *raw.Version
	}

	if version < 1 || version > FormatVersion {
		return fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}

	if raw.Library == nil {
		return fmt.Errorf("%w: missing library", ErrMalformed)
	}

	entries := make(map[Shape]Entry, len(*raw.Library))

	for i, item := range *raw.Library {
		s := Shape{
			Nx:     item.Scenario.Nx,
			Ny:     item.Scenario.Ny,
			Radix:  item.Scenario.Radix,
			Mode:   Mode(item.Scenario.Mode),
			Input:  Target(item.Scenario.InputTarget),
			Output: Target(item.Scenario.OutputTarget),
			Type:   NumericType(item.Type),
		}
		if err := s.Validate(); err != nil {
			return fmt.Errorf("%w: entry %d: %w", ErrMalformed, i, err)
		}

		t := Tuning{
			SharedBanked:   item.Performance.SharedBanked,
			VectorSize:     item.Performance.VectorSize,
			WorkgroupSizeX: item.Performance.WorkgroupSizeX,
			WorkgroupSizeY: item.Performance.WorkgroupSizeY,
		}
		if err := t.Validate(); err != nil {
			return fmt.Errorf("%w: entry %d: %w", ErrMalformed, i, err)
		}

		if item.Cost < 0 || math.IsNaN(item.Cost) {
			return fmt.Errorf("%w: entry %d: cost %v", ErrMalformed, i, item.Cost)
		}

		entries[s] = Entry{Tuning: t, Cost: item.Cost}
	}

	l.mu.Lock()
	l.entries = entries
	l.mu.Unlock()

	return nil
}

// MarshalJSON encodes the library in the Archive format.
func (l *Library) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := l.Archive(&buf); err != nil {
		return nil, err
	}

	return bytes.TrimSpace(buf.Bytes()), nil
}

// UnmarshalJSON replaces the library's entries, as Extract does.
func (l *Library) UnmarshalJSON(data []byte) error {
	if l.log == nil {
		l.static = DefaultStatic()
		l.params = DefaultBenchParams()
		l.log = discardLogger
	}

	return l.Extract(bytes.NewReader(data))
}
