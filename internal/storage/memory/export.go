// internal/storage/memory/export.go
package memory

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	v1 "github.com/bandfield/marchsim/internal/storage/memory/export/v1"
	"github.com/bandfield/marchsim/pkg/core"
)

// exportJSON writes the run to a (optionally gzipped) JSON file
func (b *Backend) exportJSON() error {
	export := v1.Build(&v1.RunData{
		Run:     b.run,
		Summary: b.summary,
		Actors:  b.actors,
		Events:  b.events,
	})

	levelName := strings.NewReplacer(" ", "_", ":", "_", "/", "_", `\`, "_").Replace(b.run.LevelName)
	if levelName == "" {
		levelName = "run"
	}
	timestamp := b.run.StartTime.Format("20060102_150405")

	var filename string
	if b.cfg.CompressOutput {
		filename = fmt.Sprintf("%s_%s.json.gz", levelName, timestamp)
	} else {
		filename = fmt.Sprintf("%s_%s.json", levelName, timestamp)
	}

	outputPath := filepath.Join(b.cfg.OutputDir, filename)

	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if b.cfg.CompressOutput {
		if err := writeGzipJSON(outputPath, export); err != nil {
			return err
		}
	} else {
		if err := writeJSON(outputPath, export); err != nil {
			return err
		}
	}

	b.lastExportPath = outputPath
	b.lastExportMetadata = core.UploadMetadata{
		LevelName: b.run.LevelName,
		Author:    b.run.Author,
		Duration:  export.Elapsed,
		Outcome:   export.Outcome,
	}
	return nil
}

func writeJSON(path string, data v1.Export) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	return json.NewEncoder(f).Encode(data)
}

func writeGzipJSON(path string, data v1.Export) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	gzWriter := gzip.NewWriter(f)
	if err := json.NewEncoder(gzWriter).Encode(data); err != nil {
		gzWriter.Close()
		return fmt.Errorf("failed to encode replay: %w", err)
	}
	return gzWriter.Close()
}
