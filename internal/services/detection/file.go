package detection

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"kepler-sentinel-go/internal/models"
)

// FileSource replays frames from a JSON-lines file, one frame per line
type FileSource struct {
	path string
	// Realtime sleeps between frames according to their timestamps
	Realtime bool
	open     func(string) (io.ReadCloser, error)
}

// NewFileSource creates a replay source for path
func NewFileSource(path string, realtime bool) *FileSource {
	return &FileSource{
		path:     path,
		Realtime: realtime,
		open:     func(p string) (io.ReadCloser, error) { return os.Open(p) },
	}
}

func (s *FileSource) Run(ctx context.Context, out chan<- models.Frame) error {
	f, err := s.open(s.path)
	if err != nil {
		return fmt.Errorf("failed to open detections file %s: %w", s.path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var (
		line, sent int
		prev       time.Time
	)
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 || raw[0] == '#' {
			continue
		}
		frame, err := DecodeFrame(raw, time.Now())
		if err != nil {
			log.Warn().Err(err).Str("path", s.path).Int("line", line).Msg("Skipping undecodable frame")
			continue
		}

		if s.Realtime && !prev.IsZero() {
			if gap := frame.Timestamp.Sub(prev); gap > 0 {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(gap):
				}
			}
		}
		prev = frame.Timestamp

		select {
		case out <- frame:
			sent++
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read detections file %s: %w", s.path, err)
	}

	log.Info().Str("path", s.path).Int("frames", sent).Msg("Detections file replay finished")
	return nil
}

func (s *FileSource) String() string {
	return "file-source"
}
