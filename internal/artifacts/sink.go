// Package artifacts stores the engine's byte outputs (screenshots, generated
// source files) on the local filesystem.
package artifacts

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/pagesmith/api/schemas"
	"github.com/xkilldash9x/pagesmith/internal/config"
)

const dirPerm = 0o750

// FileSink writes artifacts under a base directory. Screenshots are grouped
// per session; generated sources land in a flat sources directory.
type FileSink struct {
	logger  *zap.Logger
	baseDir string
}

var _ schemas.ArtifactSink = (*FileSink)(nil)

func NewFileSink(logger *zap.Logger, cfg config.ArtifactsConfig) (*FileSink, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("artifacts directory is not configured")
	}
	if err := os.MkdirAll(cfg.Dir, dirPerm); err != nil {
		return nil, fmt.Errorf("failed to create artifacts directory %s: %w", cfg.Dir, err)
	}
	return &FileSink{
		logger:  logger.Named("artifacts"),
		baseDir: cfg.Dir,
	}, nil
}

// SaveScreenshot stores a PNG capture under <base>/<sessionID>/ with a
// timestamped name and returns the full path.
func (s *FileSink) SaveScreenshot(sessionID string, data []byte) (string, error) {
	dir := filepath.Join(s.baseDir, sessionID)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return "", fmt.Errorf("failed to create session artifact directory: %w", err)
	}

	name := fmt.Sprintf("shot-%s.png", time.Now().UTC().Format("20060102-150405.000"))
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o640); err != nil {
		return "", fmt.Errorf("failed to write screenshot: %w", err)
	}

	s.logger.Debug("Saved screenshot", zap.String("path", path), zap.Int("bytes", len(data)))
	return path, nil
}

// SaveSource stores a generated source file under <base>/generated/ and
// returns the full path. The name is flattened to its base to keep writes
// inside the artifact tree.
func (s *FileSink) SaveSource(name string, contents string) (string, error) {
	dir := filepath.Join(s.baseDir, "generated")
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return "", fmt.Errorf("failed to create generated-source directory: %w", err)
	}

	path := filepath.Join(dir, filepath.Base(name))
	if err := os.WriteFile(path, []byte(contents), 0o640); err != nil {
		return "", fmt.Errorf("failed to write generated source %s: %w", name, err)
	}

	s.logger.Info("Saved generated source", zap.String("path", path))
	return path, nil
}
