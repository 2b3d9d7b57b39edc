package repository

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	domrepo "CredPulse/internal/domain/repository"
	applogger "CredPulse/pkg/logger"
)

const (
	artifactPrefix = "credit_model_"
	artifactSuffix = ".json"
)

// FileArtifactStore persists model artifacts as one JSON document per
// version under a single directory. Writes go through a temp file and a
// rename so a crash mid-write never leaves a truncated artifact behind.
type FileArtifactStore struct {
	dir string
	l   *applogger.Logger
}

func NewFileArtifactStore(dir string) *FileArtifactStore {
	return &FileArtifactStore{dir: dir}
}

// SetLogger injects a structured logger.
func (s *FileArtifactStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *FileArtifactStore) Save(ctx context.Context, version string, doc []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, ".artifact-*")
	if err != nil {
		return fmt.Errorf("create temp artifact: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(doc); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write artifact: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close artifact: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("chmod artifact: %w", err)
	}

	final := filepath.Join(s.dir, artifactPrefix+version+artifactSuffix)
	if err := os.Rename(tmpName, final); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename artifact: %w", err)
	}

	if s.l != nil {
		s.l.Info("model artifact saved",
			applogger.String("version", version),
			applogger.String("path", final),
			applogger.Int("bytes", len(doc)),
		)
	}
	return nil
}

func (s *FileArtifactStore) LoadLatest(ctx context.Context) (string, []byte, error) {
	if err := ctx.Err(); err != nil {
		return "", nil, err
	}
	versions, err := s.Versions(ctx)
	if err != nil {
		return "", nil, err
	}
	if len(versions) == 0 {
		return "", nil, fmt.Errorf("artifact dir %s: %w", s.dir, domrepo.ErrNotFound)
	}

	latest := versions[len(versions)-1]
	doc, err := os.ReadFile(filepath.Join(s.dir, artifactPrefix+latest+artifactSuffix))
	if err != nil {
		return "", nil, fmt.Errorf("read artifact %s: %w", latest, err)
	}
	return latest, doc, nil
}

// Versions lists persisted artifact versions, oldest first.
func (s *FileArtifactStore) Versions(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read artifact dir: %w", err)
	}

	out := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasPrefix(name, artifactPrefix) || !strings.HasSuffix(name, artifactSuffix) {
			continue
		}
		out = append(out, strings.TrimSuffix(strings.TrimPrefix(name, artifactPrefix), artifactSuffix))
	}
	sort.Slice(out, func(i, j int) bool { return olderArtifact(out[i], out[j]) })
	return out, nil
}

// olderArtifact orders version tokens by their trailing numeric sequence,
// falling back to lexicographic order for tokens without one.
func olderArtifact(a, b string) bool {
	as, aok := artifactSeq(a)
	bs, bok := artifactSeq(b)
	if aok && bok {
		return as < bs
	}
	return a < b
}

func artifactSeq(v string) (int64, bool) {
	i := strings.LastIndexByte(v, '.')
	if i < 0 || i == len(v)-1 {
		return 0, false
	}
	n, err := strconv.ParseInt(v[i+1:], 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

var _ domrepo.ArtifactStore = (*FileArtifactStore)(nil)
