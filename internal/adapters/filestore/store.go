package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"reg-briefing/internal/domain"
)

var validID = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Store хранит брифинги в JSON-файлах <dir>/<id>.json.
type Store struct {
	dir string
	mu  sync.RWMutex
}

var _ domain.BriefingStore = (*Store)(nil)

// New создаёт файловое хранилище и каталог при необходимости.
func New(dir string) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("filestore: directory is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("filestore: create %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) path(id string) (string, error) {
	if !validID.MatchString(id) {
		return "", fmt.Errorf("filestore: %q: %w", id, domain.ErrInvalidBriefingID)
	}
	return filepath.Join(s.dir, id+".json"), nil
}

// SaveBriefing записывает брифинг атомарно через временный файл.
func (s *Store) SaveBriefing(_ context.Context, b domain.Briefing) error {
	path, err := s.path(b.ID)
	if err != nil {
		return err
	}
	raw, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return fmt.Errorf("filestore: marshal %s: %w", b.ID, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeAtomic(path, raw)
}

// GetBriefing реализует domain.BriefingStore.
func (s *Store) GetBriefing(_ context.Context, id string) (*domain.Briefing, error) {
	path, err := s.path(id)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return readBriefing(path)
}

// ListBriefings читает все файлы и сортирует по времени генерации.
func (s *Store) ListBriefings(_ context.Context, limit int) ([]domain.BriefingSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("filestore: read dir: %w", err)
	}
	out := make([]domain.BriefingSummary, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		b, err := readBriefing(filepath.Join(s.dir, entry.Name()))
		if err != nil || b == nil {
			continue
		}
		out = append(out, b.Summary())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].GeneratedAt.Equal(out[j].GeneratedAt) {
			return out[i].GeneratedAt.After(out[j].GeneratedAt)
		}
		return out[i].ID > out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// GetLatestBriefing реализует domain.BriefingStore.
func (s *Store) GetLatestBriefing(ctx context.Context) (*domain.Briefing, error) {
	list, err := s.ListBriefings(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return s.GetBriefing(ctx, list[0].ID)
}

func readBriefing(path string) (*domain.Briefing, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("filestore: read %s: %w", filepath.Base(path), err)
	}
	var b domain.Briefing
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil, fmt.Errorf("filestore: decode %s: %w", filepath.Base(path), err)
	}
	return &b, nil
}

func writeAtomic(path string, raw []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("filestore: temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("filestore: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("filestore: close: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("filestore: rename: %w", err)
	}
	return nil
}
