package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"reg-briefing/internal/domain"
)

// MetricsFile хранит снимок метрик запусков в одном JSON-файле.
type MetricsFile struct {
	path string
	mu   sync.Mutex
}

var _ domain.MetricsRepo = (*MetricsFile)(nil)

// NewMetricsFile создаёт хранилище метрик по пути.
func NewMetricsFile(path string) (*MetricsFile, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("filestore: create metrics dir: %w", err)
	}
	return &MetricsFile{path: path}, nil
}

// LoadMetrics возвращает пустой снимок, если файла ещё нет.
func (m *MetricsFile) LoadMetrics(context.Context) (domain.MetricsSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, err := os.ReadFile(m.path)
	if errors.Is(err, fs.ErrNotExist) {
		return domain.MetricsSnapshot{}, nil
	}
	if err != nil {
		return domain.MetricsSnapshot{}, fmt.Errorf("filestore: read metrics: %w", err)
	}
	var snapshot domain.MetricsSnapshot
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return domain.MetricsSnapshot{}, fmt.Errorf("filestore: decode metrics: %w", err)
	}
	return snapshot, nil
}

// SaveMetrics перезаписывает файл.
func (m *MetricsFile) SaveMetrics(_ context.Context, snapshot domain.MetricsSnapshot) error {
	raw, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("filestore: marshal metrics: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return writeAtomic(m.path, raw)
}
