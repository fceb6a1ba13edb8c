package sink

import (
	"context"
	"strings"
	"sync"

	"github.com/phelukas/yahoo-equity-crawler/pkg/models"
)

// RunHistory keeps run reports so the latest one per region can be served.
type RunHistory interface {
	Save(ctx context.Context, report *models.RunReport) error
	LastByRegion(ctx context.Context, region string) (*models.RunReport, error)
}

var (
	_ RunHistory = (*MemoryRunRepo)(nil)
	_ RunHistory = (*MongoRunRepo)(nil)
)

// MemoryRunRepo keeps the last report per region in process memory.
type MemoryRunRepo struct {
	mu   sync.RWMutex
	last map[string]*models.RunReport
}

func NewMemoryRunRepo() *MemoryRunRepo {
	return &MemoryRunRepo{last: make(map[string]*models.RunReport)}
}

func (m *MemoryRunRepo) Save(_ context.Context, report *models.RunReport) error {
	region := strings.ToUpper(report.Region)
	cp := *report

	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.last[region]; ok && prev.FinishedAt.After(cp.FinishedAt) {
		return nil
	}
	m.last[region] = &cp
	return nil
}

func (m *MemoryRunRepo) LastByRegion(_ context.Context, region string) (*models.RunReport, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	report, ok := m.last[strings.ToUpper(region)]
	if !ok {
		return nil, ErrRunNotFound
	}
	cp := *report
	return &cp, nil
}
