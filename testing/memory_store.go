package testing

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/amirphl/Yata-no-Kagami/models"
	"github.com/amirphl/Yata-no-Kagami/repository"
)

// MemoryTableStore is a TableStore kept in memory. Reads and writes can be made to fail per table.
type MemoryTableStore struct {
	mu         sync.RWMutex
	tables     map[string]*models.Sheet
	readErrors map[string]error
	writeErrs  map[string]error
	writes     map[string]int
}

// NewMemoryTableStore creates an empty store
func NewMemoryTableStore() *MemoryTableStore {
	return &MemoryTableStore{
		tables:     map[string]*models.Sheet{},
		readErrors: map[string]error{},
		writeErrs:  map[string]error{},
		writes:     map[string]int{},
	}
}

// Put stores a table without counting it as a write
func (s *MemoryTableStore) Put(name string, header []string, rows []models.SheetRow) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables[name] = cloneSheet(name, header, rows)
}

// FailRead makes every read of name return err; nil clears it
func (s *MemoryTableStore) FailRead(name string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.readErrors, name)
		return
	}
	s.readErrors[name] = err
}

// FailWrite makes every write of name return err; nil clears it
func (s *MemoryTableStore) FailWrite(name string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.writeErrs, name)
		return
	}
	s.writeErrs[name] = err
}

// Writes returns the number of successful writes of name
func (s *MemoryTableStore) Writes(name string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.writes[name]
}

// Table returns a copy of the stored table, nil when absent
func (s *MemoryTableStore) Table(name string) *models.Sheet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tables[name]
	if !ok {
		return nil
	}
	return cloneSheet(t.Name, t.Header, t.Rows)
}

func (s *MemoryTableStore) ReadTable(ctx context.Context, name string) (*models.Sheet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.readErrors[name]; err != nil {
		return nil, err
	}
	t, ok := s.tables[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", repository.ErrTableNotFound, name)
	}
	return cloneSheet(t.Name, t.Header, t.Rows), nil
}

func (s *MemoryTableStore) WriteTable(ctx context.Context, name string, header []string, rows []models.SheetRow) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writeErrs[name]; err != nil {
		return err
	}
	s.tables[name] = cloneSheet(name, header, rows)
	s.writes[name]++
	return nil
}

func cloneSheet(name string, header []string, rows []models.SheetRow) *models.Sheet {
	out := &models.Sheet{
		Name:   name,
		Header: slices.Clone(header),
		Rows:   make([]models.SheetRow, 0, len(rows)),
	}
	if out.Header == nil {
		out.Header = []string{}
	}
	for _, r := range rows {
		out.Rows = append(out.Rows, maps.Clone(r))
	}
	return out
}
