// Package repositorytesting provides an in-memory listing store with the
// same transactional contract as the MySQL repository.
package repositorytesting

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/iliyamo/site-listing-marketplace/internal/model"
	"github.com/iliyamo/site-listing-marketplace/internal/repository"
)

// MemoryStore keeps listings in a map.  InTx holds the store mutex for the
// whole callback and restores a snapshot when it fails.
type MemoryStore struct {
	mu       sync.Mutex
	listings map[string]model.Listing
	failures map[string]error
}

// NewMemoryStore returns a store seeded with listings.
func NewMemoryStore(listings ...model.Listing) *MemoryStore {
	m := &MemoryStore{
		listings: map[string]model.Listing{},
		failures: map[string]error{},
	}
	for _, l := range listings {
		m.listings[l.ID] = l
	}
	return m
}

// FailOn makes every later call of the named method return err.
func (m *MemoryStore) FailOn(method string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[method] = err
}

// Listing returns a copy of the stored listing.
func (m *MemoryStore) Listing(id string) (model.Listing, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.listings[id]
	return l, ok
}

// All returns every stored listing ordered by creation time.
func (m *MemoryStore) All() []model.Listing {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sorted(func(model.Listing) bool { return true }, true)
}

// InTx implements the repository transaction contract.
func (m *MemoryStore) InTx(_ context.Context, fn func(tx repository.ListingTx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := make(map[string]model.Listing, len(m.listings))
	for k, v := range m.listings {
		snapshot[k] = v
	}
	if err := fn(memoryTx{m: m}); err != nil {
		m.listings = snapshot
		return err
	}
	return nil
}

func (m *MemoryStore) GetByID(_ context.Context, id string) (*model.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getByID(id)
}

func (m *MemoryStore) Browse(_ context.Context, f model.ListingFilter) ([]model.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("Browse"); err != nil {
		return nil, err
	}
	list := m.sorted(f.Matches, false)
	if f.Offset >= len(list) {
		return []model.Listing{}, nil
	}
	return list[f.Offset:min(len(list), f.Offset+f.Limit)], nil
}

func (m *MemoryStore) ListByOwner(_ context.Context, userID string) ([]model.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("ListByOwner"); err != nil {
		return nil, err
	}
	return m.sorted(func(l model.Listing) bool { return l.UserID == userID }, false), nil
}

func (m *MemoryStore) ListByStatus(_ context.Context, status model.Status) ([]model.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("ListByStatus"); err != nil {
		return nil, err
	}
	return m.sorted(func(l model.Listing) bool { return l.Status == status }, true), nil
}

func (m *MemoryStore) ListConflicted(_ context.Context) ([]model.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("ListConflicted"); err != nil {
		return nil, err
	}
	return m.sorted(func(l model.Listing) bool { return l.Status == model.StatusPriceConflict }, false), nil
}

func (m *MemoryStore) SetAvailability(_ context.Context, id string, available bool, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("SetAvailability"); err != nil {
		return err
	}
	l, ok := m.listings[id]
	if !ok || l.Status != model.StatusApproved {
		return repository.ErrNotFound
	}
	l.Available = available
	l.UpdatedAt = at
	m.listings[id] = l
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("Delete"); err != nil {
		return err
	}
	if _, ok := m.listings[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.listings, id)
	return nil
}

// The helpers below expect m.mu to be held.

func (m *MemoryStore) fail(method string) error {
	if err, ok := m.failures[method]; ok {
		return fmt.Errorf("%s: %w", method, err)
	}
	return nil
}

func (m *MemoryStore) sorted(keep func(model.Listing) bool, ascending bool) []model.Listing {
	list := lo.Filter(lo.Values(m.listings), func(l model.Listing, _ int) bool { return keep(l) })
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].ID < list[j].ID
		}
		if ascending {
			return list[i].CreatedAt.Before(list[j].CreatedAt)
		}
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
	return list
}

func (m *MemoryStore) getByID(id string) (*model.Listing, error) {
	if err := m.fail("GetByID"); err != nil {
		return nil, err
	}
	l, ok := m.listings[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &l, nil
}

func (m *MemoryStore) approve(id, reason string, at time.Time) error {
	if err := m.fail("Approve"); err != nil {
		return err
	}
	l, ok := m.listings[id]
	if !ok {
		return repository.ErrNotFound
	}
	l.Status = model.StatusApproved
	l.Available = true
	if reason != "" {
		l.ApprovalReason = &reason
	}
	l.ApprovedAt = &at
	l.UpdatedAt = at
	m.listings[id] = l
	return nil
}

func (m *MemoryStore) reject(ids []string, reason string, at time.Time) error {
	if err := m.fail("Reject"); err != nil {
		return err
	}
	for _, id := range ids {
		if _, ok := m.listings[id]; !ok {
			return repository.ErrNotFound
		}
	}
	for _, id := range ids {
		l := m.listings[id]
		l.Status = model.StatusRejected
		l.Available = false
		if reason != "" {
			l.RejectionReason = &reason
		}
		l.RejectedAt = &at
		l.UpdatedAt = at
		m.listings[id] = l
	}
	return nil
}

type memoryTx struct {
	m *MemoryStore
}

func (tx memoryTx) FindActiveByURL(_ context.Context, url string) (*model.Listing, error) {
	if err := tx.m.fail("FindActiveByURL"); err != nil {
		return nil, err
	}
	active := tx.m.sorted(func(l model.Listing) bool { return l.URL == url && l.Status.Active() }, true)
	if len(active) == 0 {
		return nil, repository.ErrNotFound
	}
	return &active[0], nil
}

func (tx memoryTx) FindActiveByOwner(_ context.Context, url, userID string) (*model.Listing, error) {
	if err := tx.m.fail("FindActiveByOwner"); err != nil {
		return nil, err
	}
	active := tx.m.sorted(func(l model.Listing) bool {
		return l.URL == url && l.UserID == userID && l.Status.Active()
	}, true)
	if len(active) == 0 {
		return nil, repository.ErrNotFound
	}
	return &active[0], nil
}

func (tx memoryTx) GetByID(_ context.Context, id string) (*model.Listing, error) {
	return tx.m.getByID(id)
}

func (tx memoryTx) Create(_ context.Context, l *model.Listing) error {
	if err := tx.m.fail("Create"); err != nil {
		return err
	}
	if _, ok := tx.m.listings[l.ID]; ok {
		return repository.ErrDuplicate
	}
	tx.m.listings[l.ID] = *l
	return nil
}

func (tx memoryTx) AssignConflict(_ context.Context, id, group string, original bool, at time.Time) error {
	if err := tx.m.fail("AssignConflict"); err != nil {
		return err
	}
	l, ok := tx.m.listings[id]
	if !ok {
		return repository.ErrNotFound
	}
	l.Status = model.StatusPriceConflict
	l.ConflictGroup = &group
	l.IsOriginal = &original
	l.Available = false
	l.UpdatedAt = at
	tx.m.listings[id] = l
	return nil
}

func (tx memoryTx) ConflictMembers(_ context.Context, group string) ([]model.Listing, error) {
	if err := tx.m.fail("ConflictMembers"); err != nil {
		return nil, err
	}
	return tx.m.sorted(func(l model.Listing) bool {
		return l.InGroup(group) && l.Status == model.StatusPriceConflict
	}, true), nil
}

func (tx memoryTx) Approve(_ context.Context, id, reason string, at time.Time) error {
	return tx.m.approve(id, reason, at)
}

func (tx memoryTx) Reject(_ context.Context, ids []string, reason string, at time.Time) error {
	return tx.m.reject(ids, reason, at)
}
