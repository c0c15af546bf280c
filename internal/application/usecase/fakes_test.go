package usecase

import (
	"context"
	"fmt"
	"sync"

	"github.com/avierx/tabdeck/internal/application/port"
	"github.com/avierx/tabdeck/internal/domain/entity"
)

// fakeTabs is an in-memory browser tab API.
type fakeTabs struct {
	mu          sync.Mutex
	tabs        []port.BrowserTab
	nextID      int64
	queryErr    error
	activateErr map[int64]error
	createErr   map[string]error
	created     []string
	activated   []int64
	queryCalls  int
}

func newFakeTabs(tabs ...port.BrowserTab) *fakeTabs {
	f := &fakeTabs{tabs: tabs, nextID: 1000}
	return f
}

func (f *fakeTabs) Query(context.Context) ([]port.BrowserTab, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queryCalls++
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return append([]port.BrowserTab(nil), f.tabs...), nil
}

func (f *fakeTabs) Get(_ context.Context, tabID int64) (port.BrowserTab, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, tab := range f.tabs {
		if tab.ID == tabID {
			return tab, nil
		}
	}
	return port.BrowserTab{}, fmt.Errorf("no tab %d", tabID)
}

func (f *fakeTabs) Create(_ context.Context, url string) (port.BrowserTab, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.createErr[url]; err != nil {
		return port.BrowserTab{}, err
	}
	f.nextID++
	tab := port.BrowserTab{ID: f.nextID, URL: url}
	f.tabs = append(f.tabs, tab)
	f.created = append(f.created, url)
	return tab, nil
}

func (f *fakeTabs) Activate(_ context.Context, tabID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.activateErr[tabID]; err != nil {
		return err
	}
	for i := range f.tabs {
		f.tabs[i].Active = f.tabs[i].ID == tabID
	}
	f.activated = append(f.activated, tabID)
	return nil
}

func (f *fakeTabs) WaitForLoad(context.Context, int64) error {
	return nil
}

// close drops a tab from the live set without telling anyone, simulating
// the user closing it behind the engine's back.
func (f *fakeTabs) close(tabID int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, tab := range f.tabs {
		if tab.ID == tabID {
			f.tabs = append(f.tabs[:i], f.tabs[i+1:]...)
			return
		}
	}
}

// fakePages is an in-memory content-script channel.
type fakePages struct {
	mu      sync.Mutex
	scrolls map[int64]port.ScrollOffset
	getErr  error
	setErr  error
	sets    []int64
}

func newFakePages() *fakePages {
	return &fakePages{scrolls: map[int64]port.ScrollOffset{}}
}

func (f *fakePages) GetScroll(_ context.Context, tabID int64) (port.ScrollOffset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return port.ScrollOffset{}, f.getErr
	}
	return f.scrolls[tabID], nil
}

func (f *fakePages) SetScroll(_ context.Context, tabID int64, offset port.ScrollOffset) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return f.setErr
	}
	f.scrolls[tabID] = offset
	f.sets = append(f.sets, tabID)
	return nil
}

// fakeRepo is an in-memory snapshot store.
type fakeRepo struct {
	mu            sync.Mutex
	raw           entity.RawSnapshot
	saved         []*entity.StorageSnapshot
	savedVersions []int
	loadErr       error
	saveErr       error
	loadCalls     int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{raw: entity.RawSnapshot{}}
}

func (f *fakeRepo) Load(context.Context) (entity.RawSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loadCalls++
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return f.raw.Clone(), nil
}

func (f *fakeRepo) Save(_ context.Context, snapshot *entity.StorageSnapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, snapshot)
	f.raw = snapshot.Raw()
	return nil
}

func (f *fakeRepo) SaveVersion(_ context.Context, version int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.savedVersions = append(f.savedVersions, version)
	return nil
}

// noopFlush satisfies Flusher for manager tests that do not assert on
// persistence.
func noopFlush(context.Context) error { return nil }

// countingFlush records how many times a manager persisted.
func countingFlush(count *int) Flusher {
	return func(context.Context) error {
		*count++
		return nil
	}
}
