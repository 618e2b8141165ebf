package app

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redisv9 "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"docsearch/internal/conversation"
	"docsearch/internal/model"
	"docsearch/internal/search"
	"docsearch/internal/stage"
	"docsearch/internal/warehouse"
)

type fakeSearcher struct {
	rows  []search.Row
	err   error
	calls []search.Query
}

func (f *fakeSearcher) Search(_ context.Context, q search.Query) ([]search.Row, error) {
	f.calls = append(f.calls, q)
	return f.rows, f.err
}

type fakeGenerator struct {
	chunks  []string
	err     error
	prompts []string
}

func (f *fakeGenerator) Stream(_ context.Context, prompt string) iter.Seq2[string, error] {
	f.prompts = append(f.prompts, prompt)
	return func(yield func(string, error) bool) {
		for _, c := range f.chunks {
			if !yield(c, nil) {
				return
			}
		}
		if f.err != nil {
			yield("", f.err)
		}
	}
}

type fakeObjectStore struct {
	mu        sync.Mutex
	objects   map[string][]byte
	putErr    error
	deleteErr error
	ensureErr error
	ensured   int
	deleted   []string
}

func newFakeObjectStore() *fakeObjectStore {
	return &fakeObjectStore{objects: map[string][]byte{}}
}

func (f *fakeObjectStore) Ensure(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ensured++
	return f.ensureErr
}

func (f *fakeObjectStore) Put(_ context.Context, data []byte, name string, overwrite, compress bool) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putErr != nil {
		return "", f.putErr
	}
	path := stage.ObjectPath("info_stage", name, compress)
	if _, exists := f.objects[path]; exists && !overwrite {
		return "", stage.ErrObjectExists
	}
	f.objects[path] = data
	return path, nil
}

func (f *fakeObjectStore) Delete(_ context.Context, objectPath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, objectPath)
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.objects, objectPath)
	return nil
}

type fakePublisher struct {
	records []model.FeedbackRecord
	err     error
}

func (f *fakePublisher) Publish(_ context.Context, record model.FeedbackRecord) error {
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, record)
	return nil
}

var dbSeq int

// newTestProvider returns a provider over a private in-memory database,
// migrated unless migrate is false.
func newTestProvider(t *testing.T, migrate bool) *warehouse.Provider {
	t.Helper()
	dbSeq++
	dsn := fmt.Sprintf("file:app_%d?mode=memory&cache=shared", dbSeq)
	p := warehouse.NewProvider(func(ctx context.Context) (*gorm.DB, error) {
		return gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Discard})
	})
	t.Cleanup(func() { _ = p.Close() })
	if migrate {
		require.NoError(t, p.Run(context.Background(), func(db *gorm.DB) error {
			return db.AutoMigrate(&model.UploadRecord{}, &model.FeedbackRecord{}, &model.User{})
		}))
	}
	return p
}

func newTestConversationStore(t *testing.T) conversation.Store {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redisv9.NewClient(&redisv9.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return conversation.NewRedisStore(client, time.Hour)
}

var errBoom = errors.New("boom")
