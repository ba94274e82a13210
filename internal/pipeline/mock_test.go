package pipeline

import (
	"context"
	"io"
	"strings"

	"github.com/stretchr/testify/mock"

	"github.com/rhermens/s3-dedupe/internal/model"
	"github.com/rhermens/s3-dedupe/internal/store"
)

// --- Store Mock ---

type mockStore struct {
	mock.Mock
}

func (m *mockStore) CreateRun(ctx context.Context, spec model.RunSpec) (*model.Run, error) {
	args := m.Called(ctx, spec)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Run), args.Error(1)
}

func (m *mockStore) CompleteRun(ctx context.Context, runID string, result *model.RunResult) error {
	args := m.Called(ctx, runID, result)
	return args.Error(0)
}

func (m *mockStore) FailRun(ctx context.Context, runID string, result *model.RunResult, cause error) error {
	args := m.Called(ctx, runID, result, cause)
	return args.Error(0)
}

func (m *mockStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	args := m.Called(ctx, runID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Run), args.Error(1)
}

func (m *mockStore) ListRuns(ctx context.Context, filter store.RunFilter) ([]model.Run, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Run), args.Error(1)
}

func (m *mockStore) Migrate(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockStore) Close() error {
	return m.Called().Error(0)
}

// --- Source ---

// memSource serves documents from memory in the order of keys.
type memSource struct {
	keys    []string
	docs    map[string]string
	listErr error
}

func (s *memSource) Name() string { return "mem://test" }

func (s *memSource) List(_ context.Context) ([]string, error) {
	return s.keys, s.listErr
}

func (s *memSource) Open(_ context.Context, key string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(s.docs[key])), nil
}

func batches(docs ...string) *memSource {
	src := &memSource{docs: map[string]string{}}
	for i, doc := range docs {
		key := string(rune('a'+i)) + ".json"
		src.keys = append(src.keys, key)
		src.docs[key] = doc
	}
	return src
}
