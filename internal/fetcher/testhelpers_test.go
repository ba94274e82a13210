package fetcher

import (
	"context"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/mock"
)

// writeTestFile is a helper that writes data to a file path.
func writeTestFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o644)
}

// fakeSource serves documents from memory. Keys listed in delay finish late,
// which lets tests reverse completion order.
type fakeSource struct {
	keys    []string
	docs    map[string]string
	delay   map[string]time.Duration
	fail    map[string]error
	listErr error
	seq     bool

	mu       sync.Mutex
	inFlight int
	peak     int
	opened   []string
}

func (s *fakeSource) Name() string { return "fake://test" }

func (s *fakeSource) Sequential() bool { return s.seq }

func (s *fakeSource) List(_ context.Context) ([]string, error) {
	return s.keys, s.listErr
}

func (s *fakeSource) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	s.mu.Lock()
	s.opened = append(s.opened, key)
	s.inFlight++
	if s.inFlight > s.peak {
		s.peak = s.inFlight
	}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.inFlight--
		s.mu.Unlock()
	}()

	if d := s.delay[key]; d > 0 {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := s.fail[key]; err != nil {
		return nil, err
	}
	return io.NopCloser(strings.NewReader(s.docs[key])), nil
}

// mockS3 is a testify mock of S3API.
type mockS3 struct {
	mock.Mock
}

func (m *mockS3) ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*s3.ListObjectsV2Output)
	return out, args.Error(1)
}

func (m *mockS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*s3.GetObjectOutput)
	return out, args.Error(1)
}
