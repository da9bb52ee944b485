package worker_test

import (
	"context"
	"sync"
	"time"

	"github.com/nsqio/go-nsq"
	"github.com/stretchr/testify/mock"

	"github.com/Lee-Hyeong-Jin/multimodal-preprocessing-api/features/job"
	"github.com/Lee-Hyeong-Jin/multimodal-preprocessing-api/internal/worker"
)

// Mocks

type MockEmbedder struct{ mock.Mock }

func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

type MockRecordWriter struct{ mock.Mock }

func (m *MockRecordWriter) WriteChunks(ctx context.Context, records []worker.ChunkRecord) error {
	args := m.Called(ctx, records)
	return args.Error(0)
}

func (m *MockRecordWriter) WriteDrawing(ctx context.Context, record worker.DrawingRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

type MockJobRepo struct{ mock.Mock }

func (m *MockJobRepo) Save(ctx context.Context, j *job.Job) error {
	args := m.Called(ctx, j)
	return args.Error(0)
}

// fakeDelegate records how a message was responded to.
type fakeDelegate struct {
	mu       sync.Mutex
	finished int
	requeued int
	backoff  bool
}

func (d *fakeDelegate) OnFinish(*nsq.Message) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.finished++
}

func (d *fakeDelegate) OnRequeue(_ *nsq.Message, _ time.Duration, backoff bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.requeued++
	d.backoff = backoff
}

func (d *fakeDelegate) OnTouch(*nsq.Message) {}

func newMessage(body []byte, attempts uint16) (*nsq.Message, *fakeDelegate) {
	var id nsq.MessageID
	copy(id[:], "0123456789abcdef")
	m := nsq.NewMessage(id, body)
	m.Attempts = attempts
	d := &fakeDelegate{}
	m.Delegate = d
	return m, d
}

// vector returns a full-size embedding whose components are all v.
func vector(v float32) []float32 {
	out := make([]float32, 3072)
	for i := range out {
		out[i] = v
	}
	return out
}
