package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/dgraph-io/badger/v4"
)

// Cache memoizes embeddings on disk keyed by model and content hash. It is
// opt-in; without it every call reaches the provider.
type Cache struct {
	next  Embedder
	db    *badger.DB
	model string
}

// OpenCache opens (or creates) a badger store at dir.
func OpenCache(dir, model string, next Embedder) (*Cache, error) {
	opts := badger.DefaultOptions(dir).WithLogger(&badgerLogger{logger: slog.Default().With("component", "embedding-cache")})
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open embedding cache: %w", err)
	}
	return NewCache(db, model, next), nil
}

func NewCache(db *badger.DB, model string, next Embedder) *Cache {
	return &Cache{next: next, db: db, model: model}
}

func (c *Cache) Embed(ctx context.Context, text string) ([]float32, error) {
	key := c.key(text)

	vec, err := c.lookup(key)
	if err == nil {
		return vec, nil
	}
	if !errors.Is(err, badger.ErrKeyNotFound) {
		slog.WarnContext(ctx, "embedding cache read failed", "error", err)
	}

	vec, err = c.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	if err := c.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, encodeVector(vec))
	}); err != nil {
		slog.WarnContext(ctx, "embedding cache write failed", "error", err)
	}
	return vec, nil
}

func (c *Cache) Close() error {
	return c.db.Close()
}

func (c *Cache) key(text string) []byte {
	sum := sha256.Sum256([]byte(c.model + "\x00" + text))
	return append([]byte("emb:"), sum[:]...)
}

func (c *Cache) lookup(key []byte) ([]float32, error) {
	var vec []float32
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			vec = decodeVector(val)
			return nil
		})
	})
	return vec, err
}

func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func decodeVector(buf []byte) []float32 {
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vec
}

type badgerLogger struct {
	logger *slog.Logger
}

var _ badger.Logger = (*badgerLogger)(nil)

func (l *badgerLogger) Errorf(msg string, items ...any) {
	l.logger.Error(fmt.Sprintf(msg, items...))
}

func (l *badgerLogger) Warningf(msg string, items ...any) {
	l.logger.Warn(fmt.Sprintf(msg, items...))
}

func (l *badgerLogger) Infof(msg string, items ...any) {
	l.logger.Debug(fmt.Sprintf(msg, items...))
}

func (l *badgerLogger) Debugf(msg string, items ...any) {
	l.logger.Debug(fmt.Sprintf(msg, items...))
}
