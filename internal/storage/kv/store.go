package kv

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"

	"paperchat/internal/util"
)

// Store is an embedded graph store on Badger. It implements the same contract as the
// Postgres store, with brute-force cosine search over the stored chunk vectors.
type Store struct {
	db     *badger.DB
	logger *slog.Logger

	beforeCommit func(paperID string) error
}

type badgerLoggerAdapter struct {
	logger *slog.Logger
}

var _ badger.Logger = (*badgerLoggerAdapter)(nil)

func (bl *badgerLoggerAdapter) Errorf(msg string, items ...any) {
	bl.logger.Error(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Warningf(msg string, items ...any) {
	bl.logger.Warn(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Infof(msg string, items ...any) {
	bl.logger.Info(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Debugf(msg string, items ...any) {
	bl.logger.Debug(fmt.Sprintf(msg, items...))
}

// Open opens (or creates) a store at path. An empty path with inMemory set keeps everything
// in memory, which is what tests use.
func Open(path string, inMemory bool, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "kv-store")

	var opts badger.Options
	if inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		info, err := os.Stat(path)
		switch {
		case os.IsNotExist(err):
			if err := util.EnsureDir(path); err != nil {
				return nil, err
			}
		case err != nil:
			return nil, fmt.Errorf("stat %s: %w", path, err)
		case !info.IsDir():
			return nil, fmt.Errorf("%s is not a directory", path)
		}
		opts = badger.DefaultOptions(path)
	}
	opts.Logger = &badgerLoggerAdapter{logger: logger}
	opts.Compression = options.None

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &Store{db: db, logger: logger}, nil
}

// OnBeforeCommit installs fn to run inside WritePaperGraph once every write is staged. A
// non-nil error from fn rolls the whole write back. It exists for fault injection.
func (s *Store) OnBeforeCommit(fn func(paperID string) error) {
	s.beforeCommit = fn
}

func (s *Store) Close() error {
	return s.db.Close()
}

func getJSON(txn *badger.Txn, k []byte, v any) error {
	item, err := txn.Get(k)
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, v)
	})
}

func setJSON(txn *badger.Txn, k []byte, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return txn.Set(k, b)
}

// keysWithPrefix collects keys first so callers may delete while "iterating".
func keysWithPrefix(txn *badger.Txn, p []byte) [][]byte {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = p
	it := txn.NewIterator(opts)
	defer it.Close()
	var out [][]byte
	for it.Rewind(); it.Valid(); it.Next() {
		out = append(out, it.Item().KeyCopy(nil))
	}
	return out
}

func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, badger.ErrKeyNotFound):
		return util.Mark(err, util.ErrNotFound)
	case errors.Is(err, badger.ErrConflict), errors.Is(err, badger.ErrDBClosed):
		return util.Mark(err, util.ErrUnavailable)
	case errors.Is(err, badger.ErrTxnTooBig):
		return util.Mark(err, util.ErrInvalidInput)
	default:
		return err
	}
}
