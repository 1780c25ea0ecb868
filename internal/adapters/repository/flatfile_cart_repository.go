package repository

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/storefront/core/internal/domain/entities"
	"github.com/storefront/core/internal/infrastructure/logger"
	"github.com/storefront/core/internal/ports"
)

// FlatFileCartRepository keeps the cart store in a text file, one
// "id,computers,phones,printers" record per line.
//
// Update calls are serialised inside the process. Separate processes sharing
// the file are not coordinated: the rename in Persist keeps the file whole,
// but concurrent writers still race and the last one wins.
type FlatFileCartRepository struct {
	path   string
	mu     sync.Mutex
	logger *logger.Logger
}

// NewFlatFileCartRepository creates a cart repository backed by the file at path
func NewFlatFileCartRepository(path string, appLogger *logger.Logger) ports.CartRepository {
	return &FlatFileCartRepository{
		path:   path,
		logger: appLogger.WithComponent("flatfile_cart_repository"),
	}
}

func (r *FlatFileCartRepository) Load(ctx context.Context) (*entities.CartStore, error) {
	start := time.Now()
	store, err := r.load(ctx)
	r.logger.LogStoreOperation("load", storeLen(store), msSince(start), err)
	return store, err
}

func (r *FlatFileCartRepository) Persist(ctx context.Context, store *entities.CartStore) error {
	start := time.Now()
	err := r.persist(ctx, store)
	r.logger.LogStoreOperation("persist", store.Len(), msSince(start), err)
	return err
}

func (r *FlatFileCartRepository) Update(ctx context.Context, fn func(store *entities.CartStore) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	store, err := r.Load(ctx)
	if err != nil {
		return err
	}

	if err := fn(store); err != nil {
		return err
	}

	return r.Persist(ctx, store)
}

// HealthCheck verifies the directory holding the store is reachable
func (r *FlatFileCartRepository) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	info, err := os.Stat(filepath.Dir(r.path))
	if err != nil {
		return fmt.Errorf("cart store directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("cart store directory: %s is not a directory", filepath.Dir(r.path))
	}
	return nil
}

func (r *FlatFileCartRepository) load(ctx context.Context) (*entities.CartStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(r.path)
	if errors.Is(err, fs.ErrNotExist) {
		return entities.NewCartStore(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("open cart store: %w", err)
	}
	defer f.Close()

	store, err := DecodeCartStore(f)
	if err != nil {
		return nil, fmt.Errorf("load cart store %s: %w", r.path, err)
	}
	return store, nil
}

func (r *FlatFileCartRepository) persist(ctx context.Context, store *entities.CartStore) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := EncodeCartStore(&buf, store); err != nil {
		return fmt.Errorf("encode cart store: %w", err)
	}

	dir := filepath.Dir(r.path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(r.path)+".*")
	if err != nil {
		return fmt.Errorf("create temp cart store: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp cart store: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp cart store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp cart store: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("chmod temp cart store: %w", err)
	}

	if err := os.Rename(tmpName, r.path); err != nil {
		return fmt.Errorf("replace cart store: %w", err)
	}
	return nil
}

// DecodeCartStore parses the flat-file format. Blank lines are skipped; any
// other malformed line fails the whole load with ErrCorruptStore.
func DecodeCartStore(rd io.Reader) (*entities.CartStore, error) {
	store := entities.NewCartStore()
	scanner := bufio.NewScanner(rd)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		record, err := parseRecordLine(line)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", entities.ErrCorruptStore, lineNo, err)
		}
		if err := store.Insert(record.ID, record.Counts); err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", entities.ErrCorruptStore, lineNo, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read cart store: %w", err)
	}
	return store, nil
}

// EncodeCartStore writes one line per record in mapping order
func EncodeCartStore(w io.Writer, store *entities.CartStore) error {
	bw := bufio.NewWriter(w)
	for _, rec := range store.Records() {
		if _, err := bw.WriteString(formatRecordLine(rec)); err != nil {
			return err
		}
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func parseRecordLine(line string) (entities.VisitorRecord, error) {
	fields := strings.Split(line, ",")
	if len(fields) != 4 {
		return entities.VisitorRecord{}, fmt.Errorf("expected 4 fields, got %d", len(fields))
	}

	id := strings.TrimSpace(fields[0])
	if id == "" {
		return entities.VisitorRecord{}, entities.ErrInvalidVisitorID
	}

	var counters [3]int
	for i, raw := range fields[1:] {
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return entities.VisitorRecord{}, fmt.Errorf("field %d: %w", i+2, err)
		}
		if n < 0 {
			return entities.VisitorRecord{}, fmt.Errorf("field %d: negative counter %d", i+2, n)
		}
		counters[i] = n
	}

	return entities.VisitorRecord{
		ID: id,
		Counts: entities.Counts{
			Computers: counters[0],
			Phones:    counters[1],
			Printers:  counters[2],
		},
	}, nil
}

func formatRecordLine(rec entities.VisitorRecord) string {
	return fmt.Sprintf("%s,%d,%d,%d", rec.ID, rec.Counts.Computers, rec.Counts.Phones, rec.Counts.Printers)
}

func storeLen(store *entities.CartStore) int {
	if store == nil {
		return 0
	}
	return store.Len()
}

func msSince(start time.Time) float64 {
	return float64(time.Since(start).Nanoseconds()) / 1e6
}
