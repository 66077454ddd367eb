package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"copilot-salud-backend/internal/roles"
)

// Bundle holds the datasets a role is allowed to read. It is immutable
// after load; readers share it without locking.
type Bundle struct {
	frames   map[string]*Frame
	keys     []string
	Warnings []string
	LoadedAt time.Time
}

// NewBundle assembles a bundle from prebuilt frames, ordered by key.
func NewBundle(frames []*Frame) *Bundle {
	b := &Bundle{frames: make(map[string]*Frame, len(frames)), LoadedAt: time.Now()}
	for _, f := range frames {
		if _, dup := b.frames[f.Key]; dup {
			continue
		}
		b.frames[f.Key] = f
		b.keys = append(b.keys, f.Key)
	}
	return b
}

func (b *Bundle) Frame(key string) (*Frame, bool) {
	f, ok := b.frames[key]
	return f, ok
}

func (b *Bundle) Has(key string) bool {
	_, ok := b.frames[key]
	return ok
}

// Keys lists the loaded dataset keys in schema declaration order.
func (b *Bundle) Keys() []string {
	out := make([]string, len(b.keys))
	copy(out, b.keys)
	return out
}

// Primary picks the dataset substituted when a data_query reference is
// invalid: hospitales if loaded, else demografia, else the first key.
func (b *Bundle) Primary() string {
	if b.Has("hospitales") {
		return "hospitales"
	}
	if b.Has("demografia") {
		return "demografia"
	}
	if len(b.keys) > 0 {
		return b.keys[0]
	}
	return ""
}

// Loader loads role-filtered dataset bundles with per-role memoization.
type Loader interface {
	Load(role roles.Role) (*Bundle, error)
	Sweep()
}

type cachedBundle struct {
	bundle    *Bundle
	expiresAt time.Time
}

type csvLoader struct {
	dir      string
	adminTTL time.Duration
	clock    func() time.Time

	mu    sync.RWMutex
	cache map[string]cachedBundle
}

// Option configures the loader; used mostly from tests.
type Option func(*csvLoader)

// WithClock replaces the time source.
func WithClock(clock func() time.Time) Option {
	return func(l *csvLoader) { l.clock = clock }
}

// WithAdminTTL overrides the admin bundle TTL (CACHE_TTL_ADMIN).
func WithAdminTTL(ttl time.Duration) Option {
	return func(l *csvLoader) { l.adminTTL = ttl }
}

func NewCSVLoader(dir string, opts ...Option) Loader {
	l := &csvLoader{
		dir:   dir,
		clock: time.Now,
		cache: make(map[string]cachedBundle),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *csvLoader) Load(role roles.Role) (*Bundle, error) {
	now := l.clock()

	l.mu.RLock()
	if entry, ok := l.cache[role.Key]; ok && now.Before(entry.expiresAt) {
		l.mu.RUnlock()
		log.Debug().Str("role", role.Key).Msg("Dataset bundle served from cache")
		return entry.bundle, nil
	}
	l.mu.RUnlock()

	bundle := &Bundle{
		frames:   make(map[string]*Frame),
		LoadedAt: now,
	}

	for _, schema := range Schemas {
		if !role.AllowsDataset(schema.Key) {
			continue
		}
		path := filepath.Join(l.dir, schema.File)
		frame, err := loadFrame(schema, path)
		if err != nil {
			// Missing or unreadable file is not fatal for the bundle.
			warning := fmt.Sprintf("dataset %s omitted: %v", schema.Key, err)
			bundle.Warnings = append(bundle.Warnings, warning)
			log.Warn().Err(err).Str("dataset", schema.Key).Str("file", path).Msg("Dataset omitted from bundle")
			continue
		}
		bundle.frames[schema.Key] = frame
		bundle.keys = append(bundle.keys, schema.Key)
	}

	ttl := role.CacheTTL
	if role.Key == "admin" && l.adminTTL > 0 {
		ttl = l.adminTTL
	}

	l.mu.Lock()
	l.cache[role.Key] = cachedBundle{bundle: bundle, expiresAt: now.Add(ttl)}
	l.mu.Unlock()

	log.Info().Str("role", role.Key).Strs("datasets", bundle.Keys()).
		Int("warnings", len(bundle.Warnings)).Dur("ttl", ttl).
		Msg("Dataset bundle loaded")
	return bundle, nil
}

// Sweep drops expired bundles; called by the janitor.
func (l *csvLoader) Sweep() {
	now := l.clock()
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, entry := range l.cache {
		if !now.Before(entry.expiresAt) {
			delete(l.cache, key)
		}
	}
}

func loadFrame(schema Schema, path string) (*Frame, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	var records [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row: %w", err)
		}
		records = append(records, record)
	}

	declared := make(map[string]ColumnType, len(schema.Columns))
	units := make(map[string]string, len(schema.Columns))
	for _, c := range schema.Columns {
		declared[c.Name] = c.Type
		units[c.Name] = c.Unit
	}

	cols := make([]Column, len(header))
	for i, name := range header {
		colType, ok := declared[name]
		if !ok {
			colType = TypeString
		}
		cols[i] = Column{Name: name, Type: colType, Unit: units[name]}
	}

	data, err := coerceColumns(cols, header, records)
	if err != nil {
		// Schema coercion failure falls back to an untyped parse.
		log.Warn().Err(err).Str("dataset", schema.Key).Msg("Schema coercion failed, using untyped parse")
		for i := range cols {
			cols[i].Type = TypeString
		}
		data = make(map[string][]interface{}, len(header))
		for i, name := range header {
			values := make([]interface{}, len(records))
			for r, record := range records {
				values[r] = cell(record, i)
			}
			data[name] = values
		}
	}

	return NewFrame(schema.Key, cols, data, len(records)), nil
}

func coerceColumns(cols []Column, header []string, records [][]string) (map[string][]interface{}, error) {
	data := make(map[string][]interface{}, len(header))
	for i, col := range cols {
		values := make([]interface{}, len(records))
		for r, record := range records {
			raw := cell(record, i)
			v, err := coerceValue(raw, col.Type)
			if err != nil {
				return nil, fmt.Errorf("column %s row %d: %w", col.Name, r+1, err)
			}
			values[r] = v
		}
		data[col.Name] = values
	}
	return data, nil
}

func coerceValue(raw string, colType ColumnType) (interface{}, error) {
	raw = strings.TrimSpace(raw)
	switch colType {
	case TypeInt:
		n, err := strconv.ParseInt(raw, 10, 32)
		if err != nil {
			return nil, err
		}
		return int32(n), nil
	case TypeFloat:
		f, err := strconv.ParseFloat(raw, 32)
		if err != nil {
			return nil, err
		}
		return float32(f), nil
	case TypeBool:
		switch strings.ToLower(raw) {
		case "true", "1", "si", "sí":
			return true, nil
		case "false", "0", "no":
			return false, nil
		}
		return nil, fmt.Errorf("invalid bool value %q", raw)
	default:
		return raw, nil
	}
}

func cell(record []string, i int) string {
	if i < len(record) {
		return record[i]
	}
	return ""
}
