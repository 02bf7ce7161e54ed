package completion

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/gobwas/glob"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog/log"

	"github.com/cesardraw2/zeppelin/db"
	"github.com/cesardraw2/zeppelin/telemetry"
)

// DefaultCacheSize is the number of cached prefix lookups.
const DefaultCacheSize = 256

// Options tune an index.
type Options struct {
	CacheSize     int
	MaxCandidates int // 0 = unlimited
}

// Index holds completion candidates: the dialect's keywords and the schema
// object names visible through the connection. Keywords are fixed after
// Build; schema names are replaced by RefreshSchema. Safe for concurrent
// readers with one writer.
type Index struct {
	family        db.Family
	maxCandidates int

	mu       sync.RWMutex
	keywords map[string]struct{}
	schema   *snapshot

	cache *lru.Cache[string, []string]
}

// Build introspects conn and returns a ready index. A *BuildError means
// schema metadata could not be read.
func Build(ctx context.Context, conn Querier, family db.Family, opts Options) (*Index, error) {
	if opts.CacheSize < 1 {
		opts.CacheSize = DefaultCacheSize
	}
	cache, err := lru.New[string, []string](opts.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create completion cache: %w", err)
	}

	idx := &Index{
		family:        family,
		maxCandidates: opts.MaxCandidates,
		keywords:      make(map[string]struct{}),
		cache:         cache,
	}
	for _, w := range StaticKeywords(family) {
		idx.keywords[w] = struct{}{}
	}

	// The driver catalog only extends the static list
	words, err := loadKeywordCatalog(ctx, conn, family)
	if err != nil {
		log.Debug().Err(err).Str("dialect", string(family)).Msg("Keyword catalog unavailable, using built-in list")
	}
	for _, w := range words {
		idx.keywords[w] = struct{}{}
	}

	snap, err := loadSchema(ctx, conn, family)
	if err != nil {
		telemetry.CompletionBuildsTotal.With("build", "failed").Inc()
		return nil, err
	}
	idx.schema = snap

	telemetry.CompletionBuildsTotal.With("build", "success").Inc()
	log.Debug().
		Str("dialect", string(family)).
		Int("keywords", len(idx.keywords)).
		Int("schema_names", len(snap.names)).
		Msg("Completion index built")
	return idx, nil
}

// RefreshSchema reloads schema names; keywords are left alone. On failure
// the previous names stay in place.
func (idx *Index) RefreshSchema(ctx context.Context, conn Querier) error {
	if idx == nil {
		return nil
	}

	snap, err := loadSchema(ctx, conn, idx.family)
	if err != nil {
		telemetry.CompletionBuildsTotal.With("refresh", "failed").Inc()
		return err
	}

	idx.mu.Lock()
	idx.schema = snap
	idx.cache.Purge()
	idx.mu.Unlock()

	telemetry.CompletionBuildsTotal.With("refresh", "success").Inc()
	return nil
}

// Complete returns the candidates for the token at cursor, ordered
// case-insensitively. A token of the form table.prefix completes that
// table's columns. Returns an empty slice when nothing matches.
func (idx *Index) Complete(buffer string, cursor int) []string {
	if idx == nil {
		return []string{}
	}

	token, _ := TokenAt(buffer, cursor)
	if token == "" {
		return []string{}
	}

	// Qualified candidates echo the typed qualifier, so only bare words
	// share a case-insensitive key
	dot := strings.LastIndexByte(token, '.')
	key := token
	if dot < 0 {
		key = strings.ToLower(token)
	}
	if cached, ok := idx.cache.Get(key); ok {
		telemetry.CompletionLookupsTotal.With("hit").Inc()
		return append([]string{}, cached...)
	}
	telemetry.CompletionLookupsTotal.With("miss").Inc()

	// Fill the cache under the read lock; RefreshSchema purges under the
	// write lock
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var result []string
	if dot >= 0 {
		result = idx.completeQualified(token[:dot], token[dot+1:])
	} else {
		result = idx.completeWord(token)
	}

	sortCandidates(result)
	if idx.maxCandidates > 0 && len(result) > idx.maxCandidates {
		result = result[:idx.maxCandidates]
	}

	idx.cache.Add(key, result)
	return append([]string{}, result...)
}

func (idx *Index) completeWord(prefix string) []string {
	seen := make(map[string]struct{})
	var out []string
	collect := func(set map[string]struct{}) {
		for name := range set {
			if _, dup := seen[name]; dup || !hasPrefixFold(name, prefix) {
				continue
			}
			seen[name] = struct{}{}
			out = append(out, name)
		}
	}
	collect(idx.keywords)
	collect(idx.schema.names)
	return out
}

// completeQualified completes columns of qualifier, which may itself be
// schema-qualified (only its last part names the table).
func (idx *Index) completeQualified(qualifier, prefix string) []string {
	table := qualifier
	if dot := strings.LastIndexByte(table, '.'); dot >= 0 {
		table = table[dot+1:]
	}

	var out []string
	seen := make(map[string]struct{})
	for _, col := range idx.schema.columns[strings.ToLower(table)] {
		if _, dup := seen[col]; dup || !hasPrefixFold(col, prefix) {
			continue
		}
		seen[col] = struct{}{}
		out = append(out, qualifier+"."+col)
	}
	return out
}

// SchemaNames returns the schema object names alone, sorted.
func (idx *Index) SchemaNames() []string {
	if idx == nil {
		return []string{}
	}
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return sortedKeys(idx.schema.names)
}

// Keywords returns the keyword set, sorted.
func (idx *Index) Keywords() []string {
	if idx == nil {
		return []string{}
	}
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return sortedKeys(idx.keywords)
}

// Columns returns the known columns of table.
func (idx *Index) Columns(table string) []string {
	if idx == nil {
		return []string{}
	}
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return append([]string{}, idx.schema.columns[strings.ToLower(table)]...)
}

// Size returns the number of distinct candidates.
func (idx *Index) Size() int {
	if idx == nil {
		return 0
	}
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	n := len(idx.keywords)
	for name := range idx.schema.names {
		if _, ok := idx.keywords[name]; !ok {
			n++
		}
	}
	return n
}

// Match returns the table names matching a glob pattern, case-insensitively.
func (idx *Index) Match(pattern string) ([]string, error) {
	if pattern == "" {
		pattern = "*"
	}
	g, err := glob.Compile(strings.ToLower(pattern))
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}
	if idx == nil {
		return []string{}, nil
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	out := []string{}
	for name := range idx.schema.tables {
		if g.Match(strings.ToLower(name)) {
			out = append(out, name)
		}
	}
	sortCandidates(out)
	return out, nil
}

// hasPrefixFold reports whether s starts with prefix under Unicode case
// folding, comparing rune by rune since folded runes may differ in width.
func hasPrefixFold(s, prefix string) bool {
	for prefix != "" {
		if s == "" {
			return false
		}
		pr, pn := utf8.DecodeRuneInString(prefix)
		sr, sn := utf8.DecodeRuneInString(s)
		if pr != sr && !strings.EqualFold(prefix[:pn], s[:sn]) {
			return false
		}
		prefix, s = prefix[pn:], s[sn:]
	}
	return true
}

func sortCandidates(names []string) {
	sort.Slice(names, func(i, j int) bool {
		a, b := strings.ToLower(names[i]), strings.ToLower(names[j])
		if a != b {
			return a < b
		}
		return names[i] < names[j]
	})
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sortCandidates(out)
	return out
}
