package rankindex

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/hwahn/pricepulse/internal/contracts"
	"github.com/hwahn/pricepulse/pkg/logger"
	"github.com/hwahn/pricepulse/pkg/redis"
)

// Metric names the rankable dimensions.
type Metric string

const (
	MetricMarketCap     Metric = "mcap"
	MetricPercentChange Metric = "chgPct"
	MetricPrice         Metric = "price"
)

// Direction of a ranked scan.
type Direction string

const (
	DirAsc  Direction = "asc"
	DirDesc Direction = "desc"
)

// MaxPageSize caps a single ranked read.
const MaxPageSize = 200

// rankTTL expires stale day-scoped indexes on their own.
const rankTTL = 72 * time.Hour

// Entry is one symbol's score on a metric.
type Entry struct {
	Symbol string
	Score  float64
}

// Query selects one page of a ranked index.
type Query struct {
	Metric  Metric
	Day     time.Time
	Session contracts.Session
	Dir     Direction
	Limit   int
	Cursor  string // "<score>[:<symbol>]", opaque stored-score form
	Prefix  string // optional symbol prefix filter
}

// Page is one ranked result page. ETag changes whenever the underlying
// index version advances or the page content shifts.
type Page struct {
	Entries    []Entry
	NextCursor string
	ETag       string
}

// Store maintains per-(metric, day, session, direction) sorted indexes.
//
// Descending indexes store negated scores, so one forward range scan
// serves both directions. Each index carries a version counter bumped on
// every write; ETags derive from it.
type Store struct {
	client *redis.Client
	logger *logger.Logger
}

// NewStore creates a rank index store.
func NewStore(client *redis.Client, log *logger.Logger) *Store {
	return &Store{client: client, logger: log}
}

func rankKey(metric Metric, day time.Time, session contracts.Session, dir Direction) string {
	return fmt.Sprintf("rank:%s:%s:%s:%s", metric, day.Format("2006-01-02"), session, dir)
}

func versionKey(key string) string {
	return fmt.Sprintf("meta:%s:v", key)
}

// Update writes scores for both directions of one index and bumps their
// versions. Callers pass natural scores; negation for the descending index
// happens here.
func (s *Store) Update(ctx context.Context, metric Metric, day time.Time, session contracts.Session, entries []Entry) error {
	if !s.client.Enabled() || len(entries) == 0 {
		return nil
	}

	ascMembers := make([]goredis.Z, len(entries))
	descMembers := make([]goredis.Z, len(entries))
	for i, e := range entries {
		ascMembers[i] = goredis.Z{Score: e.Score, Member: e.Symbol}
		descMembers[i] = goredis.Z{Score: -e.Score, Member: e.Symbol}
	}

	ascKey := rankKey(metric, day, session, DirAsc)
	descKey := rankKey(metric, day, session, DirDesc)

	pipe := s.client.Redis().Pipeline()
	pipe.ZAdd(ctx, ascKey, ascMembers...)
	pipe.ZAdd(ctx, descKey, descMembers...)
	pipe.Incr(ctx, versionKey(ascKey))
	pipe.Incr(ctx, versionKey(descKey))
	pipe.Expire(ctx, ascKey, rankTTL)
	pipe.Expire(ctx, descKey, rankTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("update rank index %s: %w", ascKey, err)
	}

	return nil
}

// Remove drops symbols from both directions of an index.
func (s *Store) Remove(ctx context.Context, metric Metric, day time.Time, session contracts.Session, symbols []string) error {
	if !s.client.Enabled() || len(symbols) == 0 {
		return nil
	}

	members := make([]interface{}, len(symbols))
	for i, sym := range symbols {
		members[i] = sym
	}

	ascKey := rankKey(metric, day, session, DirAsc)
	descKey := rankKey(metric, day, session, DirDesc)

	pipe := s.client.Redis().Pipeline()
	pipe.ZRem(ctx, ascKey, members...)
	pipe.ZRem(ctx, descKey, members...)
	pipe.Incr(ctx, versionKey(ascKey))
	pipe.Incr(ctx, versionKey(descKey))

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("remove from rank index %s: %w", ascKey, err)
	}

	return nil
}

// Page reads one keyset-paginated page. The cursor row itself is excluded;
// the prefix filter applies after the cursor bound, before the limit.
func (s *Store) Page(ctx context.Context, q Query) (*Page, error) {
	if !s.client.Enabled() {
		return &Page{}, nil
	}

	limit := q.Limit
	if limit <= 0 || limit > MaxPageSize {
		limit = MaxPageSize
	}

	cur, err := parseCursor(q.Cursor)
	if err != nil {
		return nil, err
	}

	key := rankKey(q.Metric, q.Day, q.Session, q.Dir)

	min := "-inf"
	if cur != nil {
		// Inclusive at the cursor score; ties on the score are resolved
		// against the cursor symbol after the scan.
		min = strconv.FormatFloat(cur.score, 'f', -1, 64)
	}

	page := &Page{}
	offset := int64(0)
	scan := int64(limit + 1)
	if scan < 64 {
		scan = 64
	}

	for len(page.Entries) <= limit {
		zs, err := s.client.Redis().ZRangeByScoreWithScores(ctx, key, &goredis.ZRangeBy{
			Min:    min,
			Max:    "+inf",
			Offset: offset,
			Count:  scan,
		}).Result()
		if err != nil {
			return nil, fmt.Errorf("scan rank index %s: %w", key, err)
		}

		for _, z := range zs {
			sym, _ := z.Member.(string)
			e := Entry{Symbol: sym, Score: z.Score}
			if !afterCursor(e, cur) {
				continue
			}
			if q.Prefix != "" && !strings.HasPrefix(sym, q.Prefix) {
				continue
			}
			page.Entries = append(page.Entries, e)
			if len(page.Entries) > limit {
				break
			}
		}

		if int64(len(zs)) < scan {
			break
		}
		offset += scan
	}

	// One extra row signals another page exists.
	if len(page.Entries) > limit {
		page.Entries = page.Entries[:limit]
		last := page.Entries[limit-1]
		page.NextCursor = encodeCursor(last.Score, last.Symbol)
	}

	version, err := s.client.Redis().Get(ctx, versionKey(key)).Int64()
	if err != nil && err != goredis.Nil {
		return nil, fmt.Errorf("read rank index version %s: %w", key, err)
	}
	page.ETag = etag(version, page.Entries)

	return page, nil
}

// cursor is a decoded keyset position.
type cursor struct {
	score     float64
	symbol    string
	hasSymbol bool
}

func parseCursor(raw string) (*cursor, error) {
	if raw == "" {
		return nil, nil
	}

	parts := strings.SplitN(raw, ":", 2)
	score, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return nil, fmt.Errorf("invalid cursor %q", raw)
	}

	c := &cursor{score: score}
	if len(parts) == 2 && parts[1] != "" {
		c.symbol = parts[1]
		c.hasSymbol = true
	}
	return c, nil
}

func encodeCursor(score float64, symbol string) string {
	return strconv.FormatFloat(score, 'f', -1, 64) + ":" + symbol
}

// afterCursor reports whether an entry lies strictly past the cursor in
// scan order. Ties on score fall back to symbol order; a cursor without a
// symbol excludes its entire score.
func afterCursor(e Entry, cur *cursor) bool {
	if cur == nil {
		return true
	}
	if e.Score > cur.score {
		return true
	}
	if e.Score < cur.score {
		return false
	}
	if !cur.hasSymbol {
		return false
	}
	return e.Symbol > cur.symbol
}

// etag fingerprints a page: index version plus the page's first/last
// symbol and row count.
func etag(version int64, entries []Entry) string {
	first, last := "", ""
	if len(entries) > 0 {
		first = entries[0].Symbol
		last = entries[len(entries)-1].Symbol
	}
	return fmt.Sprintf(`"v%d-%s-%s-%d"`, version, first, last, len(entries))
}
