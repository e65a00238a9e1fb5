package redis

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/docrag/internal/db"
	"github.com/kailas-cloud/docrag/internal/domain/search/filter"
)

const scoreField = "__vector_score"

// SearchKNN runs a KNN vector similarity search via FT.SEARCH.
// Scores are cosine similarities in [0, 1], highest first.
func (s *Store) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	if q.IndexName == "" {
		return nil, fmt.Errorf("index name is required")
	}
	if len(q.Vector) == 0 {
		return nil, fmt.Errorf("vector is required")
	}
	if q.K <= 0 {
		return nil, fmt.Errorf("k must be positive")
	}
	field := q.VectorField
	if field == "" {
		field = "vector"
	}

	prefilter := "*"
	if !q.Filters.IsEmpty() {
		prefilter = "(" + BuildFilter(q.Filters) + ")"
	}
	query := fmt.Sprintf("%s=>[KNN %d @%s $BLOB AS %s]", prefilter, q.K, field, scoreField)

	args := []string{q.IndexName, query}
	if len(q.ReturnFields) > 0 {
		ret := append(append([]string{}, q.ReturnFields...), scoreField)
		args = append(args, "RETURN", strconv.Itoa(len(ret)))
		args = append(args, ret...)
	}
	args = append(args,
		"SORTBY", scoreField, "ASC",
		"LIMIT", "0", strconv.Itoa(q.K),
		"PARAMS", "2", "BLOB", vectorToBytes(q.Vector),
		"DIALECT", "2",
	)

	raw, err := s.do(ctx, s.b().Arbitrary("FT.SEARCH").Args(args...).Build()).ToArray()
	if err != nil {
		return nil, &db.Error{Op: db.OpSearch, Err: err}
	}

	res, err := parseSearchResult(raw, false)
	if err != nil {
		return nil, err
	}
	for i := range res.Entries {
		e := &res.Entries[i]
		if d, err := strconv.ParseFloat(e.Fields[scoreField], 64); err == nil {
			e.Score = max(0, 1.0-d) // cosine distance -> similarity
		}
		delete(e.Fields, scoreField)
	}
	return res, nil
}

// SearchList performs a filtered, paginated FT.SEARCH.
func (s *Store) SearchList(ctx context.Context, q *db.ListQuery) (*db.SearchResult, error) {
	args := []string{q.IndexName, BuildFilter(q.Filters)}
	if q.NoContent {
		args = append(args, "NOCONTENT")
	} else if len(q.Fields) > 0 {
		args = append(args, "RETURN", strconv.Itoa(len(q.Fields)))
		args = append(args, q.Fields...)
	}
	if q.SortBy != "" {
		dir := "ASC"
		if q.SortDesc {
			dir = "DESC"
		}
		args = append(args, "SORTBY", q.SortBy, dir)
	}
	args = append(args, "LIMIT", strconv.Itoa(q.Offset), strconv.Itoa(q.Limit), "DIALECT", "2")

	raw, err := s.do(ctx, s.b().Arbitrary("FT.SEARCH").Args(args...).Build()).ToArray()
	if err != nil {
		return nil, &db.Error{Op: db.OpSearch, Err: err}
	}
	return parseSearchResult(raw, q.NoContent)
}

// --- Result parsing ---

// parseSearchResult reads [total, key1, fields1, key2, fields2, ...],
// or [total, key1, key2, ...] when keysOnly.
func parseSearchResult(raw []rueidis.RedisMessage, keysOnly bool) (*db.SearchResult, error) {
	if len(raw) == 0 {
		return &db.SearchResult{}, nil
	}

	total, err := raw[0].AsInt64()
	if err != nil {
		return nil, fmt.Errorf("parse total: %w", err)
	}
	if total == 0 {
		return &db.SearchResult{}, nil
	}

	stride := 2
	if keysOnly {
		stride = 1
	}

	entries := make([]db.SearchEntry, 0, (len(raw)-1)/stride)
	for i := 1; i+stride-1 < len(raw); i += stride {
		key, err := raw[i].ToString()
		if err != nil {
			continue
		}
		entry := db.SearchEntry{Key: key}
		if !keysOnly {
			fields, err := raw[i+1].ToArray()
			if err != nil {
				continue
			}
			entry.Fields = parseFieldPairs(fields)
		}
		entries = append(entries, entry)
	}

	return &db.SearchResult{Total: int(total), Entries: entries}, nil
}

func parseFieldPairs(fields []rueidis.RedisMessage) map[string]string {
	m := make(map[string]string, len(fields)/2)
	for j := 0; j+1 < len(fields); j += 2 {
		name, err := fields[j].ToString()
		if err != nil {
			continue
		}
		value, err := fields[j+1].ToString()
		if err != nil {
			continue
		}
		m[name] = value
	}
	return m
}

// --- Filter building ---

// BuildFilter renders an expression as an FT.SEARCH query. The empty expression matches everything.
func BuildFilter(expr filter.Expression) string {
	if expr.IsEmpty() {
		return "*"
	}
	parts := make([]string, 0, len(expr.Clauses()))
	for _, c := range expr.Clauses() {
		if c.Op() == filter.OpAny {
			alts := make([]string, len(c.Any()))
			for i, sub := range c.Any() {
				alts[i] = tagClause(sub)
			}
			parts = append(parts, "("+strings.Join(alts, " | ")+")")
			continue
		}
		parts = append(parts, tagClause(c))
	}
	return strings.Join(parts, " ")
}

func tagClause(c filter.Clause) string {
	escaped := make([]string, len(c.Values()))
	for i, v := range c.Values() {
		escaped[i] = tagEscaper.Replace(v)
	}
	return fmt.Sprintf("@%s:{%s}", c.Field(), strings.Join(escaped, " | "))
}

var tagEscaper = strings.NewReplacer(
	`\`, `\\`,
	",", `\,`, ".", `\.`, "<", `\<`, ">", `\>`,
	"{", `\{`, "}", `\}`, "[", `\[`, "]", `\]`,
	`"`, `\"`, "'", `\'`, ":", `\:`, ";", `\;`,
	"!", `\!`, "@", `\@`, "#", `\#`, "$", `\$`,
	"%", `\%`, "^", `\^`, "&", `\&`, "*", `\*`,
	"(", `\(`, ")", `\)`, "-", `\-`, "+", `\+`,
	"=", `\=`, "~", `\~`, "|", `\|`, "/", `\/`,
	" ", `\ `,
)

func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}
