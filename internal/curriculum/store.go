// Package curriculum provides the topic registry: a Postgres-backed lookup
// that canonicalizes caller-supplied topics and supplies search keywords
// for retrieval, with a Redis cache in front.
package curriculum

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/redis/go-redis/v9"
)

// Logger interface definition
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	WithFields(fields map[string]interface{}) Logger
}

// Topic is one curriculum registry row.
type Topic struct {
	Subject       string   `json:"subject"`
	Topic         string   `json:"topic"`
	CanonicalName string   `json:"canonicalName"`
	Keywords      []string `json:"keywords,omitempty"`
	Strand        string   `json:"strand,omitempty"`
	MinGrade      int      `json:"minGrade"`
	MaxGrade      int      `json:"maxGrade"`
}

// Store looks up curriculum topics. Lookup failures degrade to pass-through
// so a registry outage never blocks question generation.
type Store struct {
	db       *sql.DB
	cache    *redis.Client
	cacheTTL time.Duration
	logger   Logger
}

func NewStore(db *sql.DB, cache *redis.Client, cacheTTL time.Duration, log Logger) *Store {
	if cacheTTL <= 0 {
		cacheTTL = 10 * time.Minute
	}
	return &Store{
		db:       db,
		cache:    cache,
		cacheTTL: cacheTTL,
		logger:   log.WithFields(map[string]interface{}{"component": "curriculum"}),
	}
}

const lookupQuery = `
SELECT subject, topic, canonical_name, keywords, strand, min_grade, max_grade
FROM curriculum_topics
WHERE lower(subject) = lower($1)
  AND (lower(topic) = lower($2) OR lower(canonical_name) = lower($2))
  AND min_grade <= $3 AND max_grade >= $3
LIMIT 1`

// Lookup returns the registry entry for a topic, or nil when the registry
// has none.
func (s *Store) Lookup(ctx context.Context, subject, topic string, grade int) (*Topic, error) {
	cacheKey := fmt.Sprintf("topic:%s:%s:%d", strings.ToLower(subject), strings.ToLower(topic), grade)
	if t, ok := s.fromCache(ctx, cacheKey); ok {
		return t, nil
	}

	row := s.db.QueryRowContext(ctx, lookupQuery, subject, topic, grade)

	var t Topic
	var keywords pq.StringArray
	err := row.Scan(&t.Subject, &t.Topic, &t.CanonicalName, &keywords, &t.Strand, &t.MinGrade, &t.MaxGrade)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("curriculum lookup: %w", err)
	}
	t.Keywords = []string(keywords)

	s.toCache(ctx, cacheKey, &t)
	return &t, nil
}

// Resolve canonicalizes a topic for retrieval. Any failure, including an
// unknown topic, degrades to the caller's own input.
func (s *Store) Resolve(ctx context.Context, subject, topic string, grade int) (string, []string) {
	t, err := s.Lookup(ctx, subject, topic, grade)
	if err != nil {
		s.logger.Warn("topic lookup failed, passing topic through", map[string]interface{}{
			"subject": subject,
			"topic":   topic,
			"error":   err.Error(),
		})
		return topic, nil
	}
	if t == nil {
		return topic, nil
	}
	return t.CanonicalName, t.Keywords
}

const listQuery = `
SELECT subject, topic, canonical_name, keywords, strand, min_grade, max_grade
FROM curriculum_topics
WHERE lower(subject) = lower($1) AND min_grade <= $2 AND max_grade >= $2
ORDER BY strand, canonical_name`

// ListForGrade returns every topic available to a grade within a subject.
func (s *Store) ListForGrade(ctx context.Context, subject string, grade int) ([]Topic, error) {
	rows, err := s.db.QueryContext(ctx, listQuery, subject, grade)
	if err != nil {
		return nil, fmt.Errorf("curriculum list: %w", err)
	}
	defer rows.Close()

	var topics []Topic
	for rows.Next() {
		var t Topic
		var keywords pq.StringArray
		if err := rows.Scan(&t.Subject, &t.Topic, &t.CanonicalName, &keywords, &t.Strand, &t.MinGrade, &t.MaxGrade); err != nil {
			return nil, fmt.Errorf("curriculum scan: %w", err)
		}
		t.Keywords = []string(keywords)
		topics = append(topics, t)
	}
	return topics, rows.Err()
}

func (s *Store) fromCache(ctx context.Context, key string) (*Topic, bool) {
	if s.cache == nil {
		return nil, false
	}
	raw, err := s.cache.Get(ctx, key).Result()
	if err != nil {
		return nil, false
	}
	var t Topic
	if err := json.Unmarshal([]byte(raw), &t); err != nil {
		return nil, false
	}
	s.logger.Debug("topic cache hit", map[string]interface{}{"key": key})
	return &t, true
}

func (s *Store) toCache(ctx context.Context, key string, t *Topic) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(t)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, string(raw), s.cacheTTL).Err(); err != nil {
		s.logger.Warn("topic cache write failed", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
	}
}
