package sharedmemory

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"
)

func encodeMetadata(md map[string]string) (string, error) {
	if md == nil {
		md = map[string]string{}
	}
	b, err := json.Marshal(md)
	if err != nil {
		return "", fmt.Errorf("marshal metadata: %w", err)
	}
	return string(b), nil
}

func decodeMetadata(raw string) map[string]string {
	md := map[string]string{}
	if raw == "" {
		return md
	}
	_ = json.Unmarshal([]byte(raw), &md)
	return md
}

// Store inserts a new memory, computing its embedding first and then
// inserting the row and its vector atomically under the store's lock.
func (s *Store) Store(ctx context.Context, memType Type, content string, metadata map[string]string, createdBy string) (*Memory, error) {
	vec, err := s.embedder.Embed(ctx, content)
	if err != nil {
		return nil, fmt.Errorf("embed memory content: %w", err)
	}

	metaJSON, err := encodeMetadata(metadata)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.insertLocked(ctx, memType, content, metaJSON, createdBy, now, vec)
	if err != nil {
		return nil, err
	}

	return &Memory{
		ID:        id,
		Type:      memType,
		Content:   content,
		Metadata:  metadata,
		CreatedBy: createdBy,
		CreatedAt: now,
		Embedding: vec,
	}, nil
}

// UpdateOrStore collapses to a single row per (type, created_by,
// query_id): if a matching row already exists it is replaced in place
// (same id), otherwise a new row is inserted. Used by the supervisor to
// keep one live Feedback memory per session instead of accumulating a
// new one on every polling tick.
func (s *Store) UpdateOrStore(ctx context.Context, memType Type, content string, metadata map[string]string, createdBy string) (*Memory, error) {
	queryID := metadata["query_id"]

	vec, err := s.embedder.Embed(ctx, content)
	if err != nil {
		return nil, fmt.Errorf("embed memory content: %w", err)
	}

	metaJSON, err := encodeMetadata(metadata)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	var existingID int64
	row := s.db.QueryRowContext(ctx, `
		SELECT id FROM memories
		WHERE memory_type = ? AND created_by = ?
		  AND json_extract(metadata, '$.query_id') = ?
		ORDER BY id DESC LIMIT 1`,
		string(memType), createdBy, queryID)
	err = row.Scan(&existingID)

	switch {
	case err == sql.ErrNoRows:
		id, err := s.insertLocked(ctx, memType, content, metaJSON, createdBy, now, vec)
		if err != nil {
			return nil, err
		}
		return &Memory{ID: id, Type: memType, Content: content, Metadata: metadata, CreatedBy: createdBy, CreatedAt: now, Embedding: vec}, nil
	case err != nil:
		return nil, fmt.Errorf("lookup existing memory: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, `
		UPDATE memories SET content = ?, metadata = ?, created_at = ? WHERE id = ?`,
		content, metaJSON, now.Unix(), existingID); err != nil {
		return nil, fmt.Errorf("update memory row: %w", err)
	}
	if err := s.upsertVectorLocked(ctx, existingID, vec); err != nil {
		return nil, err
	}

	return &Memory{ID: existingID, Type: memType, Content: content, Metadata: metadata, CreatedBy: createdBy, CreatedAt: now, Embedding: vec}, nil
}

func (s *Store) insertLocked(ctx context.Context, memType Type, content, metaJSON, createdBy string, now time.Time, vec []float32) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO memories (memory_type, content, metadata, created_by, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		string(memType), content, metaJSON, createdBy, now.Unix())
	if err != nil {
		return 0, fmt.Errorf("insert memory row: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read inserted memory id: %w", err)
	}
	if err := s.upsertVectorLocked(ctx, id, vec); err != nil {
		return 0, err
	}
	return id, nil
}

func (s *Store) upsertVectorLocked(ctx context.Context, id int64, vec []float32) error {
	blob := encodeEmbedding(vec)
	if s.hasVec {
		if _, err := s.db.ExecContext(ctx,
			`INSERT OR REPLACE INTO vec_memories (memory_id, embedding) VALUES (?, ?)`, id, blob); err != nil {
			return fmt.Errorf("insert vector row: %w", err)
		}
		return nil
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO vec_memories_fallback (memory_id, embedding) VALUES (?, ?)`, id, blob); err != nil {
		return fmt.Errorf("insert fallback vector row: %w", err)
	}
	return nil
}

// SearchSimilar returns the limit memories (optionally restricted to
// memType) whose embeddings are closest to query's, most similar first.
func (s *Store) SearchSimilar(ctx context.Context, query string, memType *Type, limit int) ([]Memory, error) {
	if limit <= 0 {
		limit = 10
	}
	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed search query: %w", err)
	}

	if s.hasVec {
		return s.searchSimilarVec0(ctx, vec, memType, limit)
	}
	return s.searchSimilarBruteForce(ctx, vec, memType, limit)
}

func (s *Store) searchSimilarVec0(ctx context.Context, vec []float32, memType *Type, limit int) ([]Memory, error) {
	blob := encodeEmbedding(vec)
	query := `
		SELECT m.id, m.memory_type, m.content, m.metadata, m.created_by, m.created_at
		FROM vec_memories v
		JOIN memories m ON m.id = v.memory_id
		WHERE v.embedding MATCH ? AND k = ?`
	args := []any{blob, limit}
	if memType != nil {
		query += ` AND m.memory_type = ?`
		args = append(args, string(*memType))
	}
	query += ` ORDER BY distance`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("vec0 search query: %w", err)
	}
	defer rows.Close()
	return scanMemories(rows)
}

func (s *Store) searchSimilarBruteForce(ctx context.Context, vec []float32, memType *Type, limit int) ([]Memory, error) {
	query := `
		SELECT m.id, m.memory_type, m.content, m.metadata, m.created_by, m.created_at, f.embedding
		FROM vec_memories_fallback f
		JOIN memories m ON m.id = f.memory_id`
	args := []any{}
	if memType != nil {
		query += ` WHERE m.memory_type = ?`
		args = append(args, string(*memType))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("brute-force search query: %w", err)
	}
	defer rows.Close()

	type scored struct {
		mem   Memory
		score float32
	}
	var candidates []scored
	for rows.Next() {
		var m Memory
		var memTypeStr, metaRaw string
		var createdAt int64
		var blob []byte
		if err := rows.Scan(&m.ID, &memTypeStr, &m.Content, &metaRaw, &m.CreatedBy, &createdAt, &blob); err != nil {
			return nil, fmt.Errorf("scan brute-force row: %w", err)
		}
		m.Type = Type(memTypeStr)
		m.Metadata = decodeMetadata(metaRaw)
		m.CreatedAt = time.Unix(createdAt, 0).UTC()
		candidate := decodeEmbedding(blob)
		candidates = append(candidates, scored{mem: m, score: cosineSimilarity(vec, candidate)})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	out := make([]Memory, len(candidates))
	for i, c := range candidates {
		out[i] = c.mem
	}
	return out, nil
}

func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return -1
	}
	var dot, magA, magB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(magA) * math.Sqrt(magB)))
}

// GetByType returns up to limit memories of the given type, newest
// first. limit <= 0 means unbounded.
func (s *Store) GetByType(ctx context.Context, memType Type, limit int) ([]Memory, error) {
	query := `
		SELECT id, memory_type, content, metadata, created_by, created_at
		FROM memories WHERE memory_type = ? ORDER BY id DESC`
	args := []any{string(memType)}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query memories by type: %w", err)
	}
	defer rows.Close()
	return scanMemories(rows)
}

// GetStats returns per-type counts across the whole store.
func (s *Store) GetStats(ctx context.Context) (Stats, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT memory_type, count(*) FROM memories GROUP BY memory_type`)
	if err != nil {
		return Stats{}, fmt.Errorf("query memory stats: %w", err)
	}
	defer rows.Close()

	stats := Stats{Counts: map[Type]int{}}
	for rows.Next() {
		var t string
		var n int
		if err := rows.Scan(&t, &n); err != nil {
			return Stats{}, fmt.Errorf("scan memory stats row: %w", err)
		}
		stats.Counts[Type(t)] = n
		stats.Total += n
	}
	return stats, rows.Err()
}

// Clear removes every memory and vector row; the tool_calls audit log is
// kept. The Orchestrator calls it at the start of each session and after
// a memory export.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM memories`); err != nil {
		return fmt.Errorf("clear memories: %w", err)
	}
	if s.hasVec {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM vec_memories`); err != nil {
			return fmt.Errorf("clear vec_memories: %w", err)
		}
	} else {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM vec_memories_fallback`); err != nil {
			return fmt.Errorf("clear vec_memories_fallback: %w", err)
		}
	}
	return nil
}

func scanMemories(rows *sql.Rows) ([]Memory, error) {
	var out []Memory
	for rows.Next() {
		var m Memory
		var memTypeStr, metaRaw string
		var createdAt int64
		if err := rows.Scan(&m.ID, &memTypeStr, &m.Content, &metaRaw, &m.CreatedBy, &createdAt); err != nil {
			return nil, fmt.Errorf("scan memory row: %w", err)
		}
		m.Type = Type(memTypeStr)
		m.Metadata = decodeMetadata(metaRaw)
		m.CreatedAt = time.Unix(createdAt, 0).UTC()
		out = append(out, m)
	}
	return out, rows.Err()
}
