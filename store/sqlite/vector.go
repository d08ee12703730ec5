package sqlite

import (
	"context"
	"database/sql"

	"github.com/Glossick/akasha-sub002/store"
)

// vectorCandidates fetches the scoring candidates for a vector search over
// table. With sqlite-vec loaded the cosine distance is computed in SQL and
// candidates arrive nearest-first, bounded by the over-fetch pool. Without
// it every embedded row in scope is returned and the caller scores in Go;
// the pool bound would bias the fallback by insertion order, so the scan is
// unbounded there.
func (s *Store) vectorCandidates(ctx context.Context, table, columns string, query []float32, q store.VectorQuery) (*sql.Rows, error) {
	where := "embedding IS NOT NULL"
	var args []any
	if s.vecScored {
		args = append(args, serializeFloat32(query))
	}
	if q.ScopeID != "" {
		where += " AND scope_id = ?"
		args = append(args, q.ScopeID)
	}

	if s.vecScored {
		sqlStr := "SELECT " + columns + ", vec_distance_cosine(embedding, ?) AS distance FROM " + table +
			" WHERE " + where + " ORDER BY distance LIMIT ?"
		args = append(args, store.CandidatePool(q.Limit))
		return s.db.QueryContext(ctx, sqlStr, args...)
	}

	sqlStr := "SELECT " + columns + " FROM " + table + " WHERE " + where
	return s.db.QueryContext(ctx, sqlStr, args...)
}
