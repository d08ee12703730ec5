// Package neo4j implements the graph/vector store contract on a Neo4j
// server. Entities carry their typed label plus a shared Entity base label
// so native vector indexes can cover them; documents carry the Document
// label. Similarity search goes through db.index.vector.queryNodes.
package neo4j

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/Glossick/akasha-sub002/store"
)

// baseEntityLabel is the shared secondary label on every entity node. The
// vector index is declared against it because Cypher vector indexes bind
// to a single label.
const baseEntityLabel = "Entity"

// Config holds the connection settings for the server backend.
type Config struct {
	URI          string
	Username     string
	Password     string
	Database     string
	EmbeddingDim int
	MaxPoolSize  int
	Timeout      time.Duration
}

// Store is the server backend. It satisfies store.Provider.
type Store struct {
	cfg    Config
	driver neo4j.DriverWithContext
}

var _ store.Provider = (*Store)(nil)

// New creates an unconnected Store.
func New(cfg Config) *Store {
	if cfg.MaxPoolSize <= 0 {
		cfg.MaxPoolSize = 50
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Store{cfg: cfg}
}

// Connect initialises the driver and verifies connectivity. Idempotent.
func (s *Store) Connect(ctx context.Context) error {
	if s.driver != nil {
		return nil
	}
	auth := neo4j.BasicAuth(s.cfg.Username, s.cfg.Password, "")
	driver, err := neo4j.NewDriverWithContext(s.cfg.URI, auth, func(cfg *neo4j.Config) {
		cfg.MaxConnectionPoolSize = s.cfg.MaxPoolSize
		cfg.SocketConnectTimeout = s.cfg.Timeout
	})
	if err != nil {
		return fmt.Errorf("neo4j: init driver: %w", err)
	}

	vctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()
	if err := driver.VerifyConnectivity(vctx); err != nil {
		_ = driver.Close(ctx)
		return fmt.Errorf("neo4j: verify connectivity: %w", err)
	}

	s.driver = driver
	return nil
}

// Disconnect closes the driver. Idempotent.
func (s *Store) Disconnect(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}
	err := s.driver.Close(ctx)
	s.driver = nil
	return err
}

// Ping verifies the connection is still usable.
func (s *Store) Ping(ctx context.Context) error {
	if s.driver == nil {
		return fmt.Errorf("neo4j: not connected")
	}
	return s.driver.VerifyConnectivity(ctx)
}

// EnsureVectorIndex creates the cosine vector indexes for entities and
// documents, plus the id uniqueness constraints. All statements are
// IF NOT EXISTS so the call is idempotent.
func (s *Store) EnsureVectorIndex(ctx context.Context) error {
	stmts := []string{
		fmt.Sprintf(`CREATE CONSTRAINT entity_id_unique IF NOT EXISTS FOR (n:%s) REQUIRE n.id IS UNIQUE`, baseEntityLabel),
		fmt.Sprintf(`CREATE CONSTRAINT document_id_unique IF NOT EXISTS FOR (n:%s) REQUIRE n.id IS UNIQUE`, store.DocumentLabel),
		fmt.Sprintf(`CREATE VECTOR INDEX entity_embedding_index IF NOT EXISTS
FOR (n:%s) ON (n.embedding)
OPTIONS {indexConfig: {`+"`vector.dimensions`"+`: %d, `+"`vector.similarity_function`"+`: 'cosine'}}`,
			baseEntityLabel, s.cfg.EmbeddingDim),
		fmt.Sprintf(`CREATE VECTOR INDEX document_embedding_index IF NOT EXISTS
FOR (n:%s) ON (n.embedding)
OPTIONS {indexConfig: {`+"`vector.dimensions`"+`: %d, `+"`vector.similarity_function`"+`: 'cosine'}}`,
			store.DocumentLabel, s.cfg.EmbeddingDim),
	}

	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)
	for _, q := range stmts {
		res, err := session.Run(ctx, q, nil)
		if err != nil {
			return fmt.Errorf("neo4j: ensuring index: %w", err)
		}
		if _, err := res.Consume(ctx); err != nil {
			return fmt.Errorf("neo4j: ensuring index: %w", err)
		}
	}
	return nil
}

func (s *Store) session(ctx context.Context, mode neo4j.AccessMode) neo4j.SessionWithContext {
	return s.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   mode,
		DatabaseName: s.cfg.Database,
	})
}

// write runs fn inside a managed write transaction.
func (s *Store) write(ctx context.Context, fn func(tx neo4j.ManagedTransaction) (any, error)) (any, error) {
	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)
	return session.ExecuteWrite(ctx, fn)
}

// read runs fn inside a managed read transaction.
func (s *Store) read(ctx context.Context, fn func(tx neo4j.ManagedTransaction) (any, error)) (any, error) {
	session := s.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)
	return session.ExecuteRead(ctx, fn)
}
