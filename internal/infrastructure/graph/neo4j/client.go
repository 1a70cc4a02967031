package neo4j

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/kirillkom/regulation-hybrid-search/internal/core/domain"
	"github.com/kirillkom/regulation-hybrid-search/internal/infrastructure/resilience"
)

// relationType is the single stored edge type; the domain relationship name
// lives in the "type" property because Cypher cannot parameterize edge types.
const relationType = "RELATES_TO"

// nodeLabel is shared by every seeded node so id lookups hit one index.
const nodeLabel = "Entity"

const entityConstraintQuery = `
CREATE CONSTRAINT entity_id_unique IF NOT EXISTS
FOR (e:` + nodeLabel + `) REQUIRE e.id IS UNIQUE
`

const neighborsQuery = `
MATCH (n:` + nodeLabel + ` {id: $id})-[r]-(m)
WHERE m.id IS NOT NULL
RETURN m.id AS id,
	coalesce(m.label, head(labels(m)), '') AS label,
	coalesce(r.type, type(r)) AS relationship_type
ORDER BY id
LIMIT $limit
`

const upsertRelationQuery = `
MERGE (s:` + nodeLabel + ` {id: $source})
SET s.label = coalesce($source_label, s.label)
MERGE (t:` + nodeLabel + ` {id: $target})
SET t.label = coalesce($target_label, t.label)
MERGE (s)-[r:` + relationType + ` {type: $type}]->(t)
`

type Config struct {
	URI      string
	Username string
	Password string
	Database string
}

type Options struct {
	ConnectTimeout     time.Duration
	ResilienceExecutor *resilience.Executor
}

type queryRunner func(ctx context.Context, cypher string, params map[string]any, write bool) ([]*neo4j.Record, error)

// Client is the graph relationship collaborator. The driver is long-lived and
// safe for concurrent use.
type Client struct {
	driver   neo4j.DriverWithContext
	database string
	executor *resilience.Executor
	run      queryRunner
}

func New(ctx context.Context, cfg Config, options Options) (*Client, error) {
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 5 * time.Second
	}

	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.Username, cfg.Password, ""), func(c *neo4j.Config) {
		c.SocketConnectTimeout = connectTimeout
		c.UserAgent = "regulation-hybrid-search"
	})
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}

	verifyCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := driver.VerifyConnectivity(verifyCtx); err != nil {
		_ = driver.Close(context.Background())
		return nil, domain.WrapError(domain.ErrUnavailable, "neo4j connect", err)
	}

	c := &Client{
		driver:   driver,
		database: cfg.Database,
		executor: options.ResilienceExecutor,
	}
	c.run = c.executeQuery
	return c, nil
}

func (c *Client) Close(ctx context.Context) error {
	if c.driver == nil {
		return nil
	}
	return c.driver.Close(ctx)
}

// GetNeighbors returns first-hop neighbors of nodeID across both edge
// directions. An unknown node yields an empty list.
func (c *Client) GetNeighbors(ctx context.Context, nodeID string, maxResults int) ([]domain.Neighbor, error) {
	nodeID = strings.TrimSpace(nodeID)
	if nodeID == "" || maxResults <= 0 {
		return []domain.Neighbor{}, nil
	}

	var records []*neo4j.Record
	err := c.execute(ctx, "neo4j.get_neighbors", func(ctx context.Context) error {
		var err error
		records, err = c.run(ctx, neighborsQuery, map[string]any{"id": nodeID, "limit": int64(maxResults)}, false)
		return err
	})
	if err != nil {
		return nil, err
	}
	return neighborsFromRecords(records)
}

func (c *Client) UpsertRelation(ctx context.Context, rel domain.Relation) error {
	if strings.TrimSpace(rel.SourceID) == "" || strings.TrimSpace(rel.TargetID) == "" {
		return domain.WrapError(domain.ErrInvalidInput, "upsert relation", fmt.Errorf("source and target ids are required"))
	}
	relType := strings.TrimSpace(rel.Type)
	if relType == "" {
		relType = "connected"
	}

	params := map[string]any{
		"source":       rel.SourceID,
		"source_label": nullableString(rel.SourceLabel),
		"target":       rel.TargetID,
		"target_label": nullableString(rel.TargetLabel),
		"type":         relType,
	}
	return c.execute(ctx, "neo4j.upsert_relation", func(ctx context.Context) error {
		_, err := c.run(ctx, upsertRelationQuery, params, true)
		return err
	})
}

// EnsureSchema creates the unique id constraint, which also indexes lookups.
func (c *Client) EnsureSchema(ctx context.Context) error {
	return c.execute(ctx, "neo4j.ensure_schema", func(ctx context.Context) error {
		_, err := c.run(ctx, entityConstraintQuery, nil, true)
		return err
	})
}

func (c *Client) Ping(ctx context.Context) error {
	if err := c.driver.VerifyConnectivity(ctx); err != nil {
		return domain.WrapError(domain.ErrUnavailable, "neo4j ping", err)
	}
	return nil
}

func (c *Client) execute(ctx context.Context, operation string, call func(context.Context) error) error {
	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, operation, call, classifyNeo4jError)
	} else {
		err = call(ctx)
	}
	return wrapTemporaryIfNeeded(operation, err)
}

func (c *Client) executeQuery(ctx context.Context, cypher string, params map[string]any, write bool) ([]*neo4j.Record, error) {
	opts := []neo4j.ExecuteQueryConfigurationOption{neo4j.ExecuteQueryWithReadersRouting()}
	if write {
		opts = []neo4j.ExecuteQueryConfigurationOption{neo4j.ExecuteQueryWithWritersRouting()}
	}
	if c.database != "" {
		opts = append(opts, neo4j.ExecuteQueryWithDatabase(c.database))
	}

	result, err := neo4j.ExecuteQuery(ctx, c.driver, cypher, params, neo4j.EagerResultTransformer, opts...)
	if err != nil {
		return nil, fmt.Errorf("neo4j query: %w", err)
	}
	return result.Records, nil
}

func neighborsFromRecords(records []*neo4j.Record) ([]domain.Neighbor, error) {
	out := make([]domain.Neighbor, 0, len(records))
	for _, record := range records {
		id, _, err := neo4j.GetRecordValue[string](record, "id")
		if err != nil {
			return nil, fmt.Errorf("read neighbor id: %w", err)
		}
		label, _, err := neo4j.GetRecordValue[string](record, "label")
		if err != nil {
			return nil, fmt.Errorf("read neighbor label: %w", err)
		}
		relType, _, err := neo4j.GetRecordValue[string](record, "relationship_type")
		if err != nil {
			return nil, fmt.Errorf("read relationship type: %w", err)
		}
		out = append(out, domain.Neighbor{
			ID:               id,
			Label:            label,
			RelationshipType: relType,
			Distance:         1,
		})
	}
	return out, nil
}

func nullableString(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
