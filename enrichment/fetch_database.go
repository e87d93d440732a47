package enrichment

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/dev-mohitbeniwal/bouncer/model"
)

const (
	driverPostgres = "postgres"
	driverNeo4j    = "neo4j"
)

// DatabaseFetcher runs a query against postgres or neo4j. Config keys:
// driver, query and params (list for postgres placeholders, map for cypher
// parameters; string values are request paths). The result is
// {"rows": [...], "count": n} with the first row's columns also copied to
// the top level.
type DatabaseFetcher struct {
	Postgres *pgxpool.Pool
	Neo4j    neo4j.DriverWithContext
	Database string
}

func (f *DatabaseFetcher) Fetch(ctx context.Context, src model.ContextSourceConfig, req *model.AuthorizationRequest) (map[string]interface{}, error) {
	query := configString(src.Config, "query")
	if query == "" {
		return nil, fmt.Errorf("source %s: query not configured", src.ID)
	}
	args, named := resolveParams(src.Config["params"], req.Document())

	driver := configString(src.Config, "driver")
	if driver == "" {
		driver = driverPostgres
	}

	var (
		rows []map[string]interface{}
		err  error
	)
	switch driver {
	case driverPostgres:
		rows, err = f.queryPostgres(ctx, query, args)
	case driverNeo4j:
		rows, err = f.queryNeo4j(ctx, query, named)
	default:
		return nil, fmt.Errorf("source %s: unknown database driver %q", src.ID, driver)
	}
	if err != nil {
		return nil, fmt.Errorf("source %s: %w", src.ID, err)
	}
	return rowsDocument(rows), nil
}

func (f *DatabaseFetcher) queryPostgres(ctx context.Context, query string, args []interface{}) ([]map[string]interface{}, error) {
	if f.Postgres == nil {
		return nil, fmt.Errorf("postgres pool not configured")
	}
	rows, err := f.Postgres.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres query: %w", err)
	}
	result, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, fmt.Errorf("postgres rows: %w", err)
	}
	return result, nil
}

func (f *DatabaseFetcher) queryNeo4j(ctx context.Context, query string, params map[string]interface{}) ([]map[string]interface{}, error) {
	if f.Neo4j == nil {
		return nil, fmt.Errorf("neo4j driver not configured")
	}
	opts := []neo4j.ExecuteQueryConfigurationOption{neo4j.ExecuteQueryWithReadersRouting()}
	if f.Database != "" {
		opts = append(opts, neo4j.ExecuteQueryWithDatabase(f.Database))
	}
	result, err := neo4j.ExecuteQuery(ctx, f.Neo4j, query, params, neo4j.EagerResultTransformer, opts...)
	if err != nil {
		return nil, fmt.Errorf("cypher query: %w", err)
	}
	out := make([]map[string]interface{}, 0, len(result.Records))
	for _, record := range result.Records {
		out = append(out, record.AsMap())
	}
	return out, nil
}

func rowsDocument(rows []map[string]interface{}) map[string]interface{} {
	list := make([]interface{}, 0, len(rows))
	for _, r := range rows {
		list = append(list, r)
	}
	doc := map[string]interface{}{
		"rows":  list,
		"count": len(rows),
	}
	if len(rows) > 0 {
		for k, v := range rows[0] {
			if _, taken := doc[k]; !taken {
				doc[k] = v
			}
		}
	}
	return doc
}
