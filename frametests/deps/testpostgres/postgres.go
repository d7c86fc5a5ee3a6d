package testpostgres

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	tcPostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/pitabwire/tenantkit/data"
	"github.com/pitabwire/tenantkit/frametests/definition"
)

const (
	postgreSQLMaxIdentifiersCharLength = 60

	// PostgresqlDBImage is the PostgreSQL Image.
	PostgresqlDBImage = "postgres:17-alpine"

	// DBUser is the default username for the PostgreSQL test database.
	DBUser = "tenantkit"
	// DBPassword is the default password for the PostgreSQL test database.
	DBPassword = "t3nantkit"
	// DBName is the default database name for the PostgreSQL test database.
	DBName = "tenantkit_test"

	// OccurrenceValue is the number of occurrences to wait for in the log pattern.
	OccurrenceValue = 2
	// TimeoutInSeconds is the timeout duration for container startup in seconds.
	TimeoutInSeconds = 60

	pgDuplicateDatabase = "42P04"
	pgDuplicateObject   = "42710"
	pgUniqueViolation   = "23505"
	pgInternalError     = "XX000"
)

var invalidIdentifierChars = regexp.MustCompile(`[^a-zA-Z0-9_]`)

type postgreSQLDependancy struct {
	*definition.DefaultImpl
	dbname string
}

func New() definition.TestResource {
	return NewWithOpts(DBName)
}

func NewWithOpts(dbName string, containerOpts ...definition.ContainerOption) definition.TestResource {
	opts := definition.ContainerOpts{
		ImageName: PostgresqlDBImage,
		UserName:  DBUser,
		Password:  DBPassword,
	}

	return &postgreSQLDependancy{
		DefaultImpl: definition.NewDefaultImpl(opts, containerOpts...),
		dbname:      dbName,
	}
}

// Setup creates a PostgreSQL testcontainer and sets the container.
func (d *postgreSQLDependancy) Setup(ctx context.Context) error {
	containerCustomize := d.ConfigurationExtend(ctx,
		tcPostgres.WithDatabase(d.dbname),
		tcPostgres.WithUsername(d.Opts().UserName),
		tcPostgres.WithPassword(d.Opts().Password),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(OccurrenceValue).
				WithStartupTimeout(TimeoutInSeconds*time.Second)),
	)

	pgContainer, err := tcPostgres.Run(ctx, d.Name(), containerCustomize...)
	if err != nil {
		return fmt.Errorf("failed to start postgres container: %w", err)
	}

	d.SetContainer(pgContainer)
	return nil
}

// GetDS returns the superuser connection string of the default database.
func (d *postgreSQLDependancy) GetDS(ctx context.Context) data.DSN {
	pgContainer, ok := d.Container().(*tcPostgres.PostgresContainer)
	if !ok {
		return ""
	}

	conn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return ""
	}
	return data.DSN(strings.Replace(conn, "localhost", "127.0.0.1", 1))
}

// GetRandomisedDS creates, if missing, a database named after randomisedPrefix and returns
// its superuser connection string. The returned func drops everything in it.
func (d *postgreSQLDependancy) GetRandomisedDS(
	ctx context.Context,
	randomisedPrefix string,
) (data.DSN, func(context.Context), error) {
	connectionURI, err := d.GetDS(ctx).ToURI()
	if err != nil {
		return "", func(_ context.Context) {}, err
	}

	newDatabaseName := suffixedDatabaseName(connectionURI, randomisedPrefix)

	connectionURI, err = ensureDatabaseExists(ctx, connectionURI, newDatabaseName)
	if err != nil {
		return "", func(_ context.Context) {}, err
	}

	suffixedPgURIStr := connectionURI.String()
	return data.DSN(suffixedPgURIStr), func(cleanupCtx context.Context) {
		_ = clearDatabase(cleanupCtx, suffixedPgURIStr)
	}, nil
}

// ProvisionAppRole creates a login role that is neither superuser nor owner of anything, so
// row level security applies to it, and grants it data access in ownerDS's public schema.
// It returns ownerDS rewritten to authenticate as that role.
func ProvisionAppRole(
	ctx context.Context,
	ownerDS data.DSN,
	role, password string,
) (data.DSN, error) {
	role = strings.ToLower(invalidIdentifierChars.ReplaceAllString(role, "_"))

	conn, err := pgx.Connect(ctx, ownerDS.String())
	if err != nil {
		return "", err
	}
	defer func() { _ = conn.Close(ctx) }()

	createRole := fmt.Sprintf(
		`CREATE ROLE %s LOGIN NOSUPERUSER NOBYPASSRLS PASSWORD %s`,
		pgx.Identifier{role}.Sanitize(), quoteLiteral(password))
	if _, err = conn.Exec(ctx, createRole); err != nil && !isPgCode(err, pgDuplicateObject) {
		return "", err
	}

	ident := pgx.Identifier{role}.Sanitize()
	grants := []string{
		fmt.Sprintf(`GRANT USAGE ON SCHEMA public TO %s`, ident),
		fmt.Sprintf(`GRANT SELECT, INSERT, UPDATE, DELETE ON ALL TABLES IN SCHEMA public TO %s`, ident),
		fmt.Sprintf(`GRANT USAGE, SELECT ON ALL SEQUENCES IN SCHEMA public TO %s`, ident),
		fmt.Sprintf(`ALTER DEFAULT PRIVILEGES IN SCHEMA public GRANT SELECT, INSERT, UPDATE, DELETE ON TABLES TO %s`, ident),
	}
	for _, grant := range grants {
		if _, err = conn.Exec(ctx, grant); err != nil {
			return "", fmt.Errorf("grant app role: %w", err)
		}
	}

	return ownerDS.WithCredentials(role, password), nil
}

// ensureDatabaseExists checks if a specific database exists and creates it if it does not.
func ensureDatabaseExists(ctx context.Context, postgresURI *url.URL, newDBName string) (*url.URL, error) {
	cfg, err := pgxpool.ParseConfig(postgresURI.String())
	if err != nil {
		return postgresURI, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return postgresURI, err
	}
	defer pool.Close()

	if err = pool.Ping(ctx); err != nil {
		return postgresURI, err
	}

	_, err = pool.Exec(ctx, fmt.Sprintf(`CREATE DATABASE %s;`, newDBName))
	if err != nil && !isPgCode(err, pgDuplicateDatabase) && !isPgCode(err, pgUniqueViolation) &&
		!isConcurrentUpdate(err) {
		return postgresURI, err
	}

	postgresURI.Path = newDBName
	return postgresURI, nil
}

func clearDatabase(ctx context.Context, connectionString string) error {
	pool, err := pgxpool.New(ctx, connectionString)
	if err != nil {
		return err
	}
	defer pool.Close()

	_, err = pool.Exec(ctx, `DROP SCHEMA public CASCADE; CREATE SCHEMA public;`)
	return err
}

func isPgCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}

func isConcurrentUpdate(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgInternalError &&
		strings.Contains(pgErr.Message, "tuple concurrently updated")
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// suffixedDatabaseName generates a valid PostgreSQL database name from the given URL path and random prefix.
// It ensures the name complies with PostgreSQL identifier rules and length constraints.
func suffixedDatabaseName(currentURI *url.URL, randomnesPrefix string) string {
	pathPart := strings.ReplaceAll(currentURI.Path, "/", "")
	if pathPart == "" {
		pathPart = "db"
	}

	// PostgreSQL identifiers are limited to 63 bytes
	maxPathLength := postgreSQLMaxIdentifiersCharLength - len(randomnesPrefix)
	if len(pathPart) > maxPathLength {
		pathPart = pathPart[:maxPathLength]
	}

	result := fmt.Sprintf("%s_%s", pathPart, randomnesPrefix)
	result = invalidIdentifierChars.ReplaceAllString(result, "_")

	return strings.ToLower(result) // PostgreSQL folds unquoted identifiers to lowercase
}
