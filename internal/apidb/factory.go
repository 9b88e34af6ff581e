package apidb

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"

	"github.com/jronak/cgimap-go/internal/cgimaperr"
	"github.com/jronak/cgimap-go/internal/changesetcache"
	"github.com/jronak/cgimap-go/internal/config"
	"github.com/jronak/cgimap-go/internal/logging"
	"github.com/jronak/cgimap-go/internal/osmtypes"
)

// minSupportedProtocol is the lowest server version the factory accepts,
// matching the reference implementation's "≥ 9.3" check (spec §4.5),
// re-read against MySQL's own version string.
const minSupportedProtocol = "5.7"

// Factory builds selection engines that share a primary connection pool
// and a single changeset cache instance across requests (spec §4.5).
type Factory struct {
	primary *sql.DB
	loader  *sql.DB
	cache   *changesetcache.Cache
	log     *logging.Logger
}

// NewFactory opens the primary and loader connection pools from opts,
// verifies the server's protocol version and applies the configured
// charset, and builds the shared changeset cache bound to the loader
// pool (spec §4.2, §4.5, §5: "two distinct resource pools").
func NewFactory(ctx context.Context, opts config.Options, log *logging.Logger) (*Factory, error) {
	dsn := dataSourceName(opts)

	primary, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, cgimaperr.NewConfigError("dsn", err)
	}
	if err := verifyServer(ctx, primary, opts.Charset); err != nil {
		primary.Close()
		return nil, err
	}

	loader, err := sql.Open("mysql", dsn)
	if err != nil {
		primary.Close()
		return nil, cgimaperr.NewConfigError("dsn", err)
	}

	f := &Factory{primary: primary, loader: loader, log: log}

	cache, err := changesetcache.New(opts.CacheSize, f.loadChangeset)
	if err != nil {
		primary.Close()
		loader.Close()
		return nil, cgimaperr.NewConfigError("cachesize", err)
	}
	f.cache = cache

	return f, nil
}

func dataSourceName(opts config.Options) string {
	port := opts.DBPort
	if port == "" {
		port = "3306"
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=%s&parseTime=true",
		opts.Username, opts.Password, opts.Host, port, opts.DBName, opts.Charset)
}

func verifyServer(ctx context.Context, db *sql.DB, charset string) error {
	var version string
	if err := db.QueryRowContext(ctx, "SELECT VERSION()").Scan(&version); err != nil {
		return cgimaperr.NewConfigError("server version", err)
	}
	if version < minSupportedProtocol {
		return cgimaperr.NewConfigError("server version", fmt.Errorf("server reports %s, require >= %s", version, minSupportedProtocol))
	}

	// Suppress notices and set the client text encoding, the MySQL
	// analogue of the reference implementation's SET_CLIENT_ENCODING
	// and notice-processor calls at connection setup (spec §4.5).
	if _, err := db.ExecContext(ctx, fmt.Sprintf("SET NAMES %s", charset)); err != nil {
		return cgimaperr.NewConfigError("charset", err)
	}
	if _, err := db.ExecContext(ctx, "SET SESSION sql_notes = 0"); err != nil {
		return cgimaperr.NewConfigError("charset", err)
	}
	return nil
}

// loadChangeset is the changeset cache's Loader, run against the
// dedicated loader pool distinct from any engine's primary connection
// (spec §4.2: "executes under a separate database session").
func (f *Factory) loadChangeset(ctx context.Context, id osmtypes.ChangesetID) (changesetcache.Changeset, error) {
	var (
		dataPublic bool
		userID     uint64
		name       string
	)
	query := `SELECT u.data_public, u.id, u.display_name
	          FROM changesets c JOIN users u ON u.id = c.user_id
	          WHERE c.id = ?`
	err := f.loader.QueryRowContext(ctx, query, uint64(id)).Scan(&dataPublic, &userID, &name)
	switch {
	case err == sql.ErrNoRows:
		return changesetcache.Changeset{DataPublic: false}, nil
	case err != nil:
		return changesetcache.Changeset{}, cgimaperr.NewDatabaseError("load changeset", err)
	}
	return changesetcache.Changeset{DataPublic: dataPublic, UserID: userID, DisplayName: name}, nil
}

// MakeSelection returns a fresh engine bound to the primary pool and the
// shared cache. The caller must Close the engine when done (spec §4.5).
func (f *Factory) MakeSelection(ctx context.Context) (*Engine, error) {
	store, err := NewSQLStore(ctx, f.primary, f.cache, f.log)
	if err != nil {
		return nil, err
	}
	return NewEngine(store, f.log), nil
}

// Close releases both connection pools. The shared cache has no
// resources of its own beyond the loader pool.
func (f *Factory) Close() error {
	loaderErr := f.loader.Close()
	primaryErr := f.primary.Close()
	if primaryErr != nil {
		return cgimaperr.NewDatabaseError("close primary pool", primaryErr)
	}
	if loaderErr != nil {
		return cgimaperr.NewDatabaseError("close loader pool", loaderErr)
	}
	return nil
}

// CacheLen exposes the shared cache's current size, for diagnostics.
func (f *Factory) CacheLen() int {
	return f.cache.Len()
}
