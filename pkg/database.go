package eutel

import (
	"embed"
	"errors"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	sqlx "github.com/jmoiron/sqlx" //make alias name the package to sqlx
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

type DBConfig struct {
	Driver string `json:"driver"`
	Host   string `json:"host"`
	User   string `json:"user"`
	Passwd string `json:"pass"`
	DBName string `json:"dbname"`
}

// ConnectToDatabase opens the run conditions database. For the sqlite
// driver DBName is the path of the database file.
func ConnectToDatabase(config DBConfig) (*sqlx.DB, error) {
	switch config.Driver {
	case "mysql", "":
		port := "3306"
		dbURI := fmt.Sprintf("%s:%s@(%s:%s)/%s?parseTime=true", config.User, config.Passwd, config.Host, port, config.DBName)
		return sqlx.Connect("mysql", dbURI)
	case "sqlite":
		return sqlx.Connect("sqlite", config.DBName)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", config.Driver)
	}
}

// MigrateUp creates or updates the schema of a sqlite run conditions database.
func MigrateUp(db *sqlx.DB) error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("error reading embedded migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(db.DB, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("error creating sqlite migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("error creating migrate instance: %w", err)
	}
	// m is not closed: that would close the shared connection
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

type RunParameterEntry struct {
	Name  string  `db:"Name"`
	Value float64 `db:"Value"`
}

// LoadGeometryFromDB reads the planes layout valid for the given run.
func LoadGeometryFromDB(db *sqlx.DB, runNumber int) (LayerLayout, error) {
	query := "SELECT LayerID, NPixelX, NPixelY FROM SiPlanesLayout WHERE MinRun <= ? and MaxRun >= ? ORDER BY LayerID"
	if configuration.Verbosity > 0 {
		logger.Info("Planes layout read from DB", "database")
	}
	if configuration.Verbosity > 2 {
		message := fmt.Sprintf("Query: %s (run %d)", query, runNumber)
		logger.Info(message, "database")
	}

	rows, err := db.Queryx(db.Rebind(query), runNumber, runNumber)
	if err != nil {
		errMessage := fmt.Errorf("error querying database: %w", err)
		return nil, errMessage
	}
	defer rows.Close()

	layout := make(LayerLayout, 0)
	for rows.Next() {
		result := Layer{}
		err := rows.StructScan(&result)
		if err != nil {
			errMessage := fmt.Errorf("error scanning DB row: %w", err)
			return nil, errMessage
		}
		layout = append(layout, result)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating DB rows: %w", err)
	}
	if len(layout) == 0 {
		return nil, fmt.Errorf("%w: no layers for run %d", ErrGeometryUnavailable, runNumber)
	}
	return layout, nil
}

// LoadRunParameters reads the run conditions (chip settings, bias, delays)
// stored for the given run.
func LoadRunParameters(db *sqlx.DB, runNumber int) (Parameters, error) {
	query := "SELECT Name, Value FROM RunParameters WHERE MinRun <= ? and MaxRun >= ?"
	if configuration.Verbosity > 0 {
		logger.Info("Run parameters read from DB", "database")
	}

	entries := []RunParameterEntry{}
	if err := db.Select(&entries, db.Rebind(query), runNumber, runNumber); err != nil {
		return nil, fmt.Errorf("error querying database: %w", err)
	}
	params := make(Parameters, len(entries))
	for _, entry := range entries {
		params[entry.Name] = entry.Value
	}
	return params, nil
}
