// Package migrations compiles the SQL migration files into the binary,
// so deployments never need the .sql files on disk.
package migrations

import (
	"embed"

	"github.com/veluxhome/lumen-core/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

// Hand the embedded set to the database package. The files sit at the
// root of the embedded FS, hence ".".
func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "."
}
