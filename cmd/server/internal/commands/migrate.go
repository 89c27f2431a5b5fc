package commands

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/wolfeidau/storefront/internal/logger"
)

// MigrateCmd applies the embedded migrations. It connects as the login role, which must own the
// schema; the server itself runs as the non-privileged runtime role.
type MigrateCmd struct {
	ConnString string `help:"PostgreSQL connection string" required:"" env:"POSTGRES_CONNECTION_STRING"`
}

func (m *MigrateCmd) Run(ctx context.Context, globals *Globals) error {
	log.Logger = logger.Setup(globals.Debug)
	return migrate(ctx, m.ConnString)
}
