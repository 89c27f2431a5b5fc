package commands

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/wolfeidau/storefront/internal/logger"
	"github.com/wolfeidau/storefront/internal/models"
	"github.com/wolfeidau/storefront/internal/store"
	postgresstore "github.com/wolfeidau/storefront/internal/store/postgres"
)

type SeedCmd struct {
	File       string `arg:"" help:"YAML file listing plans" type:"existingfile"`
	ConnString string `help:"PostgreSQL connection string" required:"" env:"POSTGRES_CONNECTION_STRING"`
}

func (s *SeedCmd) Run(ctx context.Context, globals *Globals) error {
	log.Logger = logger.Setup(globals.Debug)

	plans, err := loadPlans(s.File)
	if err != nil {
		return err
	}

	pool, err := postgresstore.NewPool(ctx, &postgresstore.PoolConfig{
		ConnString: s.ConnString,
		MaxConns:   2,
		MinConns:   1,
	})
	if err != nil {
		return fmt.Errorf("failed to create connection pool: %w", err)
	}

	st := postgresstore.New(pool)
	defer st.Close()

	return seedPlans(ctx, st, plans)
}

type seedFile struct {
	Plans []seedPlan `yaml:"plans"`
}

type seedPlan struct {
	Name         string `yaml:"name"`
	AITokenQuota int    `yaml:"ai_token_quota"`
	Price        string `yaml:"price"`
	Currency     string `yaml:"currency"`
	MaxMembers   int    `yaml:"max_members"`
}

// loadPlans reads and validates a plans file.
func loadPlans(path string) ([]*models.Plan, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}

	var f seedFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("failed to parse seed file %s: %w", path, err)
	}

	now := time.Now().UTC()
	seen := make(map[string]bool, len(f.Plans))
	plans := make([]*models.Plan, 0, len(f.Plans))

	for i, p := range f.Plans {
		name := strings.TrimSpace(p.Name)
		if name == "" {
			return nil, fmt.Errorf("plan %d: name is required", i+1)
		}
		if seen[name] {
			return nil, fmt.Errorf("plan %q listed twice", name)
		}
		seen[name] = true

		price := decimal.Zero
		if p.Price != "" {
			price, err = decimal.NewFromString(p.Price)
			if err != nil {
				return nil, fmt.Errorf("plan %q: invalid price %q", name, p.Price)
			}
		}
		if price.IsNegative() {
			return nil, fmt.Errorf("plan %q: price must not be negative", name)
		}

		currency := p.Currency
		if currency == "" {
			currency = models.DefaultCurrency
		}

		plans = append(plans, &models.Plan{
			PlanID:       uuid.Must(uuid.NewV7()),
			Name:         name,
			AITokenQuota: p.AITokenQuota,
			PriceAmount:  price,
			Currency:     currency,
			MaxMembers:   p.MaxMembers,
			CreatedAt:    now,
		})
	}

	return plans, nil
}

// seedPlans upserts plans by name in one transaction.
func seedPlans(ctx context.Context, st store.Store, plans []*models.Plan) error {
	err := st.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		for _, p := range plans {
			if err := tx.Plans().Upsert(ctx, p); err != nil {
				return fmt.Errorf("failed to upsert plan %q: %w", p.Name, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	log.Info().Int("plans", len(plans)).Msg("Seeded plans")
	return nil
}
