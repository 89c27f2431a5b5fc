package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/storefront/internal/models"
	"github.com/wolfeidau/storefront/internal/store"
)

// documentTable describes how a document kind is laid out.
type documentTable struct {
	table     string
	idCol     string
	numberCol string
	nameCol   string
	phoneCol  string
	amountCol string
	extraCols string // campaign, target_date projection for the summary
}

var documentTables = map[models.DocumentKind]documentTable{
	models.KindOrder: {
		table: "orders", idCol: "order_id", numberCol: "order_number",
		nameCol: "customer_name", phoneCol: "customer_phone", amountCol: "total_amount",
		extraCols: "NULL::text, NULL::date",
	},
	models.KindDonation: {
		table: "donations", idCol: "donation_id", numberCol: "donation_number",
		nameCol: "donor_name", phoneCol: "donor_phone", amountCol: "amount",
		extraCols: "campaign, NULL::date",
	},
	models.KindPledge: {
		table: "pledges", idCol: "pledge_id", numberCol: "pledge_number",
		nameCol: "pledgor_name", phoneCol: "pledgor_phone", amountCol: "amount",
		extraCols: "NULL::text, target_date",
	},
}

func tableFor(kind models.DocumentKind) (documentTable, error) {
	t, ok := documentTables[kind]
	if !ok {
		return documentTable{}, fmt.Errorf("unknown document kind %q", kind)
	}
	return t, nil
}

// documentStore implements store.DocumentStore using PostgreSQL.
type documentStore struct {
	tx pgx.Tx
}

// MaxSequence scans the tenant's document numbers for the kind. Rows that do not match the
// expected format are counted rather than skipped so corruption is reported instead of reused.
func (s *documentStore) MaxSequence(ctx context.Context, kind models.DocumentKind, tenantID uuid.UUID) (int, error) {
	t, err := tableFor(kind)
	if err != nil {
		return 0, err
	}

	prefix := regexp.QuoteMeta(kind.Prefix())
	query := fmt.Sprintf(`
		SELECT
			count(*) FILTER (WHERE %[1]s !~ $2),
			COALESCE(MAX(CAST(substring(%[1]s FROM $3) AS integer)) FILTER (WHERE %[1]s ~ $2), 0)
		FROM %[2]s
		WHERE tenant_id = $1
	`, t.numberCol, t.table)

	var malformed, highest int
	err = s.tx.QueryRow(ctx, query, tenantID, "^"+prefix+"-[0-9]+$", "^"+prefix+"-([0-9]+)$").Scan(&malformed, &highest)
	if err != nil {
		if pgErrorCode(err) == pgerrcode.NumericValueOutOfRange {
			return 0, fmt.Errorf("%s sequence out of range: %w", kind, store.ErrMalformedNumber)
		}
		return 0, fmt.Errorf("failed to scan %s numbers: %w", kind, mapPostgresError(err))
	}

	if malformed > 0 {
		return 0, fmt.Errorf("%d %s numbers do not match %s-NNNNN: %w", malformed, kind, kind.Prefix(), store.ErrMalformedNumber)
	}

	return highest, nil
}

// CreateOrder inserts an order.
func (s *documentStore) CreateOrder(ctx context.Context, o *models.Order) error {
	query := `
		INSERT INTO orders (
			order_id, tenant_id, order_number, customer_name, customer_phone, customer_email,
			items, total_amount, currency, payment_link, payment_notes, status, notes, visit_id,
			created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15
		)
	`

	_, err := s.tx.Exec(ctx, query,
		o.DocumentID,
		o.TenantID,
		o.Number,
		o.Customer.Name,
		o.Customer.Phone,
		o.Customer.Email,
		o.Items,
		o.TotalAmount,
		o.Currency,
		o.PaymentLink,
		o.PaymentNotes,
		o.Status,
		o.Notes,
		o.VisitID,
		o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create order: %w", mapPostgresError(err))
	}

	logCreated(models.KindOrder, &o.DocumentMeta)
	return nil
}

// CreateDonation inserts a donation.
func (s *documentStore) CreateDonation(ctx context.Context, d *models.Donation) error {
	query := `
		INSERT INTO donations (
			donation_id, tenant_id, donation_number, donor_name, donor_phone, donor_email,
			amount, currency, campaign, receipt_requested, payment_link, payment_notes, status,
			notes, visit_id, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16
		)
	`

	_, err := s.tx.Exec(ctx, query,
		d.DocumentID,
		d.TenantID,
		d.Number,
		d.Donor.Name,
		d.Donor.Phone,
		d.Donor.Email,
		d.Amount,
		d.Currency,
		d.Campaign,
		d.ReceiptRequested,
		d.PaymentLink,
		d.PaymentNotes,
		d.Status,
		d.Notes,
		d.VisitID,
		d.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create donation: %w", mapPostgresError(err))
	}

	logCreated(models.KindDonation, &d.DocumentMeta)
	return nil
}

// CreatePledge inserts a pledge.
func (s *documentStore) CreatePledge(ctx context.Context, p *models.Pledge) error {
	query := `
		INSERT INTO pledges (
			pledge_id, tenant_id, pledge_number, pledgor_name, pledgor_phone, pledgor_email,
			amount, currency, target_date, fulfilled_amount, payment_link, payment_notes, status,
			notes, visit_id, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16
		)
	`

	_, err := s.tx.Exec(ctx, query,
		p.DocumentID,
		p.TenantID,
		p.Number,
		p.Pledgor.Name,
		p.Pledgor.Phone,
		p.Pledgor.Email,
		p.Amount,
		p.Currency,
		p.TargetDate,
		p.FulfilledAmount,
		p.PaymentLink,
		p.PaymentNotes,
		p.Status,
		p.Notes,
		p.VisitID,
		p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create pledge: %w", mapPostgresError(err))
	}

	logCreated(models.KindPledge, &p.DocumentMeta)
	return nil
}

func logCreated(kind models.DocumentKind, meta *models.DocumentMeta) {
	log.Debug().
		Str("kind", string(kind)).
		Str("document_id", meta.DocumentID.String()).
		Str("tenant_id", meta.TenantID.String()).
		Str("number", meta.Number).
		Msg("Created document")
}

func (t documentTable) summarySelect() string {
	return fmt.Sprintf(`
		SELECT %s, %s, %s, %s, %s, currency, status, %s, created_at, updated_at
		FROM %s
	`, t.idCol, t.numberCol, t.nameCol, t.phoneCol, t.amountCol, t.extraCols, t.table)
}

// Get returns the summary of a visible document.
func (s *documentStore) Get(ctx context.Context, kind models.DocumentKind, documentID uuid.UUID) (*models.DocumentSummary, error) {
	t, err := tableFor(kind)
	if err != nil {
		return nil, err
	}

	query := t.summarySelect() + fmt.Sprintf(` WHERE %s = $1`, t.idCol)

	sum, err := scanSummary(kind, s.tx.QueryRow(ctx, query, documentID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrDocumentNotFound
		}
		return nil, fmt.Errorf("failed to get %s: %w", kind, mapPostgresError(err))
	}
	return sum, nil
}

// List returns visible documents of the kind, newest first.
func (s *documentStore) List(ctx context.Context, kind models.DocumentKind, filter store.ListFilter) ([]*models.DocumentSummary, error) {
	t, err := tableFor(kind)
	if err != nil {
		return nil, err
	}

	query := t.summarySelect() + fmt.Sprintf(`
		WHERE ($1::text IS NULL OR status = $1)
		ORDER BY created_at DESC, %s DESC
		LIMIT $2 OFFSET $3
	`, t.numberCol)

	var status *string
	if filter.Status != nil {
		v := string(*filter.Status)
		status = &v
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.tx.Query(ctx, query, status, limit, filter.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", t.table, mapPostgresError(err))
	}
	defer rows.Close()

	result := []*models.DocumentSummary{}
	for rows.Next() {
		sum, err := scanSummary(kind, rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", kind, err)
		}
		result = append(result, sum)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s: %w", t.table, mapPostgresError(err))
	}

	return result, nil
}

// UpdateStatus moves a visible document from one status to another. A concurrent writer holding
// the row makes this wait, after which the status predicate is re-checked against its commit.
func (s *documentStore) UpdateStatus(ctx context.Context, kind models.DocumentKind, documentID uuid.UUID, from, to models.DocumentStatus) error {
	t, err := tableFor(kind)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`UPDATE %s SET status = $3, updated_at = now() WHERE %s = $1 AND status = $2`, t.table, t.idCol)

	result, err := s.tx.Exec(ctx, query, documentID, from, to)
	if err != nil {
		return fmt.Errorf("failed to update %s status: %w", kind, mapPostgresError(err))
	}

	if result.RowsAffected() == 0 {
		var exists bool
		err := s.tx.QueryRow(ctx, fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE %s = $1)`, t.table, t.idCol), documentID).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to check %s: %w", kind, mapPostgresError(err))
		}
		if !exists {
			return store.ErrDocumentNotFound
		}
		return store.ErrDocumentStatusChanged
	}

	log.Debug().
		Str("kind", string(kind)).
		Str("document_id", documentID.String()).
		Str("from", string(from)).
		Str("to", string(to)).
		Msg("Updated document status")

	return nil
}

func scanSummary(kind models.DocumentKind, row pgx.Row) (*models.DocumentSummary, error) {
	sum := models.DocumentSummary{Kind: kind}
	err := row.Scan(
		&sum.DocumentID,
		&sum.Number,
		&sum.ContactName,
		&sum.ContactPhone,
		&sum.Amount,
		&sum.Currency,
		&sum.Status,
		&sum.Campaign,
		&sum.TargetDate,
		&sum.CreatedAt,
		&sum.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &sum, nil
}
