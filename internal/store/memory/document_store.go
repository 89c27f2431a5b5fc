package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/wolfeidau/storefront/internal/models"
	"github.com/wolfeidau/storefront/internal/store"
)

// documentStore implements store.DocumentStore. Documents are kept per kind as *models.Order,
// *models.Donation or *models.Pledge values.
type documentStore struct {
	tx *tx
}

func (s *documentStore) MaxSequence(ctx context.Context, kind models.DocumentKind, tenantID uuid.UUID) (int, error) {
	s.tx.s.mu.Lock()
	defer s.tx.s.mu.Unlock()

	prefix := kind.Prefix() + "-"
	highest := 0
	for _, doc := range s.tx.s.documents[kind] {
		meta := metaOf(doc)
		if meta.TenantID != tenantID || !s.tx.tenantVisible(meta.TenantID) {
			continue
		}

		seq, err := parseSequence(meta.Number, prefix)
		if err != nil {
			return 0, err
		}
		highest = max(highest, seq)
	}

	return highest, nil
}

func parseSequence(number, prefix string) (int, error) {
	suffix, ok := strings.CutPrefix(number, prefix)
	if !ok || suffix == "" {
		return 0, fmt.Errorf("%q: %w", number, store.ErrMalformedNumber)
	}
	for _, r := range suffix {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("%q: %w", number, store.ErrMalformedNumber)
		}
	}
	seq, err := strconv.Atoi(suffix)
	if err != nil {
		return 0, fmt.Errorf("%q: %w", number, store.ErrMalformedNumber)
	}
	return seq, nil
}

func (s *documentStore) CreateOrder(ctx context.Context, o *models.Order) error {
	clone := *o
	clone.Items = slices.Clone(o.Items)
	return s.insert(models.KindOrder, &clone.DocumentMeta, &clone)
}

func (s *documentStore) CreateDonation(ctx context.Context, d *models.Donation) error {
	clone := *d
	return s.insert(models.KindDonation, &clone.DocumentMeta, &clone)
}

func (s *documentStore) CreatePledge(ctx context.Context, p *models.Pledge) error {
	clone := *p
	return s.insert(models.KindPledge, &clone.DocumentMeta, &clone)
}

func (s *documentStore) insert(kind models.DocumentKind, meta *models.DocumentMeta, doc any) error {
	s.tx.s.mu.Lock()
	defer s.tx.s.mu.Unlock()

	if err := s.tx.checkWrite(meta.TenantID); err != nil {
		return err
	}

	for _, existing := range s.tx.s.documents[kind] {
		m := metaOf(existing)
		if m.TenantID == meta.TenantID && m.Number == meta.Number {
			return store.ErrDocumentNumberConflict
		}
	}

	if meta.VisitID != nil {
		if _, ok := s.tx.s.visits[*meta.VisitID]; !ok {
			return store.ErrVisitNotFound
		}
	}

	id := meta.DocumentID
	s.tx.s.documents[kind][id] = doc
	s.tx.record(func() { delete(s.tx.s.documents[kind], id) })

	return nil
}

func (s *documentStore) Get(ctx context.Context, kind models.DocumentKind, documentID uuid.UUID) (*models.DocumentSummary, error) {
	s.tx.s.mu.Lock()
	defer s.tx.s.mu.Unlock()

	doc, ok := s.tx.s.documents[kind][documentID]
	if !ok || !s.tx.tenantVisible(metaOf(doc).TenantID) {
		return nil, store.ErrDocumentNotFound
	}
	return summarize(kind, doc), nil
}

func (s *documentStore) List(ctx context.Context, kind models.DocumentKind, filter store.ListFilter) ([]*models.DocumentSummary, error) {
	s.tx.s.mu.Lock()
	defer s.tx.s.mu.Unlock()

	var result []*models.DocumentSummary
	for _, doc := range s.tx.s.documents[kind] {
		meta := metaOf(doc)
		if !s.tx.tenantVisible(meta.TenantID) {
			continue
		}
		if filter.Status != nil && meta.Status != *filter.Status {
			continue
		}
		result = append(result, summarize(kind, doc))
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].Number > result[j].Number
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	if filter.Offset >= len(result) {
		return []*models.DocumentSummary{}, nil
	}
	result = result[filter.Offset:]
	if filter.Limit > 0 && filter.Limit < len(result) {
		result = result[:filter.Limit]
	}
	return result, nil
}

func (s *documentStore) UpdateStatus(ctx context.Context, kind models.DocumentKind, documentID uuid.UUID, from, to models.DocumentStatus) error {
	s.tx.s.mu.Lock()
	defer s.tx.s.mu.Unlock()

	doc, ok := s.tx.s.documents[kind][documentID]
	if !ok || !s.tx.tenantVisible(metaOf(doc).TenantID) {
		return store.ErrDocumentNotFound
	}

	meta := metaOf(doc)
	if meta.Status != from {
		return store.ErrDocumentStatusChanged
	}

	prevStatus, prevUpdated := meta.Status, meta.UpdatedAt
	now := time.Now().UTC()
	meta.Status = to
	meta.UpdatedAt = &now
	s.tx.record(func() {
		meta.Status = prevStatus
		meta.UpdatedAt = prevUpdated
	})

	return nil
}

func metaOf(doc any) *models.DocumentMeta {
	switch d := doc.(type) {
	case *models.Order:
		return &d.DocumentMeta
	case *models.Donation:
		return &d.DocumentMeta
	case *models.Pledge:
		return &d.DocumentMeta
	default:
		panic(fmt.Sprintf("unexpected document type %T", doc))
	}
}

func summarize(kind models.DocumentKind, doc any) *models.DocumentSummary {
	meta := metaOf(doc)
	sum := &models.DocumentSummary{
		DocumentID: meta.DocumentID,
		Kind:       kind,
		Number:     meta.Number,
		Currency:   meta.Currency,
		Status:     meta.Status,
		CreatedAt:  meta.CreatedAt,
		UpdatedAt:  meta.UpdatedAt,
	}

	switch d := doc.(type) {
	case *models.Order:
		sum.ContactName, sum.ContactPhone = d.Customer.Name, d.Customer.Phone
		sum.Amount = d.TotalAmount
	case *models.Donation:
		sum.ContactName, sum.ContactPhone = d.Donor.Name, d.Donor.Phone
		sum.Amount = d.Amount
		sum.Campaign = d.Campaign
	case *models.Pledge:
		sum.ContactName, sum.ContactPhone = d.Pledgor.Name, d.Pledgor.Phone
		sum.Amount = d.Amount
		target := d.TargetDate
		sum.TargetDate = &target
	}

	return sum
}
