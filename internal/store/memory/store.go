// Package memory provides an in-memory store for tests and local development.
//
// It simulates the parts of Postgres the application relies on: row-level isolation keyed to the
// transaction's security context, transaction-scoped advisory locks, unique constraints and
// rollback. Writes are applied immediately and undone on rollback, so concurrent transactions are
// only isolated from each other by advisory locks. Data is lost on restart.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/wolfeidau/storefront/internal/models"
	"github.com/wolfeidau/storefront/internal/store"
)

// Store implements store.Store using in-memory storage.
type Store struct {
	mu sync.Mutex

	principals  map[uuid.UUID]*models.Principal  // principal_id -> Principal
	plans       map[string]*models.Plan          // name -> Plan
	tenants     map[uuid.UUID]*models.Tenant     // tenant_id -> Tenant
	memberships map[uuid.UUID]*models.Membership // membership_id -> Membership
	documents   map[models.DocumentKind]map[uuid.UUID]any
	visits      map[uuid.UUID]*models.Visit    // visit_id -> Visit
	events      map[uuid.UUID]*models.UTMEvent // event_id -> UTMEvent

	locksMu sync.Mutex
	locks   map[string]chan struct{} // advisory lock key -> semaphore
}

// New creates an empty in-memory store.
func New() *Store {
	s := &Store{
		principals:  make(map[uuid.UUID]*models.Principal),
		plans:       make(map[string]*models.Plan),
		tenants:     make(map[uuid.UUID]*models.Tenant),
		memberships: make(map[uuid.UUID]*models.Membership),
		documents:   make(map[models.DocumentKind]map[uuid.UUID]any),
		visits:      make(map[uuid.UUID]*models.Visit),
		events:      make(map[uuid.UUID]*models.UTMEvent),
		locks:       make(map[string]chan struct{}),
	}
	for _, k := range models.DocumentKinds {
		s.documents[k] = make(map[uuid.UUID]any)
	}
	return s
}

// InTx runs fn in a transaction. Writes made by fn are undone if it returns an error or panics.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) (err error) {
	t := &tx{s: s}
	defer t.releaseLocks()

	defer func() {
		if p := recover(); p != nil {
			t.rollback()
			panic(p)
		}
	}()

	if err := fn(ctx, t); err != nil {
		t.rollback()
		return err
	}

	return nil
}

// Ping always succeeds.
func (s *Store) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op.
func (s *Store) Close() {}

func (s *Store) lockFor(key string) chan struct{} {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()

	ch, ok := s.locks[key]
	if !ok {
		ch = make(chan struct{}, 1)
		s.locks[key] = ch
	}
	return ch
}

// tx implements store.Tx. Each store view locks Store.mu for the duration of a single call.
type tx struct {
	s   *Store
	sec models.SecurityContext

	undo []func()
	held map[string]chan struct{}
}

func (t *tx) Security() models.SecurityContext {
	return t.sec
}

func (t *tx) SetPrincipal(ctx context.Context, principalID uuid.UUID) error {
	t.sec.PrincipalID = principalID
	return nil
}

func (t *tx) SetTenant(ctx context.Context, tenantID uuid.UUID) error {
	t.sec.TenantID = tenantID
	return nil
}

func (t *tx) AdvisoryLock(ctx context.Context, key string) error {
	if _, ok := t.held[key]; ok {
		return nil
	}

	ch := t.s.lockFor(key)
	select {
	case ch <- struct{}{}:
	case <-ctx.Done():
		return fmt.Errorf("failed to acquire advisory lock: %w", ctx.Err())
	}

	if t.held == nil {
		t.held = make(map[string]chan struct{})
	}
	t.held[key] = ch
	return nil
}

func (t *tx) Principals() store.PrincipalStore   { return &principalStore{tx: t} }
func (t *tx) Plans() store.PlanStore             { return &planStore{tx: t} }
func (t *tx) Tenants() store.TenantStore         { return &tenantStore{tx: t} }
func (t *tx) Memberships() store.MembershipStore { return &membershipStore{tx: t} }
func (t *tx) Documents() store.DocumentStore     { return &documentStore{tx: t} }
func (t *tx) Visits() store.VisitStore           { return &visitStore{tx: t} }

// record registers an undo step. Callers must hold Store.mu.
func (t *tx) record(fn func()) {
	t.undo = append(t.undo, fn)
}

func (t *tx) rollback() {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

func (t *tx) releaseLocks() {
	for key, ch := range t.held {
		<-ch
		delete(t.held, key)
	}
}

// tenantVisible mirrors the tenant-only row policy: the row is visible only when a tenant is
// bound and matches.
func (t *tx) tenantVisible(tenantID uuid.UUID) bool {
	return t.sec.HasTenant() && tenantID == t.sec.TenantID
}

// membershipVisible mirrors the membership read policy: rows of the bound tenant when a principal
// is also bound, or the bound principal's own rows in any tenant.
func (t *tx) membershipVisible(m *models.Membership) bool {
	if t.sec.HasPrincipal() && t.tenantVisible(m.TenantID) {
		return true
	}
	return t.sec.HasPrincipal() && m.PrincipalID != nil && *m.PrincipalID == t.sec.PrincipalID
}

// checkWrite mirrors the insert/update/delete policy.
func (t *tx) checkWrite(tenantID uuid.UUID) error {
	if !t.tenantVisible(tenantID) {
		return fmt.Errorf("write to tenant %s with bound tenant %s: %w", tenantID, t.sec.TenantID, store.ErrIsolationViolation)
	}
	return nil
}
