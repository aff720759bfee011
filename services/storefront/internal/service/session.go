package service

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/akaushop/storefront/services/storefront/internal/domain"
)

// NoticeKind groups notices for display.
type NoticeKind string

const (
	NoticeStock    NoticeKind = "stock"
	NoticeShipping NoticeKind = "shipping"
)

// Notice is a one-shot message for the buyer, drained when read.
type Notice struct {
	Kind      NoticeKind `json:"kind"`
	Message   string     `json:"message"`
	ProductID int64      `json:"product_id,omitempty"`
}

// CheckoutPhase is the state of the checkout draft.
type CheckoutPhase string

const (
	PhaseEditing    CheckoutPhase = "editing"
	PhaseValidating CheckoutPhase = "validating"
	PhaseSubmitting CheckoutPhase = "submitting"
	PhaseSucceeded  CheckoutPhase = "succeeded"
)

// ticket orders catalog fetches issued by one session.
type ticket uint64

// Session is everything one browser tab owns: the cart, the last catalog
// snapshot, the checkout draft and the admin unlock. All fields behind mu
// are only touched through Session methods, and mu is never held across a
// network call.
type Session struct {
	id string

	// life is cancelled by Close; fetches bound to it stop with the session.
	life   context.Context
	cancel context.CancelFunc

	// submitting guards against a second in-flight order submission.
	submitting atomic.Bool

	mu       sync.Mutex
	closed   bool
	lastSeen time.Time

	cart    *domain.Cart
	catalog domain.Catalog

	seq             ticket
	listIssued      ticket
	productIssued   map[int64]ticket
	productRevision map[int64]ticket

	shippingBlocked bool
	// methodConfirmed is set once the buyer picked the selected method or a
	// resolved cart allowed it. Only a confirmed method is announced when it
	// is dropped.
	methodConfirmed bool
	notices         []Notice

	draft       domain.Draft
	phase       CheckoutPhase
	lastFailure *domain.SubmitFailure
	lastResult  *domain.OrderResult

	admin domain.AdminSession
}

// NewSession creates an empty session.
func NewSession(id string, now time.Time) *Session {
	life, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:              id,
		life:            life,
		cancel:          cancel,
		lastSeen:        now,
		cart:            domain.NewCart(),
		catalog:         domain.Catalog{},
		productIssued:   make(map[int64]ticket),
		productRevision: make(map[int64]ticket),
		phase:           PhaseEditing,
	}
	s.reconcileShippingLocked()
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Close cancels in-flight fetches and makes later commits no-ops.
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cancel()
}

// Closed reports whether Close has been called.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// bind derives a context that ends when either parent or the session does.
func (s *Session) bind(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	stop := context.AfterFunc(s.life, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// ---------------------------------------------------------------------------
// Catalog snapshot
// ---------------------------------------------------------------------------

func (s *Session) beginListFetch() ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	s.listIssued = s.seq
	return s.seq
}

func (s *Session) beginProductFetch(id int64) ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	s.productIssued[id] = s.seq
	return s.seq
}

// commitList replaces the snapshot with products unless a newer list fetch
// was issued. Products refreshed individually after t keep their newer data.
func (s *Session) commitList(t ticket, products []domain.Product) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || t != s.listIssued {
		return false
	}

	next := make(domain.Catalog, len(products))
	for id, p := range s.catalog {
		if s.productRevision[id] > t {
			next[id] = p
		}
	}
	for _, p := range products {
		if s.productRevision[p.ID] > t {
			continue
		}
		next[p.ID] = p
		s.productRevision[p.ID] = t
	}
	for id := range s.catalog {
		if _, kept := next[id]; !kept {
			s.productRevision[id] = t
		}
	}
	s.catalog = next
	s.afterCatalogChangeLocked()
	return true
}

// commitProduct stores p, or forgets the product when p is nil, unless a
// newer fetch covering the same product was issued or committed.
func (s *Session) commitProduct(t ticket, id int64, p *domain.Product) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || t != s.productIssued[id] || s.productRevision[id] > t {
		return false
	}
	if p != nil {
		s.catalog = s.catalog.With(*p)
	} else if _, ok := s.catalog[id]; ok {
		next := s.catalog.With()
		delete(next, id)
		s.catalog = next
	}
	s.productRevision[id] = t
	s.afterCatalogChangeLocked()
	return true
}

func (s *Session) lookup(id int64) (domain.Product, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.catalog.Lookup(id)
}

func (s *Session) productName(id int64) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.catalog.Lookup(id); ok {
		return p.Name
	}
	if l, ok := s.cart.Line(id); ok {
		return l.Name
	}
	return ""
}

func (s *Session) cartProductIDs() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	lines := s.cart.Lines()
	ids := make([]int64, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.ProductID)
	}
	return ids
}

// afterCatalogChangeLocked re-derives shipping after a catalog change. Lines
// above freshly known stock are left in place and reported as over stock so
// the buyer decides how to reduce them.
func (s *Session) afterCatalogChangeLocked() {
	s.reconcileShippingLocked()
}

// ---------------------------------------------------------------------------
// Cart
// ---------------------------------------------------------------------------

func (s *Session) pushNoticeLocked(n Notice) {
	s.notices = append(s.notices, n)
}

func (s *Session) stockNoticeLocked(id int64, limit int) {
	name := ""
	if l, ok := s.cart.Line(id); ok {
		name = l.Name
	} else if p, ok := s.catalog.Lookup(id); ok {
		name = p.Name
	}
	if name == "" {
		name = "product " + strconv.FormatInt(id, 10)
	}
	s.pushNoticeLocked(Notice{
		Kind:      NoticeStock,
		ProductID: id,
		Message:   fmt.Sprintf("Only %d of %q available.", limit, name),
	})
}

func recordMutation(op string, m domain.Mutation) {
	cartMutations.WithLabelValues(op, strconv.FormatBool(m.Clamped)).Inc()
}

// addItem puts p in the cart, bounded by p's stock.
func (s *Session) addItem(p domain.Product, qty int) (domain.Mutation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bound := p.Bound()
	m, err := s.cart.Add(domain.CartItem{
		ProductID: p.ID,
		Name:      p.Name,
		UnitPrice: p.Price,
		Quantity:  qty,
	}, bound)
	if err != nil {
		return m, err
	}
	if limit, ok := bound.Limit(); ok && m.Clamped {
		s.stockNoticeLocked(p.ID, limit)
	}
	recordMutation("add", m)
	s.reconcileShippingLocked()
	return m, nil
}

func (s *Session) increment(id int64) (domain.Mutation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.cart.Line(id); !ok {
		return domain.Mutation{ProductID: id}, domain.ErrLineNotFound
	}
	bound, avail := domain.BoundFor(s.catalog, id, s.cart.Quantity(id))
	m := s.cart.Increment(id, bound)
	if m.Clamped {
		if avail == domain.AvailabilityUnknown {
			s.pushNoticeLocked(Notice{
				Kind:      NoticeStock,
				ProductID: id,
				Message:   "Availability for this item is being checked. Try again in a moment.",
			})
		} else if limit, ok := bound.Limit(); ok {
			s.stockNoticeLocked(id, limit)
		}
	}
	recordMutation("increment", m)
	s.reconcileShippingLocked()
	return m, nil
}

func (s *Session) decrement(id int64) (domain.Mutation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.cart.Line(id); !ok {
		return domain.Mutation{ProductID: id}, domain.ErrLineNotFound
	}
	m := s.cart.Decrement(id)
	recordMutation("decrement", m)
	s.reconcileShippingLocked()
	return m, nil
}

func (s *Session) setQuantity(id int64, qty int) (domain.Mutation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bound, _ := domain.BoundFor(s.catalog, id, s.cart.Quantity(id))
	m, err := s.cart.SetQuantity(id, qty, bound)
	if err != nil {
		return m, err
	}
	if limit, ok := bound.Limit(); ok && m.Clamped {
		s.stockNoticeLocked(id, limit)
	}
	recordMutation("set", m)
	s.reconcileShippingLocked()
	return m, nil
}

func (s *Session) removeItem(id int64) (domain.Mutation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := s.cart.Remove(id)
	if !m.Removed() {
		return m, domain.ErrLineNotFound
	}
	recordMutation("remove", m)
	s.reconcileShippingLocked()
	return m, nil
}

func (s *Session) clearCart() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cart.Clear()
	s.reconcileShippingLocked()
}

// ---------------------------------------------------------------------------
// Shipping
// ---------------------------------------------------------------------------

// reconcileShippingLocked re-checks the selected method against the current
// cart and catalog and emits a notice when it had to switch or block.
func (s *Session) reconcileShippingLocked() domain.ShippingResolution {
	res := domain.ResolveShipping(s.cart.Lines(), s.catalog)
	sel := domain.Reselect(s.draft.ShippingMethod, s.methodConfirmed, res)
	if sel.Changed {
		s.draft.ShippingMethod = sel.Method
		s.methodConfirmed = false
		if sel.Notice != "" {
			s.pushNoticeLocked(Notice{Kind: NoticeShipping, Message: sel.Notice})
		}
	}
	if res.Status == domain.ResolutionResolved {
		s.methodConfirmed = true
	}
	if sel.Blocked && !s.shippingBlocked {
		s.pushNoticeLocked(Notice{Kind: NoticeShipping, Message: sel.Notice})
	}
	s.shippingBlocked = sel.Blocked
	return res
}

// ---------------------------------------------------------------------------
// Snapshots
// ---------------------------------------------------------------------------

// CartView is the cart as rendered for the buyer.
type CartView struct {
	Lines           []domain.LineView         `json:"lines"`
	Subtotal        int64                     `json:"subtotal"`
	TotalItems      int                       `json:"total_items"`
	Shipping        domain.ShippingResolution `json:"shipping"`
	SelectedMethod  domain.ShippingMethod     `json:"selected_method,omitempty"`
	ShippingBlocked bool                      `json:"shipping_blocked"`
	Quote           domain.Quote              `json:"quote"`
	Notices         []Notice                  `json:"notices"`
}

func (s *Session) cartViewLocked(drain bool) CartView {
	lines := s.cart.Lines()
	res := domain.ResolveShipping(lines, s.catalog)
	v := CartView{
		Lines:           domain.ReconcileLines(lines, s.catalog),
		Subtotal:        s.cart.Subtotal(),
		TotalItems:      s.cart.TotalItems(),
		Shipping:        res,
		SelectedMethod:  s.draft.ShippingMethod,
		ShippingBlocked: s.shippingBlocked,
		Quote:           domain.NewQuote(lines, res, s.draft.ShippingMethod),
		Notices:         []Notice{},
	}
	if drain && len(s.notices) > 0 {
		v.Notices = s.notices
		s.notices = nil
	}
	return v
}

// Cart returns the cart view and drains pending notices.
func (s *Session) Cart() CartView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cartViewLocked(true)
}

// checkoutSnapshot captures what validation and submission need.
type checkoutSnapshot struct {
	draft domain.Draft
	state domain.CheckoutState
}

func (s *Session) snapshotLocked(requirePhone bool) checkoutSnapshot {
	lines := s.cart.Lines()
	return checkoutSnapshot{
		draft: s.draft,
		state: domain.CheckoutState{
			Lines:        lines,
			Catalog:      s.catalog,
			Shipping:     domain.ResolveShipping(lines, s.catalog),
			RequirePhone: requirePhone,
		},
	}
}

// ---------------------------------------------------------------------------
// Admin
// ---------------------------------------------------------------------------

func (s *Session) adminSession() domain.AdminSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.admin
}

func (s *Session) setAdmin(a domain.AdminSession) {
	s.mu.Lock()
	s.admin = a
	s.mu.Unlock()
}

// invalidateAdmin drops the admin unlock if it still holds token.
func (s *Session) invalidateAdmin(token string) {
	s.mu.Lock()
	if s.admin.Token == token {
		s.admin = domain.AdminSession{}
	}
	s.mu.Unlock()
}
