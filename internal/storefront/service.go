package storefront

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/drstein77/storefront/internal/apiclient"
	"github.com/drstein77/storefront/internal/cart"
	"github.com/drstein77/storefront/internal/cartsync"
	"github.com/drstein77/storefront/internal/catalog"
	"github.com/drstein77/storefront/internal/models"
	"github.com/drstein77/storefront/internal/notify"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Log interface {
	Info(string, ...zap.Field)
	Error(string, ...zap.Field)
}

// API is the part of the remote API client used outside the catalog.
type API interface {
	Cart(ctx context.Context, token string) ([]models.CartEntry, error)
	SetQuantity(ctx context.Context, token, productID string, qty int) ([]models.CartEntry, error)
	Register(ctx context.Context, creds models.Credentials) error
	Login(ctx context.Context, creds models.Credentials) (*models.LoginResult, error)
}

type Catalog interface {
	Products(ctx context.Context) ([]models.Product, error)
	Search(ctx context.Context, query string) ([]models.Product, error)
}

type Sessions interface {
	Create(ctx context.Context, token, username string) (models.Session, error)
	Delete(ctx context.Context, id string) error
}

// Source tells where an add-to-cart action came from.
type Source string

const (
	FromProductCard Source = "productCard"
	FromCart        Source = "cart"
)

// CartView is the cart sidebar or the checkout summary.
type CartView struct {
	Items    []models.CartLineItem
	Orphans  []models.CartEntry
	Total    decimal.Decimal
	Summary  models.OrderSummary
	ReadOnly bool
}

func (v *CartView) Empty() bool {
	return v == nil || len(v.Items) == 0
}

type ProductsPage struct {
	Session       *models.Session
	Query         string
	Products      []models.Product
	NoResults     bool
	Cart          *CartView
	Notifications notify.Notifications
}

type Config struct {
	SearchDebounce time.Duration
	RequestTimeout time.Duration
	CartMode       cartsync.Mode
}

type Service struct {
	api      API
	catalog  Catalog
	sessions Sessions
	gate     *cartsync.Gate
	cfg      Config
	log      Log

	mx       sync.Mutex
	searches map[string]*LiveSearch
}

func NewService(api API, cat Catalog, sessions Sessions, cfg Config, log Log) *Service {
	return &Service{
		api:      api,
		catalog:  cat,
		sessions: sessions,
		gate:     cartsync.NewGate(cfg.CartMode),
		cfg:      cfg,
		log:      log,
		searches: make(map[string]*LiveSearch),
	}
}

// Products builds the product listing. Failures become notifications on the page.
func (s *Service) Products(ctx context.Context, sess *models.Session, query string) *ProductsPage {
	page := &ProductsPage{Session: sess, Query: query}

	products, err := s.catalog.Search(ctx, query)
	switch {
	case errors.Is(err, catalog.ErrNoResults):
		page.NoResults = true
	case err != nil:
		s.log.Error("cannot load products", zap.String("query", query), zap.Error(err))
		page.Notifications.Error(MsgBackendUnreachable)
	default:
		page.Products = products
	}

	if !sess.Authenticated() {
		return page
	}

	view, err := s.cartView(ctx, sess, false)
	if err != nil {
		s.log.Error("cannot load cart", zap.String("user", sess.Username), zap.Error(err))
		if err = s.expire(ctx, sess, err); errors.Is(err, ErrSessionExpired) {
			page.Notifications = append(page.Notifications, Notice(err))
		} else {
			page.Notifications.Error(cartError(err))
		}
		return page
	}
	if len(view.Orphans) > 0 {
		page.Notifications.Add(notify.Info, fmt.Sprintf("%d item(s) in your cart are no longer available.", len(view.Orphans)))
	}
	page.Cart = view
	return page
}

// AddToCart sets the cart quantity of productID. From the product card a
// product that is already in the cart is refused.
func (s *Service) AddToCart(ctx context.Context, sess *models.Session, from Source, productID string, qty int) (*CartView, error) {
	if !sess.Authenticated() {
		return nil, ErrLoginRequired
	}

	if from == FromProductCard {
		current, err := s.cartView(ctx, sess, false)
		if err != nil {
			return nil, s.expire(ctx, sess, err)
		}
		if cart.Contains(current.Items, productID) {
			return current, ErrAlreadyInCart
		}
	}

	var entries []models.CartEntry
	err := s.gate.Do(ctx, sess.ID, func(ctx context.Context) error {
		var err error
		entries, err = s.api.SetQuantity(ctx, sess.Token, productID, qty)
		return err
	})
	if err != nil {
		s.log.Error("cannot update cart", zap.String("product", productID), zap.Int("qty", qty), zap.Error(err))
		return nil, s.expire(ctx, sess, err)
	}

	return s.join(ctx, entries, false)
}

// ChangeQuantity applies a quantity stepper press. newQty is not clamped.
func (s *Service) ChangeQuantity(ctx context.Context, sess *models.Session, dir cart.Direction, productID string, newQty int) (*CartView, error) {
	s.log.Info("quantity change",
		zap.String("direction", string(dir)),
		zap.String("product", productID),
		zap.Int("qty", newQty),
	)
	return s.AddToCart(ctx, sess, FromCart, productID, newQty)
}

// Checkout returns the read-only cart with its order summary.
func (s *Service) Checkout(ctx context.Context, sess *models.Session) (*CartView, error) {
	if !sess.Authenticated() {
		return nil, ErrLoginRequired
	}
	view, err := s.cartView(ctx, sess, true)
	if err != nil {
		return nil, s.expire(ctx, sess, err)
	}
	return view, nil
}

// expire ends the session when the API rejected its token and reports
// ErrSessionExpired. Other errors are returned unchanged.
func (s *Service) expire(ctx context.Context, sess *models.Session, err error) error {
	if !errors.Is(err, apiclient.ErrUnauthorized) {
		return err
	}

	s.log.Info("session token rejected", zap.String("user", sess.Username))
	s.dropSearch(sess.ID)
	if derr := s.sessions.Delete(ctx, sess.ID); derr != nil {
		s.log.Error("cannot delete expired session", zap.Error(derr))
	}
	return fmt.Errorf("%w: %v", ErrSessionExpired, err)
}

func (s *Service) cartView(ctx context.Context, sess *models.Session, readOnly bool) (*CartView, error) {
	entries, err := s.api.Cart(ctx, sess.Token)
	if err != nil {
		return nil, err
	}
	return s.join(ctx, entries, readOnly)
}

// join always uses the full catalog so a search does not hide cart items.
func (s *Service) join(ctx context.Context, entries []models.CartEntry, readOnly bool) (*CartView, error) {
	products, err := s.catalog.Products(ctx)
	if err != nil {
		return nil, err
	}

	res := cart.Join(entries, products)
	if len(res.Orphans) > 0 {
		s.log.Info("cart entries without catalog product", zap.Int("count", len(res.Orphans)))
	}

	return &CartView{
		Items:    res.Items,
		Orphans:  res.Orphans,
		Total:    cart.TotalValue(res.Items),
		Summary:  cart.Summary(res.Items),
		ReadOnly: readOnly,
	}, nil
}
