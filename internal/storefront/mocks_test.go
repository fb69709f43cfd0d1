package storefront

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/drstein77/storefront/internal/cartsync"
	"github.com/drstein77/storefront/internal/catalog"
	"github.com/drstein77/storefront/internal/logger"
	"github.com/drstein77/storefront/internal/models"
	"github.com/shopspring/decimal"
)

// APIMock implements API for testing
type APIMock struct {
	mx          sync.Mutex
	entries     []models.CartEntry
	cartErr     error
	setErr      error
	registerErr error
	login       *models.LoginResult
	loginErr    error
	setCalls    []models.CartEntry
	registered  []models.Credentials
	setDelay    time.Duration
}

func (a *APIMock) Cart(ctx context.Context, token string) ([]models.CartEntry, error) {
	a.mx.Lock()
	defer a.mx.Unlock()
	if a.cartErr != nil {
		return nil, a.cartErr
	}
	return append([]models.CartEntry(nil), a.entries...), nil
}

func (a *APIMock) SetQuantity(ctx context.Context, token, productID string, qty int) ([]models.CartEntry, error) {
	time.Sleep(a.setDelay)

	a.mx.Lock()
	defer a.mx.Unlock()
	a.setCalls = append(a.setCalls, models.CartEntry{ProductID: productID, Qty: qty})
	if a.setErr != nil {
		return nil, a.setErr
	}

	for i := range a.entries {
		if a.entries[i].ProductID == productID {
			a.entries[i].Qty = qty
			return append([]models.CartEntry(nil), a.entries...), nil
		}
	}
	a.entries = append(a.entries, models.CartEntry{ProductID: productID, Qty: qty})
	return append([]models.CartEntry(nil), a.entries...), nil
}

func (a *APIMock) Register(ctx context.Context, creds models.Credentials) error {
	a.registered = append(a.registered, creds)
	return a.registerErr
}

func (a *APIMock) Login(ctx context.Context, creds models.Credentials) (*models.LoginResult, error) {
	if a.loginErr != nil {
		return nil, a.loginErr
	}
	return a.login, nil
}

func (a *APIMock) calls() []models.CartEntry {
	a.mx.Lock()
	defer a.mx.Unlock()
	return append([]models.CartEntry(nil), a.setCalls...)
}

// CatalogMock implements Catalog for testing
type CatalogMock struct {
	mx        sync.Mutex
	products  []models.Product
	err       error
	searchErr error
	queries   []string
	// per-query delay before Search answers
	slow map[string]time.Duration
}

func (c *CatalogMock) Products(ctx context.Context) ([]models.Product, error) {
	if c.err != nil {
		return nil, c.err
	}
	return c.products, nil
}

func (c *CatalogMock) Search(ctx context.Context, query string) ([]models.Product, error) {
	c.mx.Lock()
	c.queries = append(c.queries, query)
	delay := c.slow[query]
	c.mx.Unlock()

	time.Sleep(delay)

	if c.searchErr != nil {
		return nil, c.searchErr
	}
	if query == "" {
		return c.Products(ctx)
	}
	var found []models.Product
	for _, p := range c.products {
		if strings.Contains(strings.ToLower(p.Name), strings.ToLower(query)) {
			found = append(found, p)
		}
	}
	if len(found) == 0 {
		return nil, catalog.ErrNoResults
	}
	return found, nil
}

func (c *CatalogMock) searched() []string {
	c.mx.Lock()
	defer c.mx.Unlock()
	return append([]string(nil), c.queries...)
}

// SessionsMock implements Sessions for testing
type SessionsMock struct {
	created []models.Session
	deleted []string
	err     error
}

func (s *SessionsMock) Create(ctx context.Context, token, username string) (models.Session, error) {
	if s.err != nil {
		return models.Session{}, s.err
	}
	sess := models.Session{ID: "sess-1", Token: token, Username: username}
	s.created = append(s.created, sess)
	return sess, nil
}

func (s *SessionsMock) Delete(ctx context.Context, id string) error {
	s.deleted = append(s.deleted, id)
	return s.err
}

func testCatalog() *CatalogMock {
	return &CatalogMock{products: []models.Product{
		{ID: "A", Name: "Basketball", Category: "Sports", Cost: decimal.NewFromInt(10), Rating: 5},
		{ID: "B", Name: "iPhone XR", Category: "Phones", Cost: decimal.NewFromInt(20), Rating: 4},
	}}
}

func newTestService(api *APIMock, cat *CatalogMock, sessions *SessionsMock) *Service {
	return NewService(api, cat, sessions, Config{
		SearchDebounce: 20 * time.Millisecond,
		RequestTimeout: time.Second,
		CartMode:       cartsync.Reject,
	}, logger.Nop())
}

func loggedIn() *models.Session {
	return &models.Session{ID: "sess-1", Token: "tok", Username: "crio.do"}
}

func anonymous() *models.Session {
	return &models.Session{ID: "visitor"}
}
