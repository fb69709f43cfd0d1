package controllers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/drstein77/storefront/internal/apiclient"
	"github.com/drstein77/storefront/internal/cartsync"
	"github.com/drstein77/storefront/internal/catalog"
	"github.com/drstein77/storefront/internal/logger"
	"github.com/drstein77/storefront/internal/middleware"
	"github.com/drstein77/storefront/internal/models"
	"github.com/drstein77/storefront/internal/session"
	"github.com/drstein77/storefront/internal/storefront"
	"github.com/drstein77/storefront/internal/validation"
	"github.com/drstein77/storefront/internal/views"
	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBackend is an in-memory stand-in for the remote storefront API.
type fakeBackend struct {
	mx    sync.Mutex
	users map[string]string
	carts map[string][]models.CartEntry
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		users: map[string]string{"crio.do": "learnbydoing"},
		carts: map[string][]models.CartEntry{},
	}
}

const productsJSON = `[
	{"name":"Basketball","category":"Sports","cost":10,"rating":5,"image":"b.jpg","_id":"A"},
	{"name":"iPhone XR","category":"Phones","cost":20,"rating":4,"image":"i.jpg","_id":"B"}
]`

func (b *fakeBackend) routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/products", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(productsJSON))
	})
	r.Get("/products/search", func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains("basketball sports", strings.ToLower(r.URL.Query().Get("value"))) {
			w.Write([]byte(`[{"name":"Basketball","category":"Sports","cost":10,"rating":5,"image":"b.jpg","_id":"A"}]`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	})
	r.Post("/auth/register", func(w http.ResponseWriter, r *http.Request) {
		var creds models.Credentials
		json.NewDecoder(r.Body).Decode(&creds)
		b.mx.Lock()
		defer b.mx.Unlock()
		if _, ok := b.users[creds.Username]; ok {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"success":false,"message":"Username is already taken"}`))
			return
		}
		b.users[creds.Username] = creds.Password
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"success":true}`))
	})
	r.Post("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var creds models.Credentials
		json.NewDecoder(r.Body).Decode(&creds)
		b.mx.Lock()
		defer b.mx.Unlock()
		if b.users[creds.Username] != creds.Password {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"success":false,"message":"Password is incorrect"}`))
			return
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(models.LoginResult{Success: true, Token: "token-" + creds.Username, Username: creds.Username})
	})
	r.Get("/cart", func(w http.ResponseWriter, r *http.Request) {
		user, ok := b.user(r)
		if !ok {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		b.mx.Lock()
		defer b.mx.Unlock()
		json.NewEncoder(w).Encode(append([]models.CartEntry{}, b.carts[user]...))
	})
	r.Post("/cart", func(w http.ResponseWriter, r *http.Request) {
		user, ok := b.user(r)
		if !ok {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var entry models.CartEntry
		json.NewDecoder(r.Body).Decode(&entry)

		b.mx.Lock()
		defer b.mx.Unlock()
		var next []models.CartEntry
		found := false
		for _, e := range b.carts[user] {
			if e.ProductID == entry.ProductID {
				found = true
				e.Qty = entry.Qty
			}
			if e.Qty > 0 {
				next = append(next, e)
			}
		}
		if !found && entry.Qty > 0 {
			next = append(next, entry)
		}
		b.carts[user] = next
		json.NewEncoder(w).Encode(append([]models.CartEntry{}, next...))
	})
	return r
}

func (b *fakeBackend) user(r *http.Request) (string, bool) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer token-")
	b.mx.Lock()
	defer b.mx.Unlock()
	_, ok := b.users[token]
	return token, ok
}

func (b *fakeBackend) cart(user string) []models.CartEntry {
	b.mx.Lock()
	defer b.mx.Unlock()
	return b.carts[user]
}

type testEnv struct {
	backend *fakeBackend
	server  *httptest.Server
	client  *http.Client
}

func setupTestEnv(t *testing.T) *testEnv {
	backend := newFakeBackend()
	api := httptest.NewServer(backend.routes())
	t.Cleanup(api.Close)

	log := logger.Nop()
	client := apiclient.New(api.URL, 5*time.Second, log)
	cat := catalog.New(client, nil, log)
	sessions := session.NewMemoryStorage(context.Background(), nil, time.Hour, log)
	svc := storefront.NewService(client, cat, sessions, storefront.Config{
		SearchDebounce: 50 * time.Millisecond,
		RequestTimeout: time.Second,
		CartMode:       cartsync.Reject,
	}, log)
	t.Cleanup(svc.Close)

	renderer, err := views.New()
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Use(middleware.Session(sessions, false, log))
	r.Mount("/", NewBaseController(svc, renderer, false, log).Route())

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	return &testEnv{backend: backend, server: srv, client: &http.Client{Jar: jar}}
}

func (e *testEnv) get(t *testing.T, path string) (*http.Response, string) {
	resp, err := e.client.Get(e.server.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func (e *testEnv) post(t *testing.T, path string, form url.Values) (*http.Response, string) {
	resp, err := e.client.PostForm(e.server.URL+path, form)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func (e *testEnv) login(t *testing.T) {
	resp, body := e.post(t, "/login", url.Values{"username": {"crio.do"}, "password": {"learnbydoing"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, body, storefront.MsgLoggedIn)
}

func TestHealth(t *testing.T) {
	env := setupTestEnv(t)

	resp, body := env.get(t, "/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, body)
}

func TestProductsPage_Anonymous(t *testing.T) {
	env := setupTestEnv(t)

	resp, body := env.get(t, "/")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Basketball")
	assert.Contains(t, body, "iPhone XR")
	assert.Contains(t, body, `href="/register"`)
	assert.NotContains(t, body, "cart-total")
}

func TestProductsPage_SearchNotFound(t *testing.T) {
	env := setupTestEnv(t)

	resp, body := env.get(t, "/?q=zzz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "No products found")
}

func TestAddToCart_AnonymousRedirectsToLogin(t *testing.T) {
	env := setupTestEnv(t)

	resp, body := env.post(t, "/cart", url.Values{"productId": {"A"}, "source": {"productCard"}})
	assert.Equal(t, "/login", resp.Request.URL.Path)
	assert.Contains(t, body, "You are not Logged in.")
}

func TestCartFlow(t *testing.T) {
	env := setupTestEnv(t)
	env.login(t)

	_, body := env.get(t, "/")
	assert.Contains(t, body, "Cart is empty")

	_, body = env.post(t, "/cart", url.Values{"productId": {"B"}, "source": {"productCard"}})
	assert.Contains(t, body, `<span data-testid="cart-total">$20</span>`)
	assert.Equal(t, []models.CartEntry{{ProductID: "B", Qty: 1}}, env.backend.cart("crio.do"))

	_, body = env.post(t, "/cart", url.Values{"productId": {"B"}, "source": {"productCard"}})
	assert.Contains(t, body, storefront.MsgAlreadyInCart)
	assert.Equal(t, 1, env.backend.cart("crio.do")[0].Qty)

	_, body = env.post(t, "/cart/quantity", url.Values{"productId": {"B"}, "direction": {"+"}, "qty": {"3"}})
	assert.Contains(t, body, `<span data-testid="cart-total">$60</span>`)

	resp, body := env.get(t, "/checkout")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `<span data-testid="order-total">$60</span>`)
	assert.NotContains(t, body, `name="direction"`)

	_, body = env.post(t, "/cart/quantity", url.Values{"productId": {"B"}, "direction": {"-"}, "qty": {"0"}})
	assert.Contains(t, body, "Cart is empty")
}

func TestCartChange_RejectedTokenLogsOut(t *testing.T) {
	env := setupTestEnv(t)
	env.login(t)

	// the API forgets the user, so its token is refused from now on
	env.backend.mx.Lock()
	delete(env.backend.users, "crio.do")
	env.backend.mx.Unlock()

	resp, body := env.post(t, "/cart/quantity", url.Values{"productId": {"B"}, "direction": {"+"}, "qty": {"1"}})
	assert.Equal(t, "/login", resp.Request.URL.Path)
	assert.Contains(t, body, storefront.MsgSessionExpired)

	_, body = env.get(t, "/")
	assert.NotContains(t, body, `<div class="username">`)
	assert.Contains(t, body, `href="/login"`)
}

func TestQuantity_BadDirection(t *testing.T) {
	env := setupTestEnv(t)
	env.login(t)

	resp, _ := env.post(t, "/cart/quantity", url.Values{"productId": {"B"}, "direction": {"*"}, "qty": {"3"}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCheckout_AnonymousRedirectsToLogin(t *testing.T) {
	env := setupTestEnv(t)

	resp, _ := env.get(t, "/checkout")
	assert.Equal(t, "/login", resp.Request.URL.Path)
}

func TestRegister(t *testing.T) {
	env := setupTestEnv(t)

	resp, body := env.post(t, "/register", url.Values{"username": {"abc"}, "password": {"abcdef"}, "confirmPassword": {"abcdef"}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body, validation.MsgUsernameShort)
	assert.Contains(t, body, `value="abc"`)

	resp, body = env.post(t, "/register", url.Values{"username": {"crio.do"}, "password": {"abcdef"}, "confirmPassword": {"abcdef"}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body, "Username is already taken")

	resp, body = env.post(t, "/register", url.Values{"username": {"newuser"}, "password": {"abcdef"}, "confirmPassword": {"abcdef"}})
	assert.Equal(t, "/login", resp.Request.URL.Path)
	assert.Contains(t, body, storefront.MsgRegistered)
}

func TestLogin_WrongPassword(t *testing.T) {
	env := setupTestEnv(t)

	resp, body := env.post(t, "/login", url.Values{"username": {"crio.do"}, "password": {"nope"}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body, "Password is incorrect")
}

func TestLogout(t *testing.T) {
	env := setupTestEnv(t)
	env.login(t)

	_, body := env.get(t, "/")
	assert.Contains(t, body, "crio.do")

	_, body = env.post(t, "/logout", nil)
	assert.NotContains(t, body, `<div class="username">`)
	assert.Contains(t, body, `href="/login"`)
}

func TestLiveSearch(t *testing.T) {
	env := setupTestEnv(t)

	for _, q := range []string{"s", "sp", "spo"} {
		resp, _ := env.post(t, "/search/input", url.Values{"value": {q}})
		require.Equal(t, http.StatusAccepted, resp.StatusCode)
	}

	var res storefront.SearchResult
	require.Eventually(t, func() bool {
		_, body := env.get(t, "/search/results")
		if err := json.Unmarshal([]byte(body), &res); err != nil {
			return false
		}
		return !res.Pending && res.Query == "spo"
	}, 2*time.Second, 10*time.Millisecond)

	require.Len(t, res.Products, 1)
	assert.Equal(t, "A", res.Products[0].ID)
}
