package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/drstein77/storefront/internal/cart"
	"github.com/drstein77/storefront/internal/middleware"
	"github.com/drstein77/storefront/internal/models"
	"github.com/drstein77/storefront/internal/notify"
	"github.com/drstein77/storefront/internal/session"
	"github.com/drstein77/storefront/internal/storefront"
	"github.com/drstein77/storefront/internal/views"
	"github.com/go-chi/chi"
	"go.uber.org/zap"
)

// Storefront is the presentation logic the handlers delegate to.
type Storefront interface {
	Products(ctx context.Context, sess *models.Session, query string) *storefront.ProductsPage
	AddToCart(ctx context.Context, sess *models.Session, from storefront.Source, productID string, qty int) (*storefront.CartView, error)
	ChangeQuantity(ctx context.Context, sess *models.Session, dir cart.Direction, productID string, newQty int) (*storefront.CartView, error)
	Checkout(ctx context.Context, sess *models.Session) (*storefront.CartView, error)
	Register(ctx context.Context, form models.RegisterForm) error
	Login(ctx context.Context, creds models.Credentials) (models.Session, error)
	Logout(ctx context.Context, sess *models.Session) error
	LiveSearch(sess *models.Session) *storefront.LiveSearch
}

type Renderer interface {
	Render(w http.ResponseWriter, status int, name string, page views.Page) error
}

// Log interface for logging
type Log interface {
	Info(string, ...zap.Field)
	Error(string, ...zap.Field)
}

// BaseController struct for handling requests
type BaseController struct {
	store   Storefront
	views   Renderer
	flashes *flashes
	secure  bool
	log     Log
}

// NewBaseController creates a new BaseController instance
func NewBaseController(store Storefront, renderer Renderer, secure bool, log Log) *BaseController {
	return &BaseController{
		store:   store,
		views:   renderer,
		flashes: newFlashes(),
		secure:  secure,
		log:     log,
	}
}

// Route sets up the routes for the BaseController
func (h *BaseController) Route() *chi.Mux {
	r := chi.NewRouter()

	r.Get("/health", h.health)

	r.Get("/", h.getProducts)
	r.Post("/cart", h.postCart)
	r.Post("/cart/quantity", h.postQuantity)
	r.Get("/checkout", h.getCheckout)

	r.Get("/register", h.getRegister)
	r.Post("/register", h.postRegister)
	r.Get("/login", h.getLogin)
	r.Post("/login", h.postLogin)
	r.Post("/logout", h.postLogout)

	r.Route("/search", func(r chi.Router) {
		r.Post("/input", h.postSearchInput)
		r.Get("/results", h.getSearchResults)
	})

	return r
}

func (h *BaseController) health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *BaseController) getProducts(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())
	page := h.store.Products(r.Context(), sess, r.URL.Query().Get("q"))

	notes := append(h.flashes.pop(sess.ID), page.Notifications...)
	h.render(w, http.StatusOK, "products", views.Page{
		Title:         "Products",
		Session:       sess,
		Notifications: notes,
		Body:          page,
	})
}

func (h *BaseController) postCart(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())

	productID := r.FormValue("productId")
	if productID == "" {
		http.Error(w, "productId is required", http.StatusBadRequest)
		return
	}
	qty := 1
	if v := r.FormValue("qty"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			http.Error(w, "qty must be an integer", http.StatusBadRequest)
			return
		}
		qty = n
	}
	from := storefront.FromCart
	if r.FormValue("source") == string(storefront.FromProductCard) {
		from = storefront.FromProductCard
	}

	_, err := h.store.AddToCart(r.Context(), sess, from, productID, qty)
	h.afterCartChange(w, r, sess, err)
}

func (h *BaseController) postQuantity(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())

	dir, err := cart.ParseDirection(r.FormValue("direction"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	productID := r.FormValue("productId")
	qty, err := strconv.Atoi(r.FormValue("qty"))
	if productID == "" || err != nil {
		http.Error(w, "productId and qty are required", http.StatusBadRequest)
		return
	}

	_, err = h.store.ChangeQuantity(r.Context(), sess, dir, productID, qty)
	h.afterCartChange(w, r, sess, err)
}

// afterCartChange sends the browser back to the listing, or to login when
// the visitor is anonymous.
func (h *BaseController) afterCartChange(w http.ResponseWriter, r *http.Request, sess *models.Session, err error) {
	if err != nil {
		h.flashes.push(sess.ID, storefront.Notice(err))
	}
	if errors.Is(err, storefront.ErrLoginRequired) {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, backTo(r), http.StatusSeeOther)
}

func (h *BaseController) getCheckout(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())

	view, err := h.store.Checkout(r.Context(), sess)
	if errors.Is(err, storefront.ErrLoginRequired) {
		h.flashes.push(sess.ID, storefront.Notice(err))
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	var notes notify.Notifications
	notes = append(notes, h.flashes.pop(sess.ID)...)
	if err != nil {
		h.log.Error("checkout failed", zap.Error(err))
		notes = append(notes, storefront.Notice(err))
	}
	h.render(w, http.StatusOK, "checkout", views.Page{
		Title:         "Checkout",
		Session:       sess,
		Notifications: notes,
		Body:          view,
	})
}

func (h *BaseController) getRegister(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())
	h.render(w, http.StatusOK, "register", views.Page{
		Title:         "Register",
		Session:       sess,
		HideAuth:      true,
		Notifications: h.flashes.pop(sess.ID),
		Body:          models.RegisterForm{},
	})
}

func (h *BaseController) postRegister(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())
	form := models.RegisterForm{
		Username:        r.FormValue("username"),
		Password:        r.FormValue("password"),
		ConfirmPassword: r.FormValue("confirmPassword"),
	}

	if err := h.store.Register(r.Context(), form); err != nil {
		// keep what the user typed, minus the secrets
		h.render(w, http.StatusBadRequest, "register", views.Page{
			Title:         "Register",
			Session:       sess,
			HideAuth:      true,
			Notifications: notify.Notifications{storefront.Notice(err)},
			Body:          models.RegisterForm{Username: form.Username},
		})
		return
	}

	h.flashes.push(sess.ID, notify.Notification{Variant: notify.Success, Message: storefront.MsgRegistered})
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (h *BaseController) getLogin(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())
	h.render(w, http.StatusOK, "login", views.Page{
		Title:         "Login",
		Session:       sess,
		HideAuth:      true,
		Notifications: h.flashes.pop(sess.ID),
		Body:          models.Credentials{},
	})
}

func (h *BaseController) postLogin(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())
	creds := models.Credentials{
		Username: r.FormValue("username"),
		Password: r.FormValue("password"),
	}

	created, err := h.store.Login(r.Context(), creds)
	if err != nil {
		h.render(w, http.StatusBadRequest, "login", views.Page{
			Title:         "Login",
			Session:       sess,
			HideAuth:      true,
			Notifications: notify.Notifications{storefront.Notice(err)},
			Body:          models.Credentials{Username: creds.Username},
		})
		return
	}

	middleware.SetCookie(w, created, h.secure)
	h.flashes.push(created.ID, notify.Notification{Variant: notify.Success, Message: storefront.MsgLoggedIn})
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *BaseController) postLogout(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())

	if err := h.store.Logout(r.Context(), sess); err != nil {
		h.log.Error("logout failed", zap.Error(err))
	}
	h.flashes.drop(sess.ID)
	middleware.ClearCookie(w, h.secure)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *BaseController) postSearchInput(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())
	h.store.LiveSearch(sess).Input(r.FormValue("value"))
	respondJSON(w, http.StatusAccepted, map[string]bool{"accepted": true})
}

func (h *BaseController) getSearchResults(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())
	respondJSON(w, http.StatusOK, h.store.LiveSearch(sess).Latest())
}

func (h *BaseController) render(w http.ResponseWriter, status int, name string, page views.Page) {
	if err := h.views.Render(w, status, name, page); err != nil {
		h.log.Error("render failed", zap.String("page", name), zap.Error(err))
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
	}
}

// backTo returns the listing the form was posted from, keeping the search query.
func backTo(r *http.Request) string {
	if q := r.FormValue("q"); q != "" {
		return "/?q=" + url.QueryEscape(q)
	}
	return "/"
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
