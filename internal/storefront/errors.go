package storefront

import (
	"errors"
	"fmt"

	"github.com/drstein77/storefront/internal/apiclient"
	"github.com/drstein77/storefront/internal/cartsync"
	"github.com/drstein77/storefront/internal/notify"
	"github.com/drstein77/storefront/internal/validation"
)

var (
	ErrLoginRequired = errors.New("login required")
	ErrAlreadyInCart = errors.New("item already in cart")
	// ErrSessionExpired means the API no longer accepts the session token.
	// It is an ErrLoginRequired, so callers send the user back to login.
	ErrSessionExpired = fmt.Errorf("%w: session expired", ErrLoginRequired)
	// ErrRegisterFailed wraps registration failures other than a rejection by the API.
	ErrRegisterFailed = errors.New("registration failed")
)

const (
	MsgBackendUnreachable  = "Something went wrong. Check that the backend is running and reachable."
	MsgRegisterUnreachable = "Something went wrong. Check that the backend is running, reachable and returns valid JSON."
	MsgLoginRequired       = "You are not Logged in. Please Log in to add products to cart."
	MsgAlreadyInCart       = "Item already in cart. Use the cart sidebar to update quantity or remove item."
	MsgCartBusy            = "Your previous cart update is still in progress."
	MsgSessionExpired      = "Your session has expired. Please log in again."
	MsgRegistered          = "Registered successfully"
	MsgLoggedIn            = "Logged in successfully"
)

// Notice turns an error returned by the Service into the message shown to the user.
func Notice(err error) notify.Notification {
	var verr *validation.Error
	var rejected *apiclient.RejectedError

	switch {
	case errors.As(err, &verr):
		return notify.Notification{Variant: notify.Warning, Message: verr.Message}
	case errors.Is(err, ErrSessionExpired):
		return notify.Notification{Variant: notify.Warning, Message: MsgSessionExpired}
	case errors.Is(err, ErrLoginRequired):
		return notify.Notification{Variant: notify.Warning, Message: MsgLoginRequired}
	case errors.Is(err, ErrAlreadyInCart):
		return notify.Notification{Variant: notify.Warning, Message: MsgAlreadyInCart}
	case errors.Is(err, cartsync.ErrBusy):
		return notify.Notification{Variant: notify.Warning, Message: MsgCartBusy}
	case errors.Is(err, apiclient.ErrUnauthorized):
		return notify.Notification{Variant: notify.Warning, Message: MsgSessionExpired}
	case errors.As(err, &rejected):
		return notify.Notification{Variant: notify.Error, Message: rejected.Message}
	case errors.Is(err, ErrRegisterFailed):
		return notify.Notification{Variant: notify.Error, Message: MsgRegisterUnreachable}
	}
	return notify.Notification{Variant: notify.Error, Message: MsgBackendUnreachable}
}

func cartError(err error) string {
	return fmt.Sprintf("Oops! %v", err)
}
