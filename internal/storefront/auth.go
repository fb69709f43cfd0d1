package storefront

import (
	"context"
	"errors"
	"fmt"

	"github.com/drstein77/storefront/internal/apiclient"
	"github.com/drstein77/storefront/internal/models"
	"github.com/drstein77/storefront/internal/validation"
	"go.uber.org/zap"
)

// Register validates the form and submits it. A duplicate username is
// only discovered by the API and comes back as *apiclient.RejectedError.
func (s *Service) Register(ctx context.Context, form models.RegisterForm) error {
	if err := validation.ValidateRegistration(form); err != nil {
		return err
	}

	err := s.api.Register(ctx, models.Credentials{Username: form.Username, Password: form.Password})
	if err == nil {
		s.log.Info("user registered", zap.String("user", form.Username))
		return nil
	}

	var rejected *apiclient.RejectedError
	if errors.As(err, &rejected) {
		return err
	}
	s.log.Error("register failed", zap.String("user", form.Username), zap.Error(err))
	return fmt.Errorf("%w: %v", ErrRegisterFailed, err)
}

// Login opens an authenticated session.
func (s *Service) Login(ctx context.Context, creds models.Credentials) (models.Session, error) {
	if err := validation.ValidateLogin(creds); err != nil {
		return models.Session{}, err
	}

	res, err := s.api.Login(ctx, creds)
	if err != nil {
		return models.Session{}, err
	}

	username := res.Username
	if username == "" {
		username = creds.Username
	}
	sess, err := s.sessions.Create(ctx, res.Token, username)
	if err != nil {
		s.log.Error("cannot store session", zap.Error(err))
		return models.Session{}, err
	}

	s.log.Info("user logged in", zap.String("user", username))
	return sess, nil
}

// Logout ends the session and drops its per-session state.
func (s *Service) Logout(ctx context.Context, sess *models.Session) error {
	s.dropSearch(sess.ID)
	if !sess.Authenticated() {
		return nil
	}
	if err := s.sessions.Delete(ctx, sess.ID); err != nil {
		return err
	}
	s.log.Info("user logged out", zap.String("user", sess.Username))
	return nil
}
