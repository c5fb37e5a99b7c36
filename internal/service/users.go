package service

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/cinema-ticket-booking/internal/log"
	"github.com/iliyamo/cinema-ticket-booking/internal/model"
)

// Identity event types handled by UserService.
const (
	IdentityUserCreated = "user.created"
	IdentityUserUpdated = "user.updated"
	IdentityUserDeleted = "user.deleted"
)

// IdentityEvent is the webhook body sent by the identity provider (Clerk).
type IdentityEvent struct {
	Type string       `json:"type"`
	Data IdentityUser `json:"data"`
}

// IdentityUser is the user object carried by an identity event.
type IdentityUser struct {
	ID             string `json:"id"`
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	ImageURL       string `json:"image_url"`
	EmailAddresses []struct {
		EmailAddress string `json:"email_address"`
	} `json:"email_addresses"`
}

// ToUser maps the provider representation onto the local mirror.
func (u IdentityUser) ToUser() model.User {
	out := model.User{
		ID:       u.ID,
		Name:     strings.TrimSpace(u.FirstName + " " + u.LastName),
		ImageURL: u.ImageURL,
	}
	if len(u.EmailAddresses) > 0 {
		out.Email = u.EmailAddresses[0].EmailAddress
	}
	return out
}

// UserService keeps the users table in sync with the identity provider.
type UserService struct {
	users UserStore
}

func NewUserService(users UserStore) *UserService { return &UserService{users: users} }

// HandleIdentityEvent applies one identity event.  Unknown event types are
// ignored so new provider events never fail the webhook.
func (s *UserService) HandleIdentityEvent(ctx context.Context, ev IdentityEvent) error {
	logger := log.FromContext(ctx).WithFields(logrus.Fields{"event": ev.Type, "user_id": ev.Data.ID})
	switch ev.Type {
	case IdentityUserCreated, IdentityUserUpdated:
		if ev.Data.ID == "" {
			return invalid("identity event without user id")
		}
		if err := s.users.Upsert(ctx, ev.Data.ToUser()); err != nil {
			return err
		}
		logger.Info("user synced")
	case IdentityUserDeleted:
		if ev.Data.ID == "" {
			return invalid("identity event without user id")
		}
		if err := s.users.Delete(ctx, ev.Data.ID); err != nil {
			return err
		}
		logger.Info("user deleted")
	default:
		logger.Debug("ignoring identity event")
	}
	return nil
}
