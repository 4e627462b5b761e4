package catalog

import (
	"fmt"
	"strings"
	"time"

	"github.com/yukpo/yukpo/domain"
)

// Vitesse is the decay speed of a tarissable service.
type Vitesse string

// Vitesse values.
const (
	VitesseRapide  Vitesse = "rapide"
	VitesseMoyenne Vitesse = "moyenne"
	VitesseLente   Vitesse = "lente"
)

// MaxReactivationDays caps a reactivation of a tarissable service.
const MaxReactivationDays = 30

// ParseVitesse normalizes a stored or user-supplied decay speed. Empty input
// yields an empty Vitesse.
func ParseVitesse(s string) (Vitesse, error) {
	v := Vitesse(strings.ToLower(strings.TrimSpace(s)))
	if v == "" || v.Valid() {
		return v, nil
	}
	return "", fmt.Errorf("%w: vitesse_tarissement %q", domain.ErrInvalidInput, s)
}

// Valid reports whether v is one of the known speeds.
func (v Vitesse) Valid() bool {
	return v == VitesseRapide || v == VitesseMoyenne || v == VitesseLente
}

// Lifetime returns how long a tarissable service stays active after its
// last update or reactivation.
func (v Vitesse) Lifetime() time.Duration {
	switch v {
	case VitesseRapide:
		return 7 * 24 * time.Hour
	case VitesseMoyenne:
		return 14 * 24 * time.Hour
	case VitesseLente:
		return 30 * 24 * time.Hour
	default:
		return 0
	}
}

// Deadline returns when the service should be deactivated, or nil when it
// never decays. An explicit auto_deactivate_at wins; otherwise tarissable
// services expire a vitesse lifetime after the later of their last update and
// last reactivation.
func (s Service) Deadline() *time.Time {
	if s.autoDeactivateAt != nil {
		t := *s.autoDeactivateAt
		return &t
	}
	if !s.tarissable || s.vitesse.Lifetime() == 0 {
		return nil
	}
	base := s.updatedAt
	if s.lastReactivatedAt != nil && s.lastReactivatedAt.After(base) {
		base = *s.lastReactivatedAt
	}
	t := base.Add(s.vitesse.Lifetime())
	return &t
}

// Expired reports whether an active service is past its deadline at now.
func (s Service) Expired(now time.Time) bool {
	if !s.active {
		return false
	}
	d := s.Deadline()
	return d != nil && !now.Before(*d)
}

// AlertDue reports whether the owner may be alerted again at now.
func (s Service) AlertDue(now time.Time, cooldown time.Duration) bool {
	return s.lastAlertAt == nil || now.Sub(*s.lastAlertAt) >= cooldown
}

// ReactivationDays resolves the requested extension. Non-positive requests
// use the vitesse lifetime; tarissable services are capped at
// MaxReactivationDays.
func (s Service) ReactivationDays(requested int) int {
	days := requested
	if days <= 0 {
		days = int(s.vitesse.Lifetime() / (24 * time.Hour))
		if days == 0 {
			days = MaxReactivationDays
		}
	}
	if s.tarissable && days > MaxReactivationDays {
		days = MaxReactivationDays
	}
	return days
}

// Reactivate returns an active copy whose deadline is extended by days from now.
func (s Service) Reactivate(now time.Time, requestedDays int) Service {
	days := s.ReactivationDays(requestedDays)
	deadline := now.Add(time.Duration(days) * 24 * time.Hour)
	s.active = true
	s.activeDays = days
	s.lastReactivatedAt = &now
	s.autoDeactivateAt = &deadline
	s.lastAlertAt = nil
	return s
}
