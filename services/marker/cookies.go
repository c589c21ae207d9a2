package marker

import (
	"net/http"
	"time"
)

// cookie sets MaxAge from the configured lifetime so it matches the signed expiry exactly.
func (s *Service) cookie(name, value string, expiresAt time.Time, lifetime time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Expires:  expiresAt,
		MaxAge:   int(lifetime / time.Second),
		HttpOnly: true,
		Secure:   s.config.TwoFactor.CookieSecure,
		SameSite: http.SameSiteStrictMode,
	}
}

// VerifiedCookie carries the session marker.
func (s *Service) VerifiedCookie(token string, expiresAt time.Time) *http.Cookie {
	return s.cookie(s.config.TwoFactor.VerifiedCookie, token, expiresAt, s.config.TwoFactor.VerifiedLifetime)
}

func (s *Service) SetupCookie(token string, expiresAt time.Time) *http.Cookie {
	return s.cookie(s.config.TwoFactor.SetupCookie, token, expiresAt, s.config.TwoFactor.SetupLifetime)
}

// RedirectCookie remembers where to send the user once the second factor is passed.
func (s *Service) RedirectCookie(target string) *http.Cookie {
	lifetime := s.config.TwoFactor.RedirectLifetime
	return s.cookie(s.config.TwoFactor.RedirectCookie, target, s.now().Add(lifetime), lifetime)
}

func (s *Service) ExpiredCookie(name string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.config.TwoFactor.CookieSecure,
		SameSite: http.SameSiteStrictMode,
	}
}
