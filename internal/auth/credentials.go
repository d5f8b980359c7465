package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/singleflight"

	"chat-client/internal/domain"
)

// TokenPair es la respuesta de login/refresh del backend.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// Refresher obtiene un par nuevo a partir de un refresh token.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (TokenPair, error)
}

var (
	ErrNoCredential      = errors.New("no credential")
	ErrCredentialExpired = errors.New("credential expired")
	ErrNoRefresher       = errors.New("no refresher configured")
)

// Credentials guarda la credencial de la sesion. Se crea al inicio, se inyecta por referencia
// y solo cambia via Set, Refresh o Clear.
type Credentials struct {
	mu        sync.RWMutex
	access    string
	refresh   string
	expiresAt time.Time

	refresher Refresher
	group     singleflight.Group
	leeway    time.Duration
	now       func() time.Time
}

// NewCredentials crea el holder; refresher puede ser nil y asignarse despues con SetRefresher.
func NewCredentials(refresher Refresher) *Credentials {
	return &Credentials{
		refresher: refresher,
		leeway:    30 * time.Second,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// SetRefresher asigna el colaborador de refresh (p.ej. el cliente HTTP, que a su vez recibe este holder).
func (c *Credentials) SetRefresher(r Refresher) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.refresher = r
}

// Set reemplaza la credencial actual.
func (c *Credentials) Set(pair TokenPair) {
	expiresAt := tokenExpiry(pair.AccessToken)
	if expiresAt.IsZero() && pair.ExpiresIn > 0 {
		expiresAt = c.now().Add(time.Duration(pair.ExpiresIn) * time.Second)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.access = strings.TrimSpace(pair.AccessToken)
	if pair.RefreshToken != "" {
		c.refresh = strings.TrimSpace(pair.RefreshToken)
	}
	c.expiresAt = expiresAt
}

// Clear descarta la credencial (logout o refresh rechazado).
func (c *Credentials) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.access = ""
	c.refresh = ""
	c.expiresAt = time.Time{}
}

// Bearer devuelve el access token vigente o un error que envuelve domain.ErrUnauthorized.
func (c *Credentials) Bearer() (string, error) {
	if c == nil {
		return "", fmt.Errorf("%w: %w", domain.ErrUnauthorized, ErrNoCredential)
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.access == "" {
		return "", fmt.Errorf("%w: %w", domain.ErrUnauthorized, ErrNoCredential)
	}
	if !c.expiresAt.IsZero() && !c.now().Before(c.expiresAt) {
		return "", fmt.Errorf("%w: %w", domain.ErrUnauthorized, ErrCredentialExpired)
	}
	return c.access, nil
}

// ExpiresAt devuelve el vencimiento conocido del access token (cero si es desconocido).
func (c *Credentials) ExpiresAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.expiresAt
}

// NeedsRefresh indica si el token vence dentro del margen y hay refresh token disponible.
func (c *Credentials) NeedsRefresh() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.refresh == "" || c.expiresAt.IsZero() {
		return false
	}
	return !c.now().Add(c.leeway).Before(c.expiresAt)
}

// Refresh obtiene un par nuevo; llamadas concurrentes comparten una sola peticion.
func (c *Credentials) Refresh(ctx context.Context) error {
	_, err, _ := c.group.Do("refresh", func() (any, error) {
		c.mu.RLock()
		refresher := c.refresher
		refreshToken := c.refresh
		c.mu.RUnlock()

		if refresher == nil {
			return nil, ErrNoRefresher
		}
		if refreshToken == "" {
			return nil, fmt.Errorf("%w: %w", domain.ErrUnauthorized, ErrNoCredential)
		}
		pair, err := refresher.Refresh(ctx, refreshToken)
		if err != nil {
			if domain.IsUnauthorized(err) {
				c.Clear()
			}
			return nil, fmt.Errorf("refresh credential: %w", err)
		}
		c.Set(pair)
		return nil, nil
	})
	return err
}

// tokenExpiry lee exp sin verificar la firma; el cliente no tiene la clave.
func tokenExpiry(token string) time.Time {
	if strings.Count(token, ".") != 2 {
		return time.Time{}
	}
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}
	}
	if claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time.UTC()
}
