package devserver

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"chat-client/internal/auth"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

// TokenService emite y valida los tokens del backend de desarrollo.
type TokenService struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	issuer     string
	store      RefreshTokenStore
	now        func() time.Time
}

// Claims son los datos que viajan en access y refresh tokens.
type Claims struct {
	UserID    string `json:"uid"`
	Username  string `json:"username"`
	TokenType string `json:"typ"`
	jwt.RegisteredClaims
}

var (
	ErrTokenInvalid = errors.New("token invalid")
	ErrTokenExpired = errors.New("token expired")
)

// NewTokenService crea el servicio. store nil usa el almacen en memoria.
func NewTokenService(secret string, accessTTL, refreshTTL time.Duration, store RefreshTokenStore) *TokenService {
	if accessTTL <= 0 {
		accessTTL = 15 * time.Minute
	}
	if refreshTTL <= 0 {
		refreshTTL = 7 * 24 * time.Hour
	}
	if store == nil {
		store = NewMemoryRefreshTokenStore()
	}
	return &TokenService{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		issuer:     "chat-devserver",
		store:      store,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *TokenService) IssuePair(user User) (auth.TokenPair, error) {
	if len(s.secret) == 0 {
		return auth.TokenPair{}, ErrTokenInvalid
	}
	now := s.now()
	access, err := s.sign(user, now, s.accessTTL, tokenTypeAccess, "")
	if err != nil {
		return auth.TokenPair{}, err
	}
	jti := uuid.NewString()
	refresh, err := s.sign(user, now, s.refreshTTL, tokenTypeRefresh, jti)
	if err != nil {
		return auth.TokenPair{}, err
	}
	if err := s.store.Store(jti, user.ID, s.refreshTTL); err != nil {
		return auth.TokenPair{}, err
	}
	return auth.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(s.accessTTL.Seconds()),
	}, nil
}

// RefreshPair rota el refresh token: el usado queda revocado.
func (s *TokenService) RefreshPair(refreshToken string) (auth.TokenPair, error) {
	claims, err := s.parse(refreshToken, tokenTypeRefresh)
	if err != nil {
		return auth.TokenPair{}, err
	}
	if claims.ID == "" {
		return auth.TokenPair{}, ErrTokenInvalid
	}
	ok, err := s.store.Exists(claims.ID)
	if err != nil || !ok {
		return auth.TokenPair{}, ErrTokenInvalid
	}
	if err := s.store.Revoke(claims.ID); err != nil {
		return auth.TokenPair{}, ErrTokenInvalid
	}
	return s.IssuePair(User{ID: claims.UserID, Username: claims.Username})
}

func (s *TokenService) ParseAccessToken(accessToken string) (Claims, error) {
	return s.parse(accessToken, tokenTypeAccess)
}

func (s *TokenService) sign(user User, now time.Time, ttl time.Duration, tokenType, jti string) (string, error) {
	claims := Claims{
		UserID:    user.ID,
		Username:  user.Username,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Issuer:    s.issuer,
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

func (s *TokenService) parse(tokenString, tokenType string) (Claims, error) {
	if len(s.secret) == 0 || strings.TrimSpace(tokenString) == "" {
		return Claims{}, ErrTokenInvalid
	}
	var claims Claims
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithTimeFunc(s.now),
	)
	_, err := parser.ParseWithClaims(tokenString, &claims, func(_ *jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrTokenExpired
		}
		return Claims{}, ErrTokenInvalid
	}
	if claims.TokenType != tokenType || strings.TrimSpace(claims.UserID) == "" || claims.Subject != claims.UserID {
		return Claims{}, ErrTokenInvalid
	}
	return claims, nil
}
