package auth

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// Service issues and verifies HMAC-signed bearer tokens carrying the
// user id and role. This is the whole identity provider the core
// trusts: {userId, role} out of a verified token.
type Service struct {
	hmac []byte
	ttl  time.Duration
}

func NewService(secret string, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 8 * time.Hour
	}
	return &Service{hmac: []byte(secret), ttl: ttl}
}

type Claims struct {
	Sub  string `json:"sub"`
	Role string `json:"role"` // "admin" or "student"
	jwt.RegisteredClaims
}

func (s *Service) IssueJWT(sub, role string) (string, error) {
	now := time.Now()
	claims := &Claims{
		Sub:  sub,
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "examgate",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(s.hmac)
}

func (s *Service) Parse(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return s.hmac, nil
	})
	if err != nil {
		return nil, err
	}
	c, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	return c, nil
}

// ---- credential store ----

// Credentials verifies a username/password pair against the users
// table and hands back the identity for token issuance.
type Credentials struct{ db *sql.DB }

func NewCredentials(db *sql.DB) *Credentials { return &Credentials{db: db} }

var ErrInvalidLogin = errors.New("invalid credentials")

func (c *Credentials) Verify(ctx context.Context, username, password string) (userID, role string, err error) {
	var hash string
	err = c.db.QueryRowContext(ctx,
		`SELECT id, password_hash, role FROM users WHERE username = $1`, username).
		Scan(&userID, &hash, &role)
	if errors.Is(err, sql.ErrNoRows) {
		return "", "", ErrInvalidLogin
	}
	if err != nil {
		return "", "", err
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return "", "", ErrInvalidLogin
	}
	return userID, role, nil
}

// POST /auth/login  { "username": "...", "password": "..." }
func LoginHandler(s *Service, creds *Credentials) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		userID, role, err := creds.Verify(r.Context(), req.Username, req.Password)
		if err != nil {
			if errors.Is(err, ErrInvalidLogin) {
				http.Error(w, "invalid credentials", http.StatusUnauthorized)
				return
			}
			http.Error(w, "login failed", http.StatusInternalServerError)
			return
		}
		tok, err := s.IssueJWT(userID, role)
		if err != nil {
			http.Error(w, "issue token", http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"access_token": tok})
	}
}
