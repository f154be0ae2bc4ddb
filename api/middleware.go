package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/shaj13/go-guardian/auth"
	"github.com/shaj13/go-guardian/auth/strategies/basic"
	"github.com/shaj13/go-guardian/auth/strategies/bearer"
	"github.com/shaj13/go-guardian/store"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/civicgrid/civic-report-api/databases"
	"github.com/civicgrid/civic-report-api/models"
)

// Auth holds the dependencies of the authentication middleware
type Auth struct {
	DB        databases.UserDatabase
	JWTSecret []byte
}

var authenticator auth.Authenticator
var cache store.Cache

// SetupGoGuardian sets up the go-guardian middleware
func (m Auth) SetupGoGuardian() {
	authenticator = auth.New()
	cache = store.NewFIFO(context.Background(), 24*time.Hour)
	basicStrategy := basic.New(m.ValidateUser, cache)
	tokenStrategy := bearer.New(bearer.NoOpAuthenticate, cache)

	authenticator.EnableStrategy(basic.StrategyKey, basicStrategy)
	authenticator.EnableStrategy(bearer.CachedStrategyKey, tokenStrategy)
}

// Middleware authenticates the request, resolves the acting user and stores
// the actor on the request context. Both cached bearer tokens (go-guardian)
// and signed JWTs are accepted.
func (m Auth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		userID, err := m.identify(r)
		if err != nil {
			zap.S().Debugw("unauthorized", "url", r.URL, "error", err)
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"success": false, "message": "unauthorized"}`))
			return
		}

		actor, err := m.resolveActor(r.Context(), userID)
		if err != nil {
			zap.S().Warnw("failed to resolve actor", "userId", userID, "error", err)
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"success": false, "message": "unauthorized"}`))
			return
		}

		next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
	})
}

// RequireRole wraps a handler so that only actors with one of the allowed
// roles get through. Must run inside Middleware.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(roles))
	for _, role := range roles {
		allowed[role] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := ActorFromContext(r.Context())
			if !ok {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"success": false, "message": "unauthorized"}`))
				return
			}
			if !allowed[actor.Role] {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				w.Write([]byte(`{"success": false, "message": "forbidden"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (m Auth) identify(r *http.Request) (string, error) {
	user, err := authenticator.Authenticate(r)
	if err == nil {
		return user.ID(), nil
	}

	// fall back to a signed JWT (issued by the login handler)
	header := r.Header.Get("Authorization")
	raw := strings.TrimPrefix(header, "Bearer ")
	if raw == "" || raw == header {
		return "", err
	}
	return m.parseJWT(raw)
}

func (m Auth) parseJWT(raw string) (string, error) {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.JWTSecret, nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to parse token, %v", err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("invalid token claims")
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return "", fmt.Errorf("token missing subject")
	}
	return sub, nil
}

func (m Auth) resolveActor(ctx context.Context, userID string) (models.Actor, error) {
	uID, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return models.Actor{}, err
	}

	user, err := m.DB.FindOne(ctx, bson.M{"_id": uID})
	if err != nil {
		return models.Actor{}, err
	}
	if user.AccountStatus != models.AccountActive {
		return models.Actor{}, fmt.Errorf("account is %s", user.AccountStatus)
	}

	return models.Actor{
		ID:          user.ID,
		Role:        user.Role,
		Departments: user.Departments,
	}, nil
}

// ValidateUser validates a user's basic-auth credentials
func (m Auth) ValidateUser(ctx context.Context, r *http.Request, email, password string) (auth.Info, error) {
	user, err := m.DB.FindOne(ctx, bson.M{"email": strings.ToLower(email)})
	if err != nil {
		return nil, fmt.Errorf("no matching email found")
	}
	if user.Password == "" {
		return nil, fmt.Errorf("account has no local password")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, fmt.Errorf("failed to compare password")
	}
	return auth.NewDefaultUser(user.Email, user.ID.Hex(), nil, nil), nil
}

// CreateToken returns an opaque session token for basic-auth credentials
func (m Auth) CreateToken(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	email, password, ok := r.BasicAuth()
	if !ok {
		http.Error(w, "basic auth failed", http.StatusUnauthorized)
		return
	}

	info, err := m.ValidateUser(r.Context(), r, email, password)
	if err != nil {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	token := uuid.New().String()
	tokenStrategy := authenticator.Strategy(bearer.CachedStrategyKey)
	auth.Append(tokenStrategy, token, info, r)

	response := map[string]string{
		"token": token,
		"_id":   info.ID(),
	}

	responseBody, err := json.Marshal(response)
	if err != nil {
		http.Error(w, "failed to marshal response", http.StatusInternalServerError)
		return
	}

	w.Write(responseBody)
}

// RevokeToken revokes a token
func RevokeToken(w http.ResponseWriter, r *http.Request) {
	reqToken := r.Header.Get("Authorization")
	splitToken := strings.Split(reqToken, "Bearer ")
	if len(splitToken) != 2 {
		http.Error(w, "missing bearer token", http.StatusBadRequest)
		return
	}
	reqToken = splitToken[1]

	tokenStrategy := authenticator.Strategy(bearer.CachedStrategyKey)
	auth.Revoke(tokenStrategy, reqToken, r)
	body := fmt.Sprintf(`{"revoked token": "%s"}`, reqToken)
	w.Write([]byte(body))
}
