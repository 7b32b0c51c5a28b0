package services

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ophion/companion/internal/domain/entities"
	"github.com/ophion/companion/internal/infrastructure/config"
	"github.com/ophion/companion/internal/infrastructure/logger"
	"github.com/ophion/companion/internal/ports"
)

// DefaultDisplayName is shown until the user picks a name
const DefaultDisplayName = "Olympian"

const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"

// Claims represents the JWT claims of a guest session
type Claims struct {
	Name string `json:"name"`
	jwt.RegisteredClaims
}

// Session is an identity with the bearer token that carries it
type Session struct {
	Identity        entities.Identity `json:"identity"`
	Token           string            `json:"token"`
	TokenType       string            `json:"tokenType"`
	ExpiresIn       int64             `json:"expiresIn"`
	NeedsOnboarding bool              `json:"needsOnboarding"`
}

// IdentityService manages the credential-less guest identity
type IdentityService struct {
	store     ports.IdentityStore
	jwtConfig config.JWTConfig
	logger    *logger.Logger
	now       func() time.Time

	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewIdentityService creates a new identity service. store is the device
// storage and may be nil on the server, which only deals in tokens.
func NewIdentityService(store ports.IdentityStore, jwtConfig config.JWTConfig, logger *logger.Logger) *IdentityService {
	return &IdentityService{
		store:     store,
		jwtConfig: jwtConfig,
		logger:    logger,
		now:       time.Now,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// NewGuestID returns guest_<unix millis>_<9 base36 chars>
func (s *IdentityService) NewGuestID() string {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()

	var b strings.Builder
	b.WriteString("guest_")
	b.WriteString(strconv.FormatInt(s.now().UnixMilli(), 10))
	b.WriteByte('_')
	for i := 0; i < 9; i++ {
		b.WriteByte(base36[s.rng.Intn(len(base36))])
	}
	return b.String()
}

func identityFrom(guestID, name string) entities.Identity {
	name = strings.TrimSpace(name)
	if name == "" {
		return entities.Identity{GuestID: guestID, DisplayName: DefaultDisplayName, NeedsOnboarding: true}
	}
	return entities.Identity{GuestID: guestID, DisplayName: name}
}

// Ensure loads the device identity, creating a guest id on first run
func (s *IdentityService) Ensure() (entities.Identity, error) {
	guestID, name, err := s.store.Load()
	if err != nil {
		return entities.Identity{}, fmt.Errorf("failed to load identity: %w", err)
	}

	if guestID == "" {
		guestID = s.NewGuestID()
		if err := s.store.SaveGuestID(guestID); err != nil {
			return entities.Identity{}, fmt.Errorf("failed to save guest id: %w", err)
		}
		s.logger.Infow("Guest identity created", "user_id", guestID)
	}
	return identityFrom(guestID, name), nil
}

// Current returns the device identity without creating one
func (s *IdentityService) Current() (entities.Identity, bool, error) {
	guestID, name, err := s.store.Load()
	if err != nil {
		return entities.Identity{}, false, fmt.Errorf("failed to load identity: %w", err)
	}
	if guestID == "" {
		return entities.Identity{}, false, nil
	}
	return identityFrom(guestID, name), true, nil
}

// Rename stores the display name collected at onboarding
func (s *IdentityService) Rename(name string) (entities.Identity, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return entities.Identity{}, entities.ErrInvalidDisplayName
	}

	id, err := s.Ensure()
	if err != nil {
		return id, err
	}
	if err := s.store.SaveDisplayName(name); err != nil {
		return id, fmt.Errorf("failed to save display name: %w", err)
	}
	return identityFrom(id.GuestID, name), nil
}

// Reset forgets the device identity
func (s *IdentityService) Reset() error {
	if err := s.store.Clear(); err != nil {
		return fmt.Errorf("failed to clear identity: %w", err)
	}
	return nil
}

// StartSession issues a token for the identity a device presents, minting
// a guest id when it has none yet
func (s *IdentityService) StartSession(guestID, displayName string) (*Session, error) {
	guestID = strings.TrimSpace(guestID)
	if guestID == "" {
		guestID = s.NewGuestID()
		s.logger.Infow("Guest identity created", "user_id", guestID)
	}
	return s.sessionFor(identityFrom(guestID, displayName))
}

// RenameSession re-issues the session token with a new display name
func (s *IdentityService) RenameSession(guestID, name string) (*Session, error) {
	if strings.TrimSpace(name) == "" {
		return nil, entities.ErrInvalidDisplayName
	}
	return s.sessionFor(identityFrom(guestID, name))
}

func (s *IdentityService) sessionFor(id entities.Identity) (*Session, error) {
	token, err := s.IssueToken(id)
	if err != nil {
		return nil, err
	}
	return &Session{
		Identity:        id,
		Token:           token,
		TokenType:       "Bearer",
		ExpiresIn:       int64(s.jwtConfig.ExpiresIn.Seconds()),
		NeedsOnboarding: id.NeedsOnboarding,
	}, nil
}

// IssueToken signs an HS256 token whose subject is the guest id
func (s *IdentityService) IssueToken(id entities.Identity) (string, error) {
	now := s.now()
	name := id.DisplayName
	if id.NeedsOnboarding {
		name = ""
	}

	claims := &Claims{
		Name: name,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.jwtConfig.ExpiresIn)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    s.jwtConfig.Issuer,
			Subject:   id.GuestID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.jwtConfig.Secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}

// ValidateToken validates a JWT token and returns the identity it carries
func (s *IdentityService) ValidateToken(tokenString string) (*entities.Identity, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtConfig.Secret), nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, fmt.Errorf("invalid token claims")
	}

	id := identityFrom(claims.Subject, claims.Name)
	return &id, nil
}
