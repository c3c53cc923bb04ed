package app

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"fwk-assistant/internal/kv"
	"fwk-assistant/internal/model"
	"fwk-assistant/internal/pkg/jwtutil"
	"fwk-assistant/internal/session"
	"fwk-assistant/internal/view"
)

// maxNameLength counts runes, like the login binding.
const maxNameLength = 64

// SessionService owns login, the page-load check and logout for every
// browser client. Each client's values live in its own kv scope.
type SessionService struct {
	backend        kv.Store
	keyPrefix      string
	manager        *session.Manager
	publisher      ActivityPublisher
	jwtSecret      string
	jwtExpiration  time.Duration
	accessCodeHash string
}

type SessionServiceConfig struct {
	KeyPrefix      string
	EntryPage      string
	JWTSecret      string
	JWTExpiration  time.Duration
	AccessCodeHash string
}

type LoginInput struct {
	// ClientID keeps an existing client scope. Empty mints a new one.
	ClientID   string
	Name       string
	AccessCode string
}

type LoginResult struct {
	Token    string
	ClientID string
	Session  model.Session
}

func NewSessionService(backend kv.Store, publisher ActivityPublisher, cfg SessionServiceConfig) *SessionService {
	if publisher == nil {
		publisher = NopPublisher{}
	}
	return &SessionService{
		backend:        backend,
		keyPrefix:      cfg.KeyPrefix,
		manager:        session.NewManager(cfg.EntryPage),
		publisher:      publisher,
		jwtSecret:      cfg.JWTSecret,
		jwtExpiration:  cfg.JWTExpiration,
		accessCodeHash: cfg.AccessCodeHash,
	}
}

// StoreFor returns the session store of one client. An empty client id gets
// a throwaway empty store, so an unknown client always looks logged out.
func (s *SessionService) StoreFor(clientID string) *session.Store {
	if strings.TrimSpace(clientID) == "" {
		return session.NewStore(kv.NewMemoryStore(), s.keyPrefix)
	}
	return session.NewStore(kv.Scoped(s.backend, clientID), s.keyPrefix)
}

func (s *SessionService) EntryPage() string {
	return s.manager.EntryPage()
}

func (s *SessionService) Login(ctx context.Context, input LoginInput) (*LoginResult, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" || utf8.RuneCountInString(name) > maxNameLength {
		return nil, ErrInvalidInput
	}
	if s.accessCodeHash != "" {
		if err := bcrypt.CompareHashAndPassword([]byte(s.accessCodeHash), []byte(input.AccessCode)); err != nil {
			return nil, ErrInvalidAccessCode
		}
	}

	clientID := strings.TrimSpace(input.ClientID)
	if clientID == "" {
		clientID = uuid.NewString()
	}

	sess := model.Session{Name: name}
	if err := s.StoreFor(clientID).SaveSession(ctx, sess); err != nil {
		return nil, err
	}

	token, err := jwtutil.GenerateToken(s.jwtSecret, s.jwtExpiration, clientID, name)
	if err != nil {
		return nil, fmt.Errorf("issue client token failed: %w", err)
	}

	publishActivity(ctx, s.publisher, model.ActivityEvent{
		Type:     model.ActivitySessionStarted,
		ClientID: clientID,
		Name:     name,
	})
	return &LoginResult{Token: token, ClientID: clientID, Session: sess}, nil
}

// Check runs the page-load session check for clientID on currentPath.
func (s *SessionService) Check(ctx context.Context, clientID string, p view.Presenter, currentPath string) (session.CheckResult, error) {
	return s.manager.OnPageLoad(ctx, s.StoreFor(clientID), p, currentPath)
}

func (s *SessionService) Logout(ctx context.Context, clientID string, p view.Presenter) error {
	if err := s.manager.End(ctx, s.StoreFor(clientID), p); err != nil {
		return err
	}
	publishActivity(ctx, s.publisher, model.ActivityEvent{
		Type:     model.ActivitySessionEnded,
		ClientID: clientID,
	})
	return nil
}
