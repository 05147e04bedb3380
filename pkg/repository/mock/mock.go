package mock

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/garnizeh/probetas/pkg/models"
	"github.com/garnizeh/probetas/pkg/repository"
)

// Test helpers and mocks
type Mocks struct {
	UserRepo *UserRepo
	Activity *ActivityRepo
}

func NewMocks() *Mocks {
	return &Mocks{
		UserRepo: &UserRepo{},
		Activity: &ActivityRepo{},
	}
}

// UserRepo is an in-memory repository.UserRepo. Set the *Err fields to force
// failures.
type UserRepo struct {
	mu        sync.Mutex
	Users     []*models.User
	CreateErr error
	GetErr    error
	nextID    int
}

var _ repository.UserRepo = (*UserRepo)(nil)

func (m *UserRepo) CreateUser(ctx context.Context, u *models.User) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateErr != nil {
		return "", m.CreateErr
	}
	for _, existing := range m.Users {
		if existing.Username == u.Username || existing.Email == u.Email {
			return "", fmt.Errorf("create user %q: %w", u.Username, repository.ErrDuplicate)
		}
	}

	m.nextID++
	u.ID = fmt.Sprintf("user-%d", m.nextID)
	stored := *u
	m.Users = append(m.Users, &stored)
	return u.ID, nil
}

func (m *UserRepo) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return m.find(func(u *models.User) bool { return u.ID == id })
}

func (m *UserRepo) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return m.find(func(u *models.User) bool { return u.Username == username })
}

func (m *UserRepo) UserExists(ctx context.Context, username, email string) (bool, error) {
	u, err := m.find(func(u *models.User) bool {
		return u.Username == username || strings.EqualFold(u.Email, email)
	})
	return u != nil, err
}

func (m *UserRepo) UpsertUser(ctx context.Context, u *models.User) (string, error) {
	existing, err := m.GetUserByUsername(ctx, u.Username)
	if err != nil {
		return "", err
	}
	if existing == nil {
		return m.CreateUser(ctx, u)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for i, stored := range m.Users {
		if stored.ID == existing.ID {
			cp := *u
			cp.ID = existing.ID
			m.Users[i] = &cp
		}
	}
	u.ID = existing.ID
	return existing.ID, nil
}

func (m *UserRepo) find(match func(*models.User) bool) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	for _, u := range m.Users {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

// ActivityRepo records activity entries in memory.
type ActivityRepo struct {
	mu        sync.Mutex
	Entries   []models.Activity
	RecordErr error
}

var _ repository.ActivityRepo = (*ActivityRepo)(nil)

func (m *ActivityRepo) Record(ctx context.Context, userID, action, details string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.RecordErr != nil {
		return m.RecordErr
	}
	m.Entries = append(m.Entries, models.Activity{ID: int64(len(m.Entries) + 1), UserID: userID, Action: action, Details: details})
	return nil
}

func (m *ActivityRepo) ListActivities(ctx context.Context, userID string, limit, offset int) ([]models.Activity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Activity{}
	for i := len(m.Entries) - 1; i >= 0; i-- {
		if userID == "" || m.Entries[i].UserID == userID {
			out = append(out, m.Entries[i])
		}
	}
	if offset >= len(out) {
		return []models.Activity{}, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (m *ActivityRepo) CountActivities(ctx context.Context, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, e := range m.Entries {
		if userID == "" || e.UserID == userID {
			n++
		}
	}
	return n, nil
}

// Actions lists the recorded action tags in order.
func (m *ActivityRepo) Actions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.Entries))
	for _, e := range m.Entries {
		out = append(out, e.Action)
	}
	return out
}
