// Package memory implements auth.Store on in-process maps. It backs unit
// tests and local runs without PostgreSQL, mirroring the SQL store's error
// contract: ErrConflict on uniqueness violations, ErrNotFound on missing
// rows.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"formdeck.io/internal/auth"
)

type Store struct {
	mu sync.Mutex

	users    map[string]auth.User
	roles    map[string]auth.Role
	perms    map[string]auth.Permission
	userRole map[string]map[string]bool
	rolePerm map[string]map[string]bool
	tokens   map[string]auth.RefreshToken
	sessions []auth.Session
	audit    []auth.AuditEntry

	seq int

	auditErr error
}

func New() *Store {
	return &Store{
		users:    make(map[string]auth.User),
		roles:    make(map[string]auth.Role),
		perms:    make(map[string]auth.Permission),
		userRole: make(map[string]map[string]bool),
		rolePerm: make(map[string]map[string]bool),
		tokens:   make(map[string]auth.RefreshToken),
	}
}

// FailAudit makes subsequent AppendAudit calls return err. Pass nil to
// restore normal behavior.
func (m *Store) FailAudit(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.auditErr = err
}

// SessionCount reports how many session rows were recorded.
func (m *Store) SessionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *Store) nextID(prefix string) string {
	m.seq++
	return fmt.Sprintf("%s-%d", prefix, m.seq)
}

func (m *Store) CreateUser(_ context.Context, email, name, passwordHash string, isActive bool) (auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return auth.User{}, auth.ErrConflict
		}
	}
	u := auth.User{
		ID:           m.nextID("user"),
		Email:        email,
		Name:         name,
		PasswordHash: passwordHash,
		IsActive:     isActive,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	m.users[u.ID] = u
	return u, nil
}

func (m *Store) ListUsers(context.Context) ([]auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]auth.User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Store) GetUser(_ context.Context, id string) (auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return auth.User{}, auth.ErrNotFound
	}
	return u, nil
}

func (m *Store) GetUserByEmail(_ context.Context, email string) (auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return auth.User{}, auth.ErrNotFound
}

func (m *Store) UpdateUser(_ context.Context, id string, upd auth.UserUpdate) (auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return auth.User{}, auth.ErrNotFound
	}
	if upd.Name != nil {
		u.Name = *upd.Name
	}
	if upd.IsActive != nil {
		u.IsActive = *upd.IsActive
	}
	u.UpdatedAt = time.Now()
	m.users[id] = u
	return u, nil
}

func (m *Store) DeleteUser(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return auth.ErrNotFound
	}
	delete(m.users, id)
	delete(m.userRole, id)
	return nil
}

func (m *Store) CreateRole(_ context.Context, name, description string) (auth.Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.roles {
		if r.Name == name {
			return auth.Role{}, auth.ErrConflict
		}
	}
	r := auth.Role{ID: m.nextID("role"), Name: name, Description: description, CreatedAt: time.Now()}
	m.roles[r.ID] = r
	return r, nil
}

func (m *Store) ListRoles(context.Context) ([]auth.Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]auth.Role, 0, len(m.roles))
	for _, r := range m.roles {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Store) GetRole(_ context.Context, id string) (auth.Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.roles[id]
	if !ok {
		return auth.Role{}, auth.ErrNotFound
	}
	return r, nil
}

func (m *Store) UpdateRole(_ context.Context, id string, upd auth.RoleUpdate) (auth.Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.roles[id]
	if !ok {
		return auth.Role{}, auth.ErrNotFound
	}
	if upd.Name != nil {
		r.Name = *upd.Name
	}
	if upd.Description != nil {
		r.Description = *upd.Description
	}
	r.UpdatedAt = time.Now()
	m.roles[id] = r
	return r, nil
}

func (m *Store) DeleteRole(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.roles[id]; !ok {
		return auth.ErrNotFound
	}
	delete(m.roles, id)
	delete(m.rolePerm, id)
	for _, links := range m.userRole {
		delete(links, id)
	}
	return nil
}

func (m *Store) CreatePermission(_ context.Context, key, description string) (auth.Permission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.perms {
		if p.Key == key {
			return auth.Permission{}, auth.ErrConflict
		}
	}
	p := auth.Permission{ID: m.nextID("perm"), Key: key, Description: description, CreatedAt: time.Now()}
	m.perms[p.ID] = p
	return p, nil
}

func (m *Store) ListPermissions(context.Context) ([]auth.Permission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]auth.Permission, 0, len(m.perms))
	for _, p := range m.perms {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Store) GetPermission(_ context.Context, id string) (auth.Permission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.perms[id]
	if !ok {
		return auth.Permission{}, auth.ErrNotFound
	}
	return p, nil
}

func (m *Store) UpdatePermission(_ context.Context, id string, upd auth.PermissionUpdate) (auth.Permission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.perms[id]
	if !ok {
		return auth.Permission{}, auth.ErrNotFound
	}
	if upd.Key != nil {
		p.Key = *upd.Key
	}
	if upd.Description != nil {
		p.Description = *upd.Description
	}
	m.perms[id] = p
	return p, nil
}

func (m *Store) DeletePermission(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.perms[id]; !ok {
		return auth.ErrNotFound
	}
	delete(m.perms, id)
	for _, links := range m.rolePerm {
		delete(links, id)
	}
	return nil
}

func (m *Store) EnsurePermissions(_ context.Context, perms []auth.Permission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range perms {
		exists := false
		for _, have := range m.perms {
			if have.Key == p.Key {
				exists = true
				break
			}
		}
		if exists {
			continue
		}
		id := p.ID
		if id == "" {
			id = m.nextID("perm")
		}
		m.perms[id] = auth.Permission{ID: id, Key: p.Key, Description: p.Description, CreatedAt: time.Now()}
	}
	return nil
}

func (m *Store) AssignRole(_ context.Context, userID, roleID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[userID]; !ok {
		return auth.ErrNotFound
	}
	if _, ok := m.roles[roleID]; !ok {
		return auth.ErrNotFound
	}
	if m.userRole[userID] == nil {
		m.userRole[userID] = make(map[string]bool)
	}
	m.userRole[userID][roleID] = true
	return nil
}

func (m *Store) RevokeRole(_ context.Context, userID, roleID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.userRole[userID][roleID] {
		return auth.ErrNotFound
	}
	delete(m.userRole[userID], roleID)
	return nil
}

func (m *Store) AttachPermission(_ context.Context, roleID, permissionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.roles[roleID]; !ok {
		return auth.ErrNotFound
	}
	if _, ok := m.perms[permissionID]; !ok {
		return auth.ErrNotFound
	}
	if m.rolePerm[roleID] == nil {
		m.rolePerm[roleID] = make(map[string]bool)
	}
	m.rolePerm[roleID][permissionID] = true
	return nil
}

func (m *Store) DetachPermission(_ context.Context, roleID, permissionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.rolePerm[roleID][permissionID] {
		return auth.ErrNotFound
	}
	delete(m.rolePerm[roleID], permissionID)
	return nil
}

func (m *Store) UserPermissionKeys(_ context.Context, userID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := make(map[string]bool)
	var keys []string
	for roleID := range m.userRole[userID] {
		for permID := range m.rolePerm[roleID] {
			p, ok := m.perms[permID]
			if !ok || seen[p.Key] {
				continue
			}
			seen[p.Key] = true
			keys = append(keys, p.Key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (m *Store) CreateRefreshToken(_ context.Context, tok *auth.RefreshToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tokens[tok.Token]; ok {
		return auth.ErrConflict
	}
	m.tokens[tok.Token] = *tok
	return nil
}

func (m *Store) FindRefreshToken(_ context.Context, token string) (auth.RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.tokens[token]
	if !ok {
		return auth.RefreshToken{}, auth.ErrNotFound
	}
	return rec, nil
}

func (m *Store) RevokeRefreshToken(_ context.Context, token string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.tokens[token]
	if !ok || rec.RevokedAt != nil {
		return nil
	}
	rec.RevokedAt = &at
	m.tokens[token] = rec
	return nil
}

func (m *Store) CreateSession(_ context.Context, s *auth.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions = append(m.sessions, *s)
	return nil
}

func (m *Store) AppendAudit(_ context.Context, entry *auth.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.auditErr != nil {
		return m.auditErr
	}
	m.audit = append(m.audit, *entry)
	return nil
}

func (m *Store) ListAudit(_ context.Context, limit int) ([]auth.AuditEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]auth.AuditEntry, len(m.audit))
	copy(out, m.audit)
	// Newest first, matching the SQL ordering.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

var _ auth.Store = (*Store)(nil)
