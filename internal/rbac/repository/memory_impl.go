package repository

import (
	"context"
	"rbacgate/internal/rbac/model"
	"sort"
	"strings"
	"sync"
	"time"
)

type memCtxKey int

const (
	memTxKey memCtxKey = iota
	memSnapshotKey
)

// MemoryRepository keeps everything in process memory behind one RWMutex.
// WithTx holds the write lock for the whole callback and restores the prior
// state when the callback fails. Used for tests and STORE_BACKEND=memory.
type MemoryRepository struct {
	mu sync.RWMutex
	st *memState
}

type memState struct {
	permissions map[string]model.Permission
	groups      map[string]model.Group
	groupCodes  map[string]map[string]model.GroupPermission // group id -> code
	users       map[string]model.User
	memberships map[string]map[string]model.UserGroup // user id -> group id
	activities  []model.ActivityRecord
}

func newMemState() *memState {
	return &memState{
		permissions: map[string]model.Permission{},
		groups:      map[string]model.Group{},
		groupCodes:  map[string]map[string]model.GroupPermission{},
		users:       map[string]model.User{},
		memberships: map[string]map[string]model.UserGroup{},
	}
}

// clone copies everything except the activity log, which is append-only
// and rolled back by truncation.
func (s *memState) clone() *memState {
	c := newMemState()
	for k, v := range s.permissions {
		c.permissions[k] = v
	}
	for k, v := range s.groups {
		c.groups[k] = v
	}
	for k, rows := range s.groupCodes {
		m := make(map[string]model.GroupPermission, len(rows))
		for code, row := range rows {
			m[code] = row
		}
		c.groupCodes[k] = m
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, rows := range s.memberships {
		m := make(map[string]model.UserGroup, len(rows))
		for gid, row := range rows {
			m[gid] = row
		}
		c.memberships[k] = m
	}
	return c
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{st: newMemState()}
}

func inMemTx(ctx context.Context) bool {
	v, _ := ctx.Value(memTxKey).(bool)
	return v
}

func inMemSnapshot(ctx context.Context) bool {
	v, _ := ctx.Value(memSnapshotKey).(bool)
	return v
}

// read takes the shared lock unless the caller already holds a lock.
func (r *MemoryRepository) read(ctx context.Context) func() {
	if inMemTx(ctx) || inMemSnapshot(ctx) {
		return func() {}
	}
	r.mu.RLock()
	return r.mu.RUnlock
}

func (r *MemoryRepository) write(ctx context.Context) (func(), error) {
	if inMemTx(ctx) {
		return func() {}, nil
	}
	if inMemSnapshot(ctx) {
		return nil, ErrReadOnly
	}
	r.mu.Lock()
	return r.mu.Unlock, nil
}

func (r *MemoryRepository) EnsureIndexes(ctx context.Context) error         { return nil }
func (r *MemoryRepository) EnsureActivityIndexes(ctx context.Context) error { return nil }

func (r *MemoryRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if inMemTx(ctx) {
		return fn(ctx)
	}
	if inMemSnapshot(ctx) {
		return ErrReadOnly
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	backup := r.st.clone()
	logged := len(r.st.activities)
	if err := fn(context.WithValue(ctx, memTxKey, true)); err != nil {
		backup.activities = r.st.activities[:logged:logged]
		r.st = backup
		return err
	}
	return nil
}

func (r *MemoryRepository) Snapshot(ctx context.Context, fn func(ctx context.Context) error) error {
	if inMemTx(ctx) || inMemSnapshot(ctx) {
		return fn(ctx)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	return fn(context.WithValue(ctx, memSnapshotKey, true))
}

// Lock is a no-op: WithTx already holds the store exclusively.
func (r *MemoryRepository) Lock(ctx context.Context, key string) error {
	return nil
}

// --- permissions ---

func (r *MemoryRepository) CreatePermission(ctx context.Context, p *model.Permission) error {
	unlock, err := r.write(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	if _, ok := r.st.permissions[p.Code]; ok {
		return ErrDuplicate
	}
	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now
	r.st.permissions[p.Code] = *p
	return nil
}

func (r *MemoryRepository) GetPermission(ctx context.Context, code string) (*model.Permission, error) {
	defer r.read(ctx)()

	p, ok := r.st.permissions[code]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (r *MemoryRepository) GetPermissions(ctx context.Context, codes []string) ([]*model.Permission, error) {
	defer r.read(ctx)()

	out := []*model.Permission{}
	seen := map[string]bool{}
	for _, code := range codes {
		if seen[code] {
			continue
		}
		seen[code] = true
		if p, ok := r.st.permissions[code]; ok {
			out = append(out, &p)
		}
	}
	return out, nil
}

func (r *MemoryRepository) UpdatePermission(ctx context.Context, p *model.Permission) error {
	unlock, err := r.write(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	if _, ok := r.st.permissions[p.Code]; !ok {
		return ErrNotFound
	}
	p.UpdatedAt = time.Now()
	r.st.permissions[p.Code] = *p
	return nil
}

func (r *MemoryRepository) DeletePermission(ctx context.Context, code string) error {
	unlock, err := r.write(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	if _, ok := r.st.permissions[code]; !ok {
		return ErrNotFound
	}
	delete(r.st.permissions, code)
	return nil
}

func (r *MemoryRepository) ListPermissions(ctx context.Context, filter model.PermissionFilter) ([]*model.Permission, int64, error) {
	defer r.read(ctx)()

	search := strings.ToLower(filter.Search)
	matched := []*model.Permission{}
	for _, p := range r.st.permissions {
		if filter.ParentCode != "" && p.ParentCode != filter.ParentCode {
			continue
		}
		if filter.IsActive != nil && p.IsActive != *filter.IsActive {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(p.Code), search) &&
			!strings.Contains(strings.ToLower(p.Name), search) &&
			!strings.Contains(strings.ToLower(p.Description), search) {
			continue
		}
		p := p
		matched = append(matched, &p)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].Code < matched[j].Code })

	total := int64(len(matched))
	return paginate(matched, filter.Page, filter.Limit), total, nil
}

func (r *MemoryRepository) AllPermissions(ctx context.Context) ([]*model.Permission, error) {
	perms, _, err := r.ListPermissions(ctx, model.PermissionFilter{})
	return perms, err
}

func (r *MemoryRepository) FindChildCodes(ctx context.Context, parentCode string) ([]string, error) {
	defer r.read(ctx)()

	out := []string{}
	for code, p := range r.st.permissions {
		if p.ParentCode == parentCode {
			out = append(out, code)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (r *MemoryRepository) ClearParent(ctx context.Context, parentCode, updatedBy string) error {
	unlock, err := r.write(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	now := time.Now()
	for code, p := range r.st.permissions {
		if p.ParentCode != parentCode {
			continue
		}
		p.ParentCode = ""
		p.UpdatedAt = now
		p.UpdatedBy = updatedBy
		r.st.permissions[code] = p
	}
	return nil
}

// --- groups ---

func (r *MemoryRepository) CreateGroup(ctx context.Context, g *model.Group) error {
	unlock, err := r.write(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	if _, ok := r.st.groups[g.ID]; ok {
		return ErrDuplicate
	}
	for _, existing := range r.st.groups {
		if existing.Code == g.Code {
			return ErrDuplicate
		}
	}
	now := time.Now()
	g.CreatedAt = now
	g.UpdatedAt = now
	r.st.groups[g.ID] = *g
	return nil
}

func (r *MemoryRepository) GetGroup(ctx context.Context, id string) (*model.Group, error) {
	defer r.read(ctx)()

	g, ok := r.st.groups[id]
	if !ok {
		return nil, nil
	}
	return &g, nil
}

func (r *MemoryRepository) GetGroups(ctx context.Context, ids []string) ([]*model.Group, error) {
	defer r.read(ctx)()

	out := []*model.Group{}
	seen := map[string]bool{}
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if g, ok := r.st.groups[id]; ok {
			out = append(out, &g)
		}
	}
	return out, nil
}

func (r *MemoryRepository) UpdateGroup(ctx context.Context, g *model.Group) error {
	unlock, err := r.write(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	existing, ok := r.st.groups[g.ID]
	if !ok {
		return ErrNotFound
	}
	existing.Name = g.Name
	existing.Description = g.Description
	existing.IsActive = g.IsActive
	existing.UpdatedBy = g.UpdatedBy
	existing.UpdatedAt = time.Now()
	g.UpdatedAt = existing.UpdatedAt
	r.st.groups[g.ID] = existing
	return nil
}

func (r *MemoryRepository) DeleteGroup(ctx context.Context, id string) error {
	unlock, err := r.write(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	if _, ok := r.st.groups[id]; !ok {
		return ErrNotFound
	}
	delete(r.st.groups, id)
	return nil
}

func (r *MemoryRepository) ListGroups(ctx context.Context, filter model.GroupFilter) ([]*model.Group, int64, error) {
	defer r.read(ctx)()

	search := strings.ToLower(filter.Search)
	matched := []*model.Group{}
	for _, g := range r.st.groups {
		if filter.IsActive != nil && g.IsActive != *filter.IsActive {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(g.Code), search) &&
			!strings.Contains(strings.ToLower(g.Name), search) {
			continue
		}
		g := g
		matched = append(matched, &g)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].Code < matched[j].Code })

	total := int64(len(matched))
	return paginate(matched, filter.Page, filter.Limit), total, nil
}

// --- group -> permission relation ---

func (r *MemoryRepository) GetGroupCodes(ctx context.Context, groupID string) ([]string, error) {
	defer r.read(ctx)()
	return sortedKeys(r.st.groupCodes[groupID]), nil
}

func (r *MemoryRepository) GetCodesForGroups(ctx context.Context, groupIDs []string) ([]string, error) {
	defer r.read(ctx)()

	union := map[string]struct{}{}
	for _, id := range groupIDs {
		for code := range r.st.groupCodes[id] {
			union[code] = struct{}{}
		}
	}
	return sortedKeys(union), nil
}

func (r *MemoryRepository) AddGroupCodes(ctx context.Context, groupID string, codes []string, createdBy string) error {
	unlock, err := r.write(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	rows := r.st.groupCodes[groupID]
	if rows == nil {
		rows = map[string]model.GroupPermission{}
		r.st.groupCodes[groupID] = rows
	}
	now := time.Now()
	for _, code := range codes {
		if _, ok := rows[code]; ok {
			continue
		}
		rows[code] = model.GroupPermission{GroupID: groupID, Code: code, CreatedAt: now, CreatedBy: createdBy}
	}
	return nil
}

func (r *MemoryRepository) RemoveGroupCodes(ctx context.Context, groupID string, codes []string) error {
	unlock, err := r.write(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	rows := r.st.groupCodes[groupID]
	for _, code := range codes {
		delete(rows, code)
	}
	if len(rows) == 0 {
		delete(r.st.groupCodes, groupID)
	}
	return nil
}

func (r *MemoryRepository) DeleteGroupCodesByGroup(ctx context.Context, groupID string) ([]string, error) {
	unlock, err := r.write(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	codes := sortedKeys(r.st.groupCodes[groupID])
	delete(r.st.groupCodes, groupID)
	return codes, nil
}

func (r *MemoryRepository) FindGroupsGrantingCode(ctx context.Context, code string) ([]string, error) {
	defer r.read(ctx)()

	out := []string{}
	for groupID, rows := range r.st.groupCodes {
		if _, ok := rows[code]; ok {
			out = append(out, groupID)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (r *MemoryRepository) RemoveCodeFromAllGroups(ctx context.Context, code string) error {
	unlock, err := r.write(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	for groupID, rows := range r.st.groupCodes {
		delete(rows, code)
		if len(rows) == 0 {
			delete(r.st.groupCodes, groupID)
		}
	}
	return nil
}

// --- users ---

func (r *MemoryRepository) CreateUser(ctx context.Context, u *model.User) error {
	unlock, err := r.write(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	if _, ok := r.st.users[u.ID]; ok {
		return ErrDuplicate
	}
	u.CreatedAt = time.Now()
	r.st.users[u.ID] = *u
	return nil
}

func (r *MemoryRepository) GetUser(ctx context.Context, id string) (*model.User, error) {
	defer r.read(ctx)()

	u, ok := r.st.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (r *MemoryRepository) GetUsers(ctx context.Context, ids []string) ([]*model.User, error) {
	defer r.read(ctx)()

	out := []*model.User{}
	seen := map[string]bool{}
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if u, ok := r.st.users[id]; ok {
			out = append(out, &u)
		}
	}
	return out, nil
}

func (r *MemoryRepository) DeleteUser(ctx context.Context, id string) error {
	unlock, err := r.write(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	if _, ok := r.st.users[id]; !ok {
		return ErrNotFound
	}
	delete(r.st.users, id)
	return nil
}

// --- user -> group relation ---

func (r *MemoryRepository) GetUserGroupIDs(ctx context.Context, userID string) ([]string, error) {
	defer r.read(ctx)()
	return sortedKeys(r.st.memberships[userID]), nil
}

func (r *MemoryRepository) GetGroupUserIDs(ctx context.Context, groupID string) ([]string, error) {
	defer r.read(ctx)()

	out := []string{}
	for userID, rows := range r.st.memberships {
		if _, ok := rows[groupID]; ok {
			out = append(out, userID)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (r *MemoryRepository) AddMemberships(ctx context.Context, rows []model.UserGroup) error {
	unlock, err := r.write(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	now := time.Now()
	for _, row := range rows {
		edges := r.st.memberships[row.UserID]
		if edges == nil {
			edges = map[string]model.UserGroup{}
			r.st.memberships[row.UserID] = edges
		}
		if _, ok := edges[row.GroupID]; ok {
			continue
		}
		row.CreatedAt = now
		edges[row.GroupID] = row
	}
	return nil
}

func (r *MemoryRepository) RemoveMemberships(ctx context.Context, rows []model.UserGroup) error {
	unlock, err := r.write(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	for _, row := range rows {
		edges := r.st.memberships[row.UserID]
		delete(edges, row.GroupID)
		if len(edges) == 0 {
			delete(r.st.memberships, row.UserID)
		}
	}
	return nil
}

func (r *MemoryRepository) DeleteMembershipsByUser(ctx context.Context, userID string) ([]string, error) {
	unlock, err := r.write(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	groupIDs := sortedKeys(r.st.memberships[userID])
	delete(r.st.memberships, userID)
	return groupIDs, nil
}

func (r *MemoryRepository) DeleteMembershipsByGroup(ctx context.Context, groupID string) ([]string, error) {
	unlock, err := r.write(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	userIDs := []string{}
	for userID, edges := range r.st.memberships {
		if _, ok := edges[groupID]; !ok {
			continue
		}
		delete(edges, groupID)
		if len(edges) == 0 {
			delete(r.st.memberships, userID)
		}
		userIDs = append(userIDs, userID)
	}
	sort.Strings(userIDs)
	return userIDs, nil
}

// --- activity records ---

func (r *MemoryRepository) CreateActivity(ctx context.Context, record *model.ActivityRecord) error {
	unlock, err := r.write(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	for _, existing := range r.st.activities {
		if existing.ID == record.ID {
			return ErrDuplicate
		}
	}
	r.st.activities = append(r.st.activities, *record)
	return nil
}

func (r *MemoryRepository) FindActivities(ctx context.Context, f model.ActivityFilter) ([]*model.ActivityRecord, int64, error) {
	defer r.read(ctx)()

	text := strings.ToLower(f.Text)
	matched := []*model.ActivityRecord{}
	for i := len(r.st.activities) - 1; i >= 0; i-- {
		rec := r.st.activities[i]
		if f.ActorID != "" && (rec.ActorID == nil || *rec.ActorID != f.ActorID) {
			continue
		}
		if f.Action != "" && rec.Action != f.Action {
			continue
		}
		if f.Resource != "" && rec.Resource != f.Resource {
			continue
		}
		if f.ResourceID != "" && rec.ResourceID != f.ResourceID {
			continue
		}
		if f.Status != "" && rec.Status != f.Status {
			continue
		}
		if text != "" &&
			!strings.Contains(strings.ToLower(rec.Label), text) &&
			!strings.Contains(strings.ToLower(rec.ResourceID), text) {
			continue
		}
		if f.StartTime != nil && rec.CreatedAt.Before(*f.StartTime) {
			continue
		}
		if f.EndTime != nil && rec.CreatedAt.After(*f.EndTime) {
			continue
		}
		matched = append(matched, &rec)
	}

	// newest first; later inserts win ties
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := int64(len(matched))
	return paginate(matched, f.Page, f.Size), total, nil
}

func paginate[T any](items []T, page, limit int) []T {
	if limit <= 0 {
		return items
	}
	if page <= 0 {
		page = 1
	}
	start := (page - 1) * limit
	if start >= len(items) {
		return []T{}
	}
	end := start + limit
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
