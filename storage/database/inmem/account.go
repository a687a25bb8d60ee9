package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/shulesoft/shule/core"
	"github.com/shulesoft/shule/core/account"
)

type accountRepository struct {
	identities *identityTable
	profiles   *profileTable
}

func NewAccountRepository(db *DB) account.Repository {
	return &accountRepository{identities: db.identity, profiles: db.profile}
}

func (repo *accountRepository) CheckEmailUniqueness(_ context.Context, email string, excluded []account.Profile) error {
	repo.identities.mutex.RLock()
	defer repo.identities.mutex.RUnlock()

	exclIDs := make(map[string]struct{}, len(excluded))
	for _, p := range excluded {
		exclIDs[p.ID] = struct{}{}
	}

	for _, idt := range repo.identities.table {
		if _, ok := exclIDs[idt.ID]; ok {
			continue
		}
		if idt.Email == email {
			return account.ErrEmailExists
		}
	}
	return nil
}

func (repo *accountRepository) CreateIdentity(_ context.Context, idt account.Identity) (account.Identity, error) {
	repo.identities.mutex.Lock()
	defer repo.identities.mutex.Unlock()

	idt.ID = uuid.New().String()
	repo.identities.table[idt.ID] = &idt
	return idt, nil
}

func (repo *accountRepository) GetIdentity(_ context.Context, filter account.GetFilter) (account.Identity, error) {
	repo.identities.mutex.RLock()
	defer repo.identities.mutex.RUnlock()

	if filter.ID != "" {
		if idt, ok := repo.identities.table[filter.ID]; ok {
			return *idt, nil
		}
		return account.Identity{}, account.ErrNotFound
	}
	for _, idt := range repo.identities.table {
		if idt.Email == filter.Email {
			return *idt, nil
		}
	}
	return account.Identity{}, account.ErrNotFound
}

func (repo *accountRepository) UpdateIdentity(_ context.Context, idt account.Identity) (account.Identity, error) {
	repo.identities.mutex.Lock()
	defer repo.identities.mutex.Unlock()

	if _, ok := repo.identities.table[idt.ID]; !ok {
		return account.Identity{}, account.ErrNotFound
	}
	repo.identities.table[idt.ID] = &idt
	return idt, nil
}

func (repo *accountRepository) DeleteIdentitiesByID(_ context.Context, ids []string) (int, error) {
	repo.identities.mutex.Lock()
	defer repo.identities.mutex.Unlock()

	var cnt int
	for _, id := range ids {
		if _, ok := repo.identities.table[id]; ok {
			delete(repo.identities.table, id)
			cnt++
		}
	}
	return cnt, nil
}

func (repo *accountRepository) CreateProfile(_ context.Context, p account.Profile) (account.Profile, error) {
	repo.profiles.mutex.Lock()
	defer repo.profiles.mutex.Unlock()

	repo.profiles.table[p.ID] = &p
	return p, nil
}

func (repo *accountRepository) GetProfile(_ context.Context, filter account.GetFilter) (account.Profile, error) {
	repo.profiles.mutex.RLock()
	defer repo.profiles.mutex.RUnlock()

	if filter.ID != "" {
		if p, ok := repo.profiles.table[filter.ID]; ok {
			return *p, nil
		}
		return account.Profile{}, account.ErrNotFound
	}
	for _, p := range repo.profiles.table {
		if p.Email == filter.Email {
			return *p, nil
		}
	}
	return account.Profile{}, account.ErrNotFound
}

func (repo *accountRepository) QueryProfiles(_ context.Context, filter *account.QueryFilter, _ []core.DBOrdering) ([]account.Profile, error) {
	repo.profiles.mutex.RLock()
	defer repo.profiles.mutex.RUnlock()

	profiles := make([]account.Profile, 0, len(repo.profiles.table))
	for _, p := range repo.profiles.table {
		if matchesFilter(*p, filter) {
			profiles = append(profiles, *p)
		}
	}
	// newest first; custom orderings are a SQL concern
	sort.Slice(profiles, func(i, j int) bool { return profiles[i].CreatedAt.After(profiles[j].CreatedAt) })
	return profiles, nil
}

func matchesFilter(p account.Profile, filter *account.QueryFilter) bool {
	if filter == nil {
		return true
	}
	if filter.Search != "" {
		kw := strings.ToLower(filter.Search)
		if !strings.Contains(strings.ToLower(p.FullName), kw) && !strings.Contains(strings.ToLower(p.Email), kw) {
			return false
		}
	}
	if len(filter.Roles) > 0 && !containsRole(filter.Roles, p.Role) {
		return false
	}
	if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, p.Status) {
		return false
	}
	if filter.DepartmentID != "" && (p.DepartmentID == nil || *p.DepartmentID != filter.DepartmentID) {
		return false
	}
	if !filter.CreatedFrom.IsZero() && p.CreatedAt.Before(filter.CreatedFrom) {
		return false
	}
	if !filter.CreatedTo.IsZero() && p.CreatedAt.After(filter.CreatedTo) {
		return false
	}
	return true
}

func containsRole(roles []account.Role, role account.Role) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

func containsStatus(statuses []account.Status, status account.Status) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

func (repo *accountRepository) UpdateProfile(_ context.Context, p account.Profile) (account.Profile, error) {
	repo.profiles.mutex.Lock()
	defer repo.profiles.mutex.Unlock()

	if _, ok := repo.profiles.table[p.ID]; !ok {
		return account.Profile{}, account.ErrNotFound
	}
	repo.profiles.table[p.ID] = &p
	return p, nil
}

func (repo *accountRepository) DeleteProfilesByID(_ context.Context, ids []string) (int, error) {
	repo.profiles.mutex.Lock()
	defer repo.profiles.mutex.Unlock()

	var cnt int
	for _, id := range ids {
		if _, ok := repo.profiles.table[id]; ok {
			delete(repo.profiles.table, id)
			cnt++
		}
	}
	return cnt, nil
}
