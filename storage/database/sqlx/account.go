package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/shulesoft/shule/core"
	"github.com/shulesoft/shule/core/account"
)

type accountRepository struct {
	db *sqlx.DB
}

var _ account.Repository = (*accountRepository)(nil) // interface compliance check

func NewAccountRepository(db *sql.DB) *accountRepository {
	return &accountRepository{db: sqlx.NewDb(db, "postgres")}
}

type identityRow struct {
	ID           string       `db:"id"`
	Email        string       `db:"email"`
	PasswordHash []byte       `db:"password_hash"`
	CreatedAt    time.Time    `db:"created_at"`
	UpdatedAt    time.Time    `db:"updated_at"`
	LastLogin    sql.NullTime `db:"last_login"`
}

func (r identityRow) identity() account.Identity {
	return account.Identity{
		ID:           r.ID,
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
		LastLogin:    r.LastLogin.Time,
	}
}

type profileRow struct {
	ID             string         `db:"id"`
	Email          string         `db:"email"`
	FullName       string         `db:"full_name"`
	Role           string         `db:"role"`
	SubRole        string         `db:"sub_role"`
	DepartmentID   sql.NullString `db:"department_id"`
	Phone          string         `db:"phone"`
	Status         string         `db:"status"`
	ApprovalStatus string         `db:"approval_status"`
	CreatedAt      time.Time      `db:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at"`
}

func (r profileRow) profile() account.Profile {
	p := account.Profile{
		ID:             r.ID,
		Email:          r.Email,
		FullName:       r.FullName,
		Role:           account.Role(r.Role),
		SubRole:        account.SubRole(r.SubRole),
		Phone:          r.Phone,
		Status:         account.Status(r.Status),
		ApprovalStatus: r.ApprovalStatus,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
	if r.DepartmentID.Valid {
		p.DepartmentID = &r.DepartmentID.String
	}
	return p
}

// trapNoRowsErr maps psql "no rows" err to account.ErrNotFound
func trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return account.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo accountRepository) CheckEmailUniqueness(ctx context.Context, email string, excluded []account.Profile) error {
	query := `SELECT EXISTS (SELECT 1 FROM identity WHERE email = ?`
	args := []interface{}{email}
	if len(excluded) > 0 {
		ids := make([]string, 0, len(excluded))
		for _, p := range excluded {
			ids = append(ids, p.ID)
		}
		q, inArgs, err := sqlx.In(` AND id NOT IN (?)`, ids)
		if err != nil {
			return errors.Wrap(err, "building uniqueness query")
		}
		query += q
		args = append(args, inArgs...)
	}
	query += `)`

	var exists bool
	if err := repo.db.GetContext(ctx, &exists, repo.db.Rebind(query), args...); err != nil {
		return errors.Wrap(err, "checking email uniqueness")
	}
	if exists {
		return account.ErrEmailExists
	}
	return nil
}

func (repo accountRepository) CreateIdentity(ctx context.Context, idt account.Identity) (account.Identity, error) {
	idt.ID = uuid.New().String()
	_, err := repo.db.ExecContext(ctx,
		`INSERT INTO identity (id, email, password_hash, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		idt.ID, idt.Email, idt.PasswordHash, idt.CreatedAt, idt.UpdatedAt,
	)
	if err != nil {
		return account.Identity{}, errors.Wrap(err, "inserting identity")
	}
	return idt, nil
}

func (repo accountRepository) GetIdentity(ctx context.Context, filter account.GetFilter) (account.Identity, error) {
	var row identityRow
	var err error

	switch {
	case filter.ID != "":
		if _, err = uuid.Parse(filter.ID); err != nil {
			return account.Identity{}, account.ErrNotFound
		}
		err = repo.db.GetContext(ctx, &row, `SELECT * FROM identity WHERE id = $1`, filter.ID)
	case filter.Email != "":
		err = repo.db.GetContext(ctx, &row, `SELECT * FROM identity WHERE email = $1`, filter.Email)
	default:
		return account.Identity{}, account.ErrNotFound
	}
	if err != nil {
		return account.Identity{}, trapNoRowsErr(err, "finding identity")
	}
	return row.identity(), nil
}

func (repo accountRepository) UpdateIdentity(ctx context.Context, idt account.Identity) (account.Identity, error) {
	lastLogin := sql.NullTime{Time: idt.LastLogin.UTC(), Valid: !idt.LastLogin.IsZero()}
	_, err := repo.db.ExecContext(ctx,
		`UPDATE identity SET email = $2, password_hash = $3, updated_at = $4, last_login = $5 WHERE id = $1`,
		idt.ID, idt.Email, idt.PasswordHash, idt.UpdatedAt.UTC(), lastLogin,
	)
	if err != nil {
		return account.Identity{}, errors.Wrap(err, "updating identity")
	}
	return idt, nil
}

func (repo accountRepository) DeleteIdentitiesByID(ctx context.Context, ids []string) (int, error) {
	query, args, err := sqlx.In(`DELETE FROM identity WHERE id IN (?)`, ids)
	if err != nil {
		return 0, errors.Wrap(err, "building delete query")
	}
	res, err := repo.db.ExecContext(ctx, repo.db.Rebind(query), args...)
	if err != nil {
		return 0, errors.Wrap(err, "deleting identities")
	}
	cnt, _ := res.RowsAffected()
	return int(cnt), nil
}

func (repo accountRepository) CreateProfile(ctx context.Context, p account.Profile) (account.Profile, error) {
	var dept sql.NullString
	if p.DepartmentID != nil {
		dept = sql.NullString{String: *p.DepartmentID, Valid: true}
	}
	_, err := repo.db.ExecContext(ctx,
		`INSERT INTO profile (id, email, full_name, role, sub_role, department_id, phone, status, approval_status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		p.ID, p.Email, p.FullName, string(p.Role), string(p.SubRole), dept, p.Phone,
		string(p.Status), p.ApprovalStatus, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return account.Profile{}, errors.Wrap(err, "inserting profile")
	}
	return p, nil
}

func (repo accountRepository) GetProfile(ctx context.Context, filter account.GetFilter) (account.Profile, error) {
	var row profileRow
	var err error

	switch {
	case filter.ID != "":
		if _, err = uuid.Parse(filter.ID); err != nil {
			return account.Profile{}, account.ErrNotFound
		}
		err = repo.db.GetContext(ctx, &row, `SELECT * FROM profile WHERE id = $1`, filter.ID)
	case filter.Email != "":
		err = repo.db.GetContext(ctx, &row, `SELECT * FROM profile WHERE email = $1`, filter.Email)
	default:
		return account.Profile{}, account.ErrNotFound
	}
	if err != nil {
		return account.Profile{}, trapNoRowsErr(err, "finding profile")
	}
	return row.profile(), nil
}

func (repo accountRepository) QueryProfiles(ctx context.Context, filter *account.QueryFilter, ordering []core.DBOrdering) ([]account.Profile, error) {
	query := `SELECT * FROM profile`
	var conds []string
	var args []interface{}

	if filter != nil {
		// profiles with FullName or Email matching the search keyword
		if filter.Search != "" {
			conds = append(conds, `(full_name ILIKE ? OR email ILIKE ?)`)
			val := "%" + filter.Search + "%"
			args = append(args, val, val)
		}
		if len(filter.Roles) > 0 {
			roles := make([]string, 0, len(filter.Roles))
			for _, r := range filter.Roles {
				roles = append(roles, string(r))
			}
			q, inArgs, err := sqlx.In(`role IN (?)`, roles)
			if err != nil {
				return nil, errors.Wrap(err, "building role filter")
			}
			conds = append(conds, q)
			args = append(args, inArgs...)
		}
		if len(filter.Statuses) > 0 {
			statuses := make([]string, 0, len(filter.Statuses))
			for _, s := range filter.Statuses {
				statuses = append(statuses, string(s))
			}
			q, inArgs, err := sqlx.In(`status IN (?)`, statuses)
			if err != nil {
				return nil, errors.Wrap(err, "building status filter")
			}
			conds = append(conds, q)
			args = append(args, inArgs...)
		}
		if filter.DepartmentID != "" {
			conds = append(conds, `department_id = ?`)
			args = append(args, filter.DepartmentID)
		}
		if !filter.CreatedFrom.IsZero() {
			conds = append(conds, `created_at >= ?`)
			args = append(args, filter.CreatedFrom.UTC())
		}
		if !filter.CreatedTo.IsZero() {
			conds = append(conds, `created_at <= ?`)
			args = append(args, filter.CreatedTo.UTC())
		}
	}
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, ` AND `)
	}

	if len(ordering) > 0 {
		orderList := make([]string, 0, len(ordering))
		for _, ord := range ordering {
			orderList = append(orderList, ord.String())
		}
		query += ` ORDER BY ` + strings.Join(orderList, ", ")
	} else {
		query += ` ORDER BY created_at DESC`
	}

	var rows []profileRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "querying profiles")
	}
	profiles := make([]account.Profile, 0, len(rows))
	for _, row := range rows {
		profiles = append(profiles, row.profile())
	}
	return profiles, nil
}

func (repo accountRepository) UpdateProfile(ctx context.Context, p account.Profile) (account.Profile, error) {
	var dept sql.NullString
	if p.DepartmentID != nil {
		dept = sql.NullString{String: *p.DepartmentID, Valid: true}
	}
	query := `UPDATE profile SET email = $2, full_name = $3, role = $4, sub_role = $5, department_id = $6,
	          phone = $7, status = $8, approval_status = $9, updated_at = $10 WHERE id = $1`
	res, err := repo.db.ExecContext(ctx, query,
		p.ID, p.Email, p.FullName, string(p.Role), string(p.SubRole), dept, p.Phone,
		string(p.Status), p.ApprovalStatus, p.UpdatedAt.UTC(),
	)
	if err != nil {
		return account.Profile{}, errors.Wrap(err, "updating profile")
	}
	if cnt, _ := res.RowsAffected(); cnt == 0 {
		return account.Profile{}, account.ErrNotFound
	}
	return repo.GetProfile(ctx, account.GetFilter{ID: p.ID})
}

func (repo accountRepository) DeleteProfilesByID(ctx context.Context, ids []string) (int, error) {
	query, args, err := sqlx.In(`DELETE FROM profile WHERE id IN (?)`, ids)
	if err != nil {
		return 0, errors.Wrap(err, "building delete query")
	}
	res, err := repo.db.ExecContext(ctx, repo.db.Rebind(query), args...)
	if err != nil {
		return 0, errors.Wrap(err, "deleting profiles")
	}
	cnt, _ := res.RowsAffected()
	return int(cnt), nil
}
