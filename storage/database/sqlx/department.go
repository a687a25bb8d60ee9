package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/shulesoft/shule/core/department"
)

type departmentRepository struct {
	db *sqlx.DB
}

var _ department.Repository = (*departmentRepository)(nil) // interface compliance check

func NewDepartmentRepository(db *sql.DB) *departmentRepository {
	return &departmentRepository{db: sqlx.NewDb(db, "postgres")}
}

type departmentRow struct {
	ID        string    `db:"id"`
	Name      string    `db:"name"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r departmentRow) department() department.Department {
	return department.Department(r)
}

func (repo departmentRepository) CreateDepartment(ctx context.Context, dept department.Department) (department.Department, error) {
	_, err := repo.db.ExecContext(ctx,
		`INSERT INTO department (id, name, created_at, updated_at) VALUES ($1, $2, $3, $4)`,
		dept.ID, dept.Name, dept.CreatedAt, dept.UpdatedAt,
	)
	if err != nil {
		return department.Department{}, errors.Wrap(err, "inserting department")
	}
	return dept, nil
}

func (repo departmentRepository) GetDepartment(ctx context.Context, id string) (department.Department, error) {
	var row departmentRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM department WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return department.Department{}, department.ErrNotFound
		}
		return department.Department{}, errors.Wrap(err, "finding department")
	}
	return row.department(), nil
}

func (repo departmentRepository) QueryDepartments(ctx context.Context) ([]department.Department, error) {
	var rows []departmentRow
	if err := repo.db.SelectContext(ctx, &rows, `SELECT * FROM department ORDER BY name`); err != nil {
		return nil, errors.Wrap(err, "querying departments")
	}
	depts := make([]department.Department, 0, len(rows))
	for _, row := range rows {
		depts = append(depts, row.department())
	}
	return depts, nil
}

func (repo departmentRepository) DeleteDepartmentsByID(ctx context.Context, ids []string) (int, error) {
	query, args, err := sqlx.In(`DELETE FROM department WHERE id IN (?)`, ids)
	if err != nil {
		return 0, errors.Wrap(err, "building delete query")
	}
	res, err := repo.db.ExecContext(ctx, repo.db.Rebind(query), args...)
	if err != nil {
		return 0, errors.Wrap(err, "deleting departments")
	}
	cnt, _ := res.RowsAffected()
	return int(cnt), nil
}
