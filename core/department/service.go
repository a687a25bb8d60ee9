package department

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var ErrNotFound = errors.New("department not found")

type (
	Repository interface {
		CreateDepartment(ctx context.Context, dept Department) (Department, error)
		GetDepartment(ctx context.Context, id string) (Department, error)
		QueryDepartments(ctx context.Context) ([]Department, error)
		DeleteDepartmentsByID(ctx context.Context, ids []string) (int, error)
	}

	Service interface {
		Create(ctx context.Context, nd NewDepartment) (Department, error)
		Get(ctx context.Context, id string) (Department, error)
		Query(ctx context.Context) ([]Department, error)
		Delete(ctx context.Context, ids ...string) error
	}

	service struct {
		repo Repository
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (svc *service) Create(ctx context.Context, nd NewDepartment) (Department, error) {
	now := time.Now().UTC()
	dept := Department{
		ID:        uuid.New().String(),
		Name:      nd.Name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return svc.repo.CreateDepartment(ctx, dept)
}

func (svc *service) Get(ctx context.Context, id string) (Department, error) {
	return svc.repo.GetDepartment(ctx, id)
}

func (svc *service) Query(ctx context.Context) ([]Department, error) {
	return svc.repo.QueryDepartments(ctx)
}

func (svc *service) Delete(ctx context.Context, ids ...string) error {
	_, err := svc.repo.DeleteDepartmentsByID(ctx, ids)
	return errors.Wrap(err, "deleting departments")
}
