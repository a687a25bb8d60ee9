package inmemdb

import (
	"context"
	"sort"

	"github.com/shulesoft/shule/core/department"
)

type departmentRepository struct {
	departments *departmentTable
}

func NewDepartmentRepository(db *DB) department.Repository {
	return &departmentRepository{departments: db.department}
}

func (repo *departmentRepository) CreateDepartment(_ context.Context, dept department.Department) (department.Department, error) {
	repo.departments.mutex.Lock()
	defer repo.departments.mutex.Unlock()

	repo.departments.table[dept.ID] = &dept
	return dept, nil
}

func (repo *departmentRepository) GetDepartment(_ context.Context, id string) (department.Department, error) {
	repo.departments.mutex.RLock()
	defer repo.departments.mutex.RUnlock()

	if dept, ok := repo.departments.table[id]; ok {
		return *dept, nil
	}
	return department.Department{}, department.ErrNotFound
}

func (repo *departmentRepository) QueryDepartments(_ context.Context) ([]department.Department, error) {
	repo.departments.mutex.RLock()
	defer repo.departments.mutex.RUnlock()

	depts := make([]department.Department, 0, len(repo.departments.table))
	for _, dept := range repo.departments.table {
		depts = append(depts, *dept)
	}
	sort.Slice(depts, func(i, j int) bool { return depts[i].Name < depts[j].Name })
	return depts, nil
}

func (repo *departmentRepository) DeleteDepartmentsByID(_ context.Context, ids []string) (int, error) {
	repo.departments.mutex.Lock()
	defer repo.departments.mutex.Unlock()

	var cnt int
	for _, id := range ids {
		if _, ok := repo.departments.table[id]; ok {
			delete(repo.departments.table, id)
			cnt++
		}
	}
	return cnt, nil
}
