package inmemdb

import (
	"sync"

	"github.com/shulesoft/shule/core/account"
	"github.com/shulesoft/shule/core/department"
	"github.com/shulesoft/shule/core/messaging"
)

type (
	identityTable struct {
		mutex sync.RWMutex
		table map[string]*account.Identity
	}

	profileTable struct {
		mutex sync.RWMutex
		table map[string]*account.Profile
	}

	messageTable struct {
		mutex sync.RWMutex
		table map[string]*messaging.Message
	}

	departmentTable struct {
		mutex sync.RWMutex
		table map[string]*department.Department
	}

	DB struct {
		identity   *identityTable
		profile    *profileTable
		message    *messageTable
		department *departmentTable
	}
)

func NewDB() *DB {
	return &DB{
		identity:   &identityTable{table: make(map[string]*account.Identity)},
		profile:    &profileTable{table: make(map[string]*account.Profile)},
		message:    &messageTable{table: make(map[string]*messaging.Message)},
		department: &departmentTable{table: make(map[string]*department.Department)},
	}
}
