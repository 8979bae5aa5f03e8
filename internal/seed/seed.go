package seed

import (
	"context"
	"errors"
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/parlour-dev/parlour/backend/internal/domain"
	"github.com/parlour-dev/parlour/backend/internal/repository"
	"github.com/parlour-dev/parlour/backend/internal/utils"
	"golang.org/x/crypto/bcrypt"
)

var Users = []domain.User{
	{Name: "Super Admin", Email: "superadmin@parlour.com", Role: domain.RoleSuperAdmin},
	{Name: "Admin User", Email: "admin@parlour.com", Role: domain.RoleAdmin},
}

var Employees = []domain.Employee{
	{Name: "Mohan", Email: "Mohan@parlour.com", Role: "Hair Stylist", Department: "Hair", IsActive: true},
	{Name: "Vikram", Email: "Vikram@parlour.com", Role: "Nail Technician", Department: "Nails", IsActive: true},
	{Name: "Anshita", Email: "Anshita@parlour.com", Role: "Massage Therapist", Department: "Spa", IsActive: true},
	{Name: "Sarah", Email: "sarah@parlour.com", Role: "Receptionist", Department: "Front Desk", IsActive: true},
	{Name: "Virat", Email: "virat@parlour.com", Role: "Makeup Artist", Department: "Beauty", IsActive: true},
}

// SeedUsers 创建管理账号，已存在的账号会被跳过。返回新建的数量
func SeedUsers(ctx context.Context, repo repository.Repository, password string) (int, error) {
	passwordHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return 0, goerr.Wrap(err, "failed to hash seed password")
	}

	created := 0
	for _, u := range Users {
		user := u
		user.PasswordHash = string(passwordHash)

		if err := repo.CreateUser(ctx, &user); err != nil {
			if errors.Is(err, repository.ErrDuplicateEmail) {
				slog.Info("用户已存在，跳过", "email", user.Email)
				continue
			}
			return created, err
		}
		created++
	}

	return created, nil
}

// SeedEmployees 创建示例员工，已存在的员工会被跳过
func SeedEmployees(ctx context.Context, repo repository.Repository) (int, error) {
	created := 0
	for _, e := range Employees {
		employee := e

		if err := repo.CreateEmployee(ctx, &employee); err != nil {
			if errors.Is(err, repository.ErrDuplicateEmail) {
				slog.Info("员工已存在，跳过", "email", employee.Email)
				continue
			}
			return created, err
		}
		created++
	}

	return created, nil
}

// SeedRandomEmployees 插入 n 个随机员工，邮箱冲突的记录会被跳过
func SeedRandomEmployees(ctx context.Context, repo repository.Repository, n int, emailDomain string) (int, error) {
	if n <= 0 {
		return 0, goerr.New("count must be positive", goerr.V("n", n))
	}

	created := 0
	for i := 0; i < n; i++ {
		employee := utils.GenerateRandomEmployee(emailDomain)
		if err := repo.CreateEmployee(ctx, employee); err != nil {
			if errors.Is(err, repository.ErrDuplicateEmail) {
				slog.Warn("随机员工邮箱冲突，跳过", "email", employee.Email)
				continue
			}
			return created, err
		}
		created++
	}

	return created, nil
}
