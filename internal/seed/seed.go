package seed

import (
	"context"

	"github.com/musayazlik/postify/internal/entity"
	"github.com/musayazlik/postify/internal/repository"
	"github.com/musayazlik/postify/internal/service"
)

const (
	TestUserEmail    = "test@example.com"
	TestUserName     = "Test User"
	TestUserPassword = "password"
)

// Users creates or refreshes the verified development account.
func Users(ctx context.Context, users repository.UserRepository, hasher service.PasswordHasher, clock service.Clock) (*entity.User, error) {
	hash, err := hasher.Hash(TestUserPassword)
	if err != nil {
		return nil, err
	}
	verifiedAt := clock.Now()

	user, err := users.FindByEmail(ctx, TestUserEmail)
	if err != nil {
		return nil, err
	}
	if user == nil {
		user = &entity.User{
			Name:            TestUserName,
			Email:           TestUserEmail,
			PasswordHash:    hash,
			EmailVerifiedAt: &verifiedAt,
		}
		return user, users.Create(ctx, user)
	}

	user.Name = TestUserName
	user.PasswordHash = hash
	if user.EmailVerifiedAt == nil {
		user.EmailVerifiedAt = &verifiedAt
	}
	return user, users.Update(ctx, user)
}
