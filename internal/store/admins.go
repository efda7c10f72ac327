package store

import (
	"context"
	"fmt"

	"github.com/bizense/bizense-manager/internal/dependency"
	"github.com/bizense/bizense-manager/internal/entity"
	"github.com/google/uuid"
)

type adminStore struct {
	*PGStore
}

// Admin returns an object implementing Admin interface
func (ps *PGStore) Admin() dependency.Admin {
	return &adminStore{
		PGStore: ps,
	}
}

func (as *adminStore) AddAdmin(ctx context.Context, email, pwHash string) (uuid.UUID, error) {
	id := uuid.New()
	query := `
	INSERT INTO admins (id, email, password_hash, created_at)
	VALUES (:id, :email, :passwordHash, :createdAt)`
	err := ExecNamed(ctx, as.db, query, map[string]any{
		"id":           id,
		"email":        email,
		"passwordHash": pwHash,
		"createdAt":    as.Now(),
	})
	if err != nil {
		if as.IsErrUniqueViolation(err) {
			return uuid.Nil, fmt.Errorf("admin with email %s already exists", email)
		}
		return uuid.Nil, fmt.Errorf("can't add admin: %w", err)
	}
	return id, nil
}

func (as *adminStore) DeleteAdmin(ctx context.Context, email string) error {
	query := `DELETE FROM admins WHERE email = :email`
	n, err := ExecNamedAffected(ctx, as.db, query, map[string]any{
		"email": email,
	})
	if err != nil {
		return fmt.Errorf("can't delete admin: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("admin with email %s not found", email)
	}
	return nil
}

func (as *adminStore) GetAdminByEmail(ctx context.Context, email string) (*entity.Admin, error) {
	query := `
	SELECT id, email, password_hash, created_at FROM admins WHERE email = :email`
	admin, err := QueryNamedOne[entity.Admin](ctx, as.db, query, map[string]any{
		"email": email,
	})
	if err != nil {
		return nil, fmt.Errorf("can't get admin by email: %w", err)
	}
	return &admin, nil
}

func (as *adminStore) PasswordHashByEmail(ctx context.Context, email string) (string, error) {
	admin, err := as.GetAdminByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	return admin.PasswordHash, nil
}
