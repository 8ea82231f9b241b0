package db

import (
	"context"
	"time"

	"github.com/uptrace/bun"

	"wifihub/internal/models"
)

type DB struct {
	Bun *bun.DB
}

func (d *DB) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := d.Bun.NewSelect().
		Model(&user).
		Where("u.email = ?", email).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (d *DB) FindByID(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	err := d.Bun.NewSelect().
		Model(&user).
		Where("u.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// EmailTakenByOther reports whether a user other than userID owns email.
func (d *DB) EmailTakenByOther(ctx context.Context, email string, userID int64) (bool, error) {
	return d.Bun.NewSelect().
		Model((*models.User)(nil)).
		Where("u.email = ?", email).
		Where("u.id != ?", userID).
		Exists(ctx)
}

func (d *DB) Create(ctx context.Context, user *models.User) error {
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	_, err := d.Bun.NewInsert().Model(user).Exec(ctx)
	return err
}

// Update writes the profile columns and, when changed, the password hash.
func (d *DB) Update(ctx context.Context, user *models.User, withPassword bool) error {
	user.UpdatedAt = time.Now().UTC()
	columns := []string{"name", "email", "phone", "updated_at"}
	if withPassword {
		columns = append(columns, "password_hash")
	}
	_, err := d.Bun.NewUpdate().
		Model(user).
		Column(columns...).
		WherePK().
		Exec(ctx)
	return err
}
