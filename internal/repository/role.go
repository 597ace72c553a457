package repository

import (
	"context"
	"time"

	"github.com/Payphone-Digital/marketplace-auth/internal/model"
	ctxutil "github.com/Payphone-Digital/marketplace-auth/pkg/context"
	"github.com/Payphone-Digital/marketplace-auth/pkg/logger"
	"gorm.io/gorm"
)

type RoleRepository struct {
	db *gorm.DB
}

func NewRoleRepository(db *gorm.DB) *RoleRepository {
	return &RoleRepository{db: db}
}

func (r *RoleRepository) GetByID(ctx context.Context, id uint) (*model.Role, error) {
	ctx = ctxutil.WithFunction(ctx, "repository", "RoleGetByID")

	var role model.Role
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&role).Error; err != nil {
		logger.DebugWithContext(ctx, "Role lookup failed").
			Uint("role_id", id).
			Err(err).
			Log()
		return nil, err
	}
	return &role, nil
}

func (r *RoleRepository) GetByName(ctx context.Context, name string) (*model.Role, error) {
	ctx = ctxutil.WithFunction(ctx, "repository", "RoleGetByName")

	var role model.Role
	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&role).Error; err != nil {
		return nil, err
	}
	return &role, nil
}

// List returns one page of roles ordered by name plus the total count.
func (r *RoleRepository) List(ctx context.Context, limit, offset int) ([]model.Role, int64, error) {
	ctx = ctxutil.WithFunction(ctx, "repository", "RoleList")

	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	start := time.Now()
	var (
		roles []model.Role
		total int64
	)

	query := r.db.WithContext(ctx).Model(&model.Role{})
	if err := query.Count(&total).Error; err != nil {
		logger.ErrorWithContext(ctx, "Failed to count roles").
			Err(err).
			Log()
		return nil, 0, err
	}

	if err := query.Order("name ASC").Limit(limit).Offset(offset).Find(&roles).Error; err != nil {
		logger.ErrorWithContext(ctx, "Failed to fetch roles").
			Int("limit", limit).
			Int("offset", offset).
			Duration(time.Since(start)).
			Err(err).
			Log()
		return nil, 0, err
	}

	logger.DebugWithContext(ctx, "Roles retrieved successfully").
		Int64("total", total).
		Int("returned_count", len(roles)).
		Duration(time.Since(start)).
		Log()

	return roles, total, nil
}

func (r *RoleRepository) Create(ctx context.Context, role *model.Role) error {
	ctx = ctxutil.WithFunction(ctx, "repository", "RoleCreate")

	start := time.Now()
	if err := r.db.WithContext(ctx).Create(role).Error; err != nil {
		logger.ErrorWithContext(ctx, "Failed to create role").
			String("name", role.Name).
			Duration(time.Since(start)).
			Err(err).
			Log()
		return err
	}

	logger.InfoWithContext(ctx, "Role created successfully").
		String("name", role.Name).
		Uint("role_id", role.ID).
		Duration(time.Since(start)).
		Log()

	return nil
}
