package service

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Payphone-Digital/marketplace-auth/internal/constants"
	apperrors "github.com/Payphone-Digital/marketplace-auth/internal/errors"
	"github.com/Payphone-Digital/marketplace-auth/internal/model"
	"github.com/Payphone-Digital/marketplace-auth/pkg/cache"
	ctxutil "github.com/Payphone-Digital/marketplace-auth/pkg/context"
	"github.com/Payphone-Digital/marketplace-auth/pkg/logger"
	"gorm.io/gorm"
)

const rolePermissionsTTL = time.Minute

type RoleService struct {
	roles RoleStore
	cache *cache.Cache
}

func NewRoleService(roles RoleStore, c *cache.Cache) *RoleService {
	return &RoleService{roles: roles, cache: c}
}

func rolePermissionsKey(roleID uint) string {
	return constants.CacheKeyRolePermissions + strconv.FormatUint(uint64(roleID), 10)
}

// Permissions returns the permissions granted by roleID, served from the
// in-process cache for a short time.
func (s *RoleService) Permissions(ctx context.Context, roleID uint) ([]string, error) {
	key := rolePermissionsKey(roleID)
	if cached, ok := s.cache.Get(key); ok {
		return cached.([]string), nil
	}

	role, err := s.roles.GetByID(ctx, roleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.cache.Set(key, []string{}, rolePermissionsTTL)
			return nil, nil
		}
		return nil, err
	}

	perms := role.PermissionList()
	if perms == nil {
		perms = []string{}
	}
	s.cache.Set(key, perms, rolePermissionsTTL)
	return perms, nil
}

func (s *RoleService) List(ctx context.Context, limit, offset int) ([]model.Role, int64, error) {
	ctx = ctxutil.WithFunction(ctx, "service", "ListRoles")

	roles, total, err := s.roles.List(ctx, limit, offset)
	if err != nil {
		logger.ErrorWithContext(ctx, "Failed to list roles").
			Err(err).
			Log()
		return nil, 0, apperrors.WrapError(apperrors.ErrInternal, err)
	}
	return roles, total, nil
}

func (s *RoleService) Get(ctx context.Context, id uint) (*model.Role, error) {
	ctx = ctxutil.WithFunction(ctx, "service", "GetRole")

	role, err := s.roles.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrRoleNotFound
		}
		return nil, apperrors.WrapError(apperrors.ErrInternal, err)
	}
	return role, nil
}

// Create adds a role. Permission names are trimmed, de-duplicated and sorted.
func (s *RoleService) Create(ctx context.Context, name, description string, permissions []string) (*model.Role, error) {
	ctx = ctxutil.WithFunction(ctx, "service", "CreateRole")

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrValidation, "role name is required")
	}

	if _, err := s.roles.GetByName(ctx, name); err == nil {
		return nil, apperrors.WithMessage(apperrors.ErrValidation, "role name already exists")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.WrapError(apperrors.ErrInternal, err)
	}

	seen := make(map[string]struct{}, len(permissions))
	perms := make([]string, 0, len(permissions))
	for _, p := range permissions {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		perms = append(perms, p)
	}
	sort.Strings(perms)

	role := &model.Role{Name: name, Description: strings.TrimSpace(description)}
	if err := role.SetPermissions(perms); err != nil {
		return nil, apperrors.WrapError(apperrors.ErrInternal, err)
	}

	if err := s.roles.Create(ctx, role); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperrors.WithMessage(apperrors.ErrValidation, "role name already exists")
		}
		return nil, apperrors.WrapError(apperrors.ErrInternal, err)
	}

	// a lookup of this ID before it existed may have cached an empty set
	s.cache.DeletePrefix(constants.CacheKeyRolePermissions)

	logger.InfoWithContext(ctx, "Role created").
		Uint("role_id", role.ID).
		String("name", role.Name).
		Strings("permissions", perms).
		Log()

	return role, nil
}
