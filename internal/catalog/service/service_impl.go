package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	catalogdomain "github.com/aspirepayments/aspire-payments-web/internal/catalog/domain"
	tenantdomain "github.com/aspirepayments/aspire-payments-web/internal/tenant/domain"
)

type Params struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	GenID  *snowflake.Node
	Tenant tenantdomain.Provisioner
}

type Service struct {
	db     *gorm.DB
	log    *zap.Logger
	genID  *snowflake.Node
	tenant tenantdomain.Provisioner
}

func NewService(p Params) catalogdomain.Service {
	return &Service{
		db:     p.DB,
		log:    p.Log.Named("catalog.service"),
		genID:  p.GenID,
		tenant: p.Tenant,
	}
}

func (s *Service) Create(ctx context.Context, merchantID snowflake.ID, input catalogdomain.ItemInput) (catalogdomain.Item, error) {
	var out catalogdomain.Item
	name := strings.TrimSpace(input.Name)
	if name == "" || input.UnitPrice < 0 {
		return out, catalogdomain.ErrInvalidItem
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		merchant, err := s.tenant.EnsureMerchantTx(ctx, tx, merchantID)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		out = catalogdomain.Item{
			ID:          s.genID.Generate(),
			MerchantID:  merchant.ID,
			Name:        name,
			Description: trimPtr(input.Description),
			UnitPrice:   input.UnitPrice,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		return tx.WithContext(ctx).Create(&out).Error
	})
	return out, err
}

func (s *Service) Get(ctx context.Context, merchantID snowflake.ID, id snowflake.ID) (catalogdomain.Item, error) {
	var row catalogdomain.Item
	err := s.db.WithContext(ctx).
		Where("merchant_id = ? AND id = ?", merchantID, id).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return row, catalogdomain.ErrItemNotFound
		}
		return row, err
	}
	return row, nil
}

func (s *Service) Update(ctx context.Context, merchantID snowflake.ID, id snowflake.ID, input catalogdomain.ItemInput) (catalogdomain.Item, error) {
	var out catalogdomain.Item
	name := strings.TrimSpace(input.Name)
	if name == "" || input.UnitPrice < 0 {
		return out, catalogdomain.ErrInvalidItem
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row catalogdomain.Item
		err := tx.WithContext(ctx).
			Where("merchant_id = ? AND id = ?", merchantID, id).
			First(&row).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return catalogdomain.ErrItemNotFound
			}
			return err
		}

		row.Name = name
		row.Description = trimPtr(input.Description)
		row.UnitPrice = input.UnitPrice
		row.UpdatedAt = time.Now().UTC()
		if err := tx.WithContext(ctx).Save(&row).Error; err != nil {
			return err
		}
		out = row
		return nil
	})
	return out, err
}

func (s *Service) Delete(ctx context.Context, merchantID snowflake.ID, id snowflake.ID) error {
	result := s.db.WithContext(ctx).
		Where("merchant_id = ? AND id = ?", merchantID, id).
		Delete(&catalogdomain.Item{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return catalogdomain.ErrItemNotFound
	}
	return nil
}

func (s *Service) List(ctx context.Context, merchantID snowflake.ID) ([]catalogdomain.Item, error) {
	var rows []catalogdomain.Item
	err := s.db.WithContext(ctx).
		Where("merchant_id = ?", merchantID).
		Order("name").
		Find(&rows).Error
	return rows, err
}

func trimPtr(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
