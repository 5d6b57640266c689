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

	"github.com/aspirepayments/aspire-payments-web/internal/cache"
	settingsdomain "github.com/aspirepayments/aspire-payments-web/internal/settings/domain"
	tenantdomain "github.com/aspirepayments/aspire-payments-web/internal/tenant/domain"
)

const defaultTermCacheTTL = 30 * time.Second

type Params struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	GenID  *snowflake.Node
	Tenant tenantdomain.Provisioner
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	tenant    tenantdomain.Provisioner
	termCache *cache.TTLCache[snowflake.ID, settingsdomain.PaymentTerm]
}

func NewService(p Params) settingsdomain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("settings.service"),
		genID:     p.GenID,
		tenant:    p.Tenant,
		termCache: cache.NewTTLCache[snowflake.ID, settingsdomain.PaymentTerm](),
	}
}

func validFeeMode(mode string) bool {
	switch mode {
	case settingsdomain.FeeModeNone, settingsdomain.FeeModeConvenience, settingsdomain.FeeModeService:
		return true
	}
	return false
}

func (s *Service) CreateFeePlan(ctx context.Context, merchantID snowflake.ID, input settingsdomain.FeePlanInput) (settingsdomain.FeePlan, error) {
	var out settingsdomain.FeePlan
	input.Name = strings.TrimSpace(input.Name)
	input.Mode = strings.ToLower(strings.TrimSpace(input.Mode))
	if input.Mode == "" {
		input.Mode = settingsdomain.FeeModeNone
	}
	if input.Name == "" || !validFeeMode(input.Mode) || input.ConvenienceFeeCents < 0 || input.ServiceFeeBps < 0 {
		return out, settingsdomain.ErrInvalidFeePlan
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		merchant, err := s.tenant.EnsureMerchantTx(ctx, tx, merchantID)
		if err != nil {
			return err
		}
		if input.IsDefault {
			if err := clearDefault(ctx, tx, &settingsdomain.FeePlan{}, merchant.ID); err != nil {
				return err
			}
		}
		now := time.Now().UTC()
		out = settingsdomain.FeePlan{
			ID:                  s.genID.Generate(),
			MerchantID:          merchant.ID,
			Name:                input.Name,
			Mode:                input.Mode,
			ConvenienceFeeCents: input.ConvenienceFeeCents,
			ServiceFeeBps:       input.ServiceFeeBps,
			IsDefault:           input.IsDefault,
			CreatedAt:           now,
			UpdatedAt:           now,
		}
		return tx.WithContext(ctx).Create(&out).Error
	})
	return out, err
}

func (s *Service) UpdateFeePlan(ctx context.Context, merchantID snowflake.ID, id snowflake.ID, input settingsdomain.FeePlanInput) (settingsdomain.FeePlan, error) {
	var out settingsdomain.FeePlan
	input.Name = strings.TrimSpace(input.Name)
	input.Mode = strings.ToLower(strings.TrimSpace(input.Mode))
	if input.Mode == "" {
		input.Mode = settingsdomain.FeeModeNone
	}
	if input.Name == "" || !validFeeMode(input.Mode) || input.ConvenienceFeeCents < 0 || input.ServiceFeeBps < 0 {
		return out, settingsdomain.ErrInvalidFeePlan
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row settingsdomain.FeePlan
		if err := findScoped(ctx, tx, &row, merchantID, id); err != nil {
			return err
		}
		if input.IsDefault && !row.IsDefault {
			if err := clearDefault(ctx, tx, &settingsdomain.FeePlan{}, merchantID); err != nil {
				return err
			}
		}
		row.Name = input.Name
		row.Mode = input.Mode
		row.ConvenienceFeeCents = input.ConvenienceFeeCents
		row.ServiceFeeBps = input.ServiceFeeBps
		row.IsDefault = input.IsDefault
		row.UpdatedAt = time.Now().UTC()
		if err := tx.WithContext(ctx).Save(&row).Error; err != nil {
			return err
		}
		out = row
		return nil
	})
	return out, err
}

func (s *Service) DeleteFeePlan(ctx context.Context, merchantID snowflake.ID, id snowflake.ID) error {
	return deleteScoped(ctx, s.db, &settingsdomain.FeePlan{}, merchantID, id)
}

func (s *Service) ListFeePlans(ctx context.Context, merchantID snowflake.ID) ([]settingsdomain.FeePlan, error) {
	var rows []settingsdomain.FeePlan
	err := s.db.WithContext(ctx).
		Where("merchant_id = ?", merchantID).
		Order("is_default DESC, name").
		Find(&rows).Error
	return rows, err
}

func (s *Service) SetDefaultFeePlan(ctx context.Context, merchantID snowflake.ID, id snowflake.ID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row settingsdomain.FeePlan
		if err := findScoped(ctx, tx, &row, merchantID, id); err != nil {
			return err
		}
		if err := clearDefault(ctx, tx, &settingsdomain.FeePlan{}, merchantID); err != nil {
			return err
		}
		return tx.WithContext(ctx).
			Model(&settingsdomain.FeePlan{}).
			Where("merchant_id = ? AND id = ?", merchantID, id).
			Updates(map[string]any{"is_default": true, "updated_at": time.Now().UTC()}).Error
	})
}

func (s *Service) DefaultFeePlan(ctx context.Context, merchantID snowflake.ID) (*settingsdomain.FeePlan, error) {
	var row settingsdomain.FeePlan
	err := s.db.WithContext(ctx).
		Where("merchant_id = ? AND is_default", merchantID).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (s *Service) GetFeePlan(ctx context.Context, merchantID snowflake.ID, id snowflake.ID) (settingsdomain.FeePlan, error) {
	var row settingsdomain.FeePlan
	err := findScoped(ctx, s.db, &row, merchantID, id)
	return row, err
}

func (s *Service) CreateTaxRate(ctx context.Context, merchantID snowflake.ID, input settingsdomain.TaxRateInput) (settingsdomain.TaxRate, error) {
	var out settingsdomain.TaxRate
	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" || input.RateBps < 0 {
		return out, settingsdomain.ErrInvalidTaxRate
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		merchant, err := s.tenant.EnsureMerchantTx(ctx, tx, merchantID)
		if err != nil {
			return err
		}
		if input.IsDefault {
			if err := clearDefault(ctx, tx, &settingsdomain.TaxRate{}, merchant.ID); err != nil {
				return err
			}
		}
		now := time.Now().UTC()
		out = settingsdomain.TaxRate{
			ID:         s.genID.Generate(),
			MerchantID: merchant.ID,
			Name:       input.Name,
			RateBps:    input.RateBps,
			IsDefault:  input.IsDefault,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		return tx.WithContext(ctx).Create(&out).Error
	})
	return out, err
}

func (s *Service) UpdateTaxRate(ctx context.Context, merchantID snowflake.ID, id snowflake.ID, input settingsdomain.TaxRateInput) (settingsdomain.TaxRate, error) {
	var out settingsdomain.TaxRate
	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" || input.RateBps < 0 {
		return out, settingsdomain.ErrInvalidTaxRate
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row settingsdomain.TaxRate
		if err := findScoped(ctx, tx, &row, merchantID, id); err != nil {
			return err
		}
		if input.IsDefault && !row.IsDefault {
			if err := clearDefault(ctx, tx, &settingsdomain.TaxRate{}, merchantID); err != nil {
				return err
			}
		}
		row.Name = input.Name
		row.RateBps = input.RateBps
		row.IsDefault = input.IsDefault
		row.UpdatedAt = time.Now().UTC()
		if err := tx.WithContext(ctx).Save(&row).Error; err != nil {
			return err
		}
		out = row
		return nil
	})
	return out, err
}

func (s *Service) DeleteTaxRate(ctx context.Context, merchantID snowflake.ID, id snowflake.ID) error {
	return deleteScoped(ctx, s.db, &settingsdomain.TaxRate{}, merchantID, id)
}

func (s *Service) ListTaxRates(ctx context.Context, merchantID snowflake.ID) ([]settingsdomain.TaxRate, error) {
	var rows []settingsdomain.TaxRate
	err := s.db.WithContext(ctx).
		Where("merchant_id = ?", merchantID).
		Order("is_default DESC, name").
		Find(&rows).Error
	return rows, err
}

func (s *Service) SetDefaultTaxRate(ctx context.Context, merchantID snowflake.ID, id snowflake.ID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row settingsdomain.TaxRate
		if err := findScoped(ctx, tx, &row, merchantID, id); err != nil {
			return err
		}
		if err := clearDefault(ctx, tx, &settingsdomain.TaxRate{}, merchantID); err != nil {
			return err
		}
		return tx.WithContext(ctx).
			Model(&settingsdomain.TaxRate{}).
			Where("merchant_id = ? AND id = ?", merchantID, id).
			Updates(map[string]any{"is_default": true, "updated_at": time.Now().UTC()}).Error
	})
}

func (s *Service) DefaultTaxRate(ctx context.Context, merchantID snowflake.ID) (*settingsdomain.TaxRate, error) {
	var row settingsdomain.TaxRate
	err := s.db.WithContext(ctx).
		Where("merchant_id = ? AND is_default", merchantID).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (s *Service) GetTaxRate(ctx context.Context, merchantID snowflake.ID, id snowflake.ID) (settingsdomain.TaxRate, error) {
	var row settingsdomain.TaxRate
	err := findScoped(ctx, s.db, &row, merchantID, id)
	return row, err
}

func (s *Service) CreatePaymentTerm(ctx context.Context, merchantID snowflake.ID, input settingsdomain.PaymentTermInput) (settingsdomain.PaymentTerm, error) {
	var out settingsdomain.PaymentTerm
	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" || input.Days < 0 {
		return out, settingsdomain.ErrInvalidTerm
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		merchant, err := s.tenant.EnsureMerchantTx(ctx, tx, merchantID)
		if err != nil {
			return err
		}
		if input.IsDefault {
			if err := clearDefault(ctx, tx, &settingsdomain.PaymentTerm{}, merchant.ID); err != nil {
				return err
			}
		}
		now := time.Now().UTC()
		out = settingsdomain.PaymentTerm{
			ID:         s.genID.Generate(),
			MerchantID: merchant.ID,
			Name:       input.Name,
			Days:       input.Days,
			IsDefault:  input.IsDefault,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		return tx.WithContext(ctx).Create(&out).Error
	})
	if err == nil {
		s.termCache.Delete(merchantID)
	}
	return out, err
}

func (s *Service) UpdatePaymentTerm(ctx context.Context, merchantID snowflake.ID, id snowflake.ID, input settingsdomain.PaymentTermInput) (settingsdomain.PaymentTerm, error) {
	var out settingsdomain.PaymentTerm
	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" || input.Days < 0 {
		return out, settingsdomain.ErrInvalidTerm
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row settingsdomain.PaymentTerm
		if err := findScoped(ctx, tx, &row, merchantID, id); err != nil {
			return err
		}
		if input.IsDefault && !row.IsDefault {
			if err := clearDefault(ctx, tx, &settingsdomain.PaymentTerm{}, merchantID); err != nil {
				return err
			}
		}
		row.Name = input.Name
		row.Days = input.Days
		row.IsDefault = input.IsDefault
		row.UpdatedAt = time.Now().UTC()
		if err := tx.WithContext(ctx).Save(&row).Error; err != nil {
			return err
		}
		out = row
		return nil
	})
	if err == nil {
		s.termCache.Delete(merchantID)
	}
	return out, err
}

func (s *Service) DeletePaymentTerm(ctx context.Context, merchantID snowflake.ID, id snowflake.ID) error {
	err := deleteScoped(ctx, s.db, &settingsdomain.PaymentTerm{}, merchantID, id)
	if err == nil {
		s.termCache.Delete(merchantID)
	}
	return err
}

func (s *Service) ListPaymentTerms(ctx context.Context, merchantID snowflake.ID) ([]settingsdomain.PaymentTerm, error) {
	var rows []settingsdomain.PaymentTerm
	err := s.db.WithContext(ctx).
		Where("merchant_id = ?", merchantID).
		Order("is_default DESC, days").
		Find(&rows).Error
	return rows, err
}

func (s *Service) SetDefaultPaymentTerm(ctx context.Context, merchantID snowflake.ID, id snowflake.ID) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row settingsdomain.PaymentTerm
		if err := findScoped(ctx, tx, &row, merchantID, id); err != nil {
			return err
		}
		if err := clearDefault(ctx, tx, &settingsdomain.PaymentTerm{}, merchantID); err != nil {
			return err
		}
		return tx.WithContext(ctx).
			Model(&settingsdomain.PaymentTerm{}).
			Where("merchant_id = ? AND id = ?", merchantID, id).
			Updates(map[string]any{"is_default": true, "updated_at": time.Now().UTC()}).Error
	})
	if err == nil {
		s.termCache.Delete(merchantID)
	}
	return err
}

func (s *Service) DefaultPaymentTerm(ctx context.Context, merchantID snowflake.ID) (*settingsdomain.PaymentTerm, error) {
	if cached, ok := s.termCache.Get(merchantID); ok {
		term := cached
		return &term, nil
	}

	var row settingsdomain.PaymentTerm
	err := s.db.WithContext(ctx).
		Where("merchant_id = ? AND is_default", merchantID).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	s.termCache.Set(merchantID, row, defaultTermCacheTTL)
	return &row, nil
}

func findScoped[T any](ctx context.Context, db *gorm.DB, out *T, merchantID snowflake.ID, id snowflake.ID) error {
	err := db.WithContext(ctx).
		Where("merchant_id = ? AND id = ?", merchantID, id).
		First(out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return settingsdomain.ErrNotFound
	}
	return err
}

func deleteScoped[T any](ctx context.Context, db *gorm.DB, model *T, merchantID snowflake.ID, id snowflake.ID) error {
	result := db.WithContext(ctx).
		Where("merchant_id = ? AND id = ?", merchantID, id).
		Delete(model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return settingsdomain.ErrNotFound
	}
	return nil
}

func clearDefault[T any](ctx context.Context, tx *gorm.DB, model *T, merchantID snowflake.ID) error {
	return tx.WithContext(ctx).
		Model(model).
		Where("merchant_id = ? AND is_default", merchantID).
		Update("is_default", false).Error
}
