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
	"gorm.io/gorm/clause"

	tenantdomain "github.com/aspirepayments/aspire-payments-web/internal/tenant/domain"
)

const defaultMerchantName = "Aspire Payments (DEV)"

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
}

func NewService(p Params) tenantdomain.Provisioner {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("tenant.service"),
		genID: p.GenID,
	}
}

func (s *Service) EnsureMerchant(ctx context.Context, id snowflake.ID) (tenantdomain.Merchant, error) {
	var merchant tenantdomain.Merchant
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		merchant, err = s.EnsureMerchantTx(ctx, tx, id)
		return err
	})
	return merchant, err
}

func (s *Service) EnsureMerchantTx(ctx context.Context, tx *gorm.DB, id snowflake.ID) (tenantdomain.Merchant, error) {
	var merchant tenantdomain.Merchant

	if id != 0 {
		err := tx.WithContext(ctx).First(&merchant, "id = ?", id).Error
		if err == nil {
			return merchant, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return merchant, err
		}
		merchant = tenantdomain.Merchant{ID: id, Name: id.String()}
	} else {
		err := tx.WithContext(ctx).Order("id").First(&merchant).Error
		if err == nil {
			return merchant, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return merchant, err
		}
		merchant = tenantdomain.Merchant{ID: s.genID.Generate(), Name: defaultMerchantName}
	}

	now := time.Now().UTC()
	merchant.CreatedAt = now
	merchant.UpdatedAt = now
	if err := tx.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&merchant).Error; err != nil {
		return merchant, err
	}
	s.log.Info("provisioned merchant", zap.String("merchant_id", merchant.ID.String()))
	return merchant, nil
}

func (s *Service) ConnectGateway(ctx context.Context, merchantID snowflake.ID, gateway, apiKey string) error {
	gateway = strings.ToLower(strings.TrimSpace(gateway))
	if gateway == "" {
		return tenantdomain.ErrInvalidGateway
	}
	apiKey = strings.TrimSpace(apiKey)
	if len(apiKey) < 10 {
		return tenantdomain.ErrInvalidAPIKey
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.EnsureMerchantTx(ctx, tx, merchantID); err != nil {
			return err
		}
		now := time.Now().UTC()
		row := tenantdomain.MerchantGateway{
			ID:         s.genID.Generate(),
			MerchantID: merchantID,
			Gateway:    gateway,
			APIKey:     apiKey,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		return tx.WithContext(ctx).
			Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "merchant_id"}, {Name: "gateway"}},
				DoUpdates: clause.Assignments(map[string]any{"api_key": apiKey, "updated_at": now}),
			}).
			Create(&row).Error
	})
}

func (s *Service) GatewayKey(ctx context.Context, merchantID snowflake.ID, gateway string) (string, error) {
	gateway = strings.ToLower(strings.TrimSpace(gateway))
	if gateway == "" {
		return "", tenantdomain.ErrInvalidGateway
	}
	var row tenantdomain.MerchantGateway
	err := s.db.WithContext(ctx).
		Where("merchant_id = ? AND gateway = ?", merchantID, gateway).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", err
	}
	return row.APIKey, nil
}
