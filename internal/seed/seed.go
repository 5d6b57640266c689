package seed

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"github.com/aspirepayments/aspire-payments-web/internal/auth/password"
	"github.com/aspirepayments/aspire-payments-web/internal/config"
	tenantdomain "github.com/aspirepayments/aspire-payments-web/internal/tenant/domain"
)

const defaultMerchantName = "Aspire Payments (DEV)"

// EnsureDefaultMerchant seeds the default merchant for startup bootstrap.
func EnsureDefaultMerchant(db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		_, err := ensureDefaultMerchantTx(ctx, tx, node)
		return err
	})
}

// EnsureDefaultMerchantAndAdmin seeds the default merchant and an admin user.
func EnsureDefaultMerchantAndAdmin(db *gorm.DB, cfg config.Config) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := ensureDefaultMerchantTx(ctx, tx, node); err != nil {
			return err
		}

		email := strings.ToLower(strings.TrimSpace(cfg.DefaultAdminEmail))
		var user tenantdomain.User
		err := tx.WithContext(ctx).Where("email = ?", email).First(&user).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		hashed, err := password.Hash(cfg.DefaultAdminPassword)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		user = tenantdomain.User{
			ID:           node.Generate(),
			Email:        email,
			DisplayName:  "Aspire Admin",
			PasswordHash: &hashed,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		return tx.WithContext(ctx).Create(&user).Error
	})
}

func ensureDefaultMerchantTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node) (tenantdomain.Merchant, error) {
	var merchant tenantdomain.Merchant
	err := tx.WithContext(ctx).Order("id").First(&merchant).Error
	if err == nil {
		return merchant, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return merchant, err
	}
	now := time.Now().UTC()
	merchant = tenantdomain.Merchant{
		ID:        node.Generate(),
		Name:      defaultMerchantName,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := tx.WithContext(ctx).Create(&merchant).Error; err != nil {
		return merchant, err
	}
	return merchant, nil
}
