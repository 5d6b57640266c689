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

	customerdomain "github.com/aspirepayments/aspire-payments-web/internal/customer/domain"
	tenantdomain "github.com/aspirepayments/aspire-payments-web/internal/tenant/domain"
)

const defaultListLimit = 50

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

func NewService(p Params) customerdomain.Service {
	return &Service{
		db:     p.DB,
		log:    p.Log.Named("customer.service"),
		genID:  p.GenID,
		tenant: p.Tenant,
	}
}

func (s *Service) Create(ctx context.Context, merchantID snowflake.ID, input customerdomain.CreateInput) (customerdomain.Customer, error) {
	var out customerdomain.Customer

	email, err := normalizeEmail(input.Email)
	if err != nil {
		return out, err
	}
	if email == nil && trimPtr(input.FirstName) == nil && trimPtr(input.LastName) == nil && trimPtr(input.Company) == nil {
		return out, customerdomain.ErrInvalidCustomer
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		merchant, err := s.tenant.EnsureMerchantTx(ctx, tx, merchantID)
		if err != nil {
			return err
		}

		if email != nil {
			var existing customerdomain.Customer
			err := tx.WithContext(ctx).
				Where("merchant_id = ? AND email = ?", merchant.ID, *email).
				First(&existing).Error
			if err == nil {
				out = existing
				return nil
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
		}

		now := time.Now().UTC()
		row := customerdomain.Customer{
			ID:         s.genID.Generate(),
			MerchantID: merchant.ID,
			FirstName:  trimPtr(input.FirstName),
			LastName:   trimPtr(input.LastName),
			Company:    trimPtr(input.Company),
			Email:      email,
			Phone:      trimPtr(input.Phone),
			Address1:   trimPtr(input.Address1),
			Address2:   trimPtr(input.Address2),
			City:       trimPtr(input.City),
			State:      trimPtr(input.State),
			Postal:     trimPtr(input.Postal),
			Country:    valueOr(input.Country, "US"),
			Terms:      valueOr(input.Terms, "Net 30"),
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := tx.WithContext(ctx).
			Clauses(clause.OnConflict{DoNothing: true}).
			Create(&row).Error; err != nil {
			return err
		}

		// A concurrent insert on the same email wins the unique index; fall
		// back to the stored row so both callers see one customer.
		if email != nil {
			var stored customerdomain.Customer
			if err := tx.WithContext(ctx).
				Where("merchant_id = ? AND email = ?", merchant.ID, *email).
				First(&stored).Error; err != nil {
				return err
			}
			out = stored
			return nil
		}
		out = row
		return nil
	})
	return out, err
}

func (s *Service) Get(ctx context.Context, merchantID snowflake.ID, id snowflake.ID) (customerdomain.Customer, error) {
	var row customerdomain.Customer
	err := s.db.WithContext(ctx).
		Where("merchant_id = ? AND id = ?", merchantID, id).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return row, customerdomain.ErrCustomerNotFound
		}
		return row, err
	}
	return row, nil
}

func (s *Service) Patch(ctx context.Context, merchantID snowflake.ID, id snowflake.ID, input customerdomain.PatchInput) (customerdomain.Customer, error) {
	var out customerdomain.Customer

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row customerdomain.Customer
		err := tx.WithContext(ctx).
			Where("merchant_id = ? AND id = ?", merchantID, id).
			First(&row).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return customerdomain.ErrCustomerNotFound
			}
			return err
		}

		updates := map[string]any{}
		if input.Email != nil {
			email, err := normalizeEmail(input.Email)
			if err != nil {
				return err
			}
			updates["email"] = email
		}
		applyText(updates, "first_name", input.FirstName)
		applyText(updates, "last_name", input.LastName)
		applyText(updates, "company", input.Company)
		applyText(updates, "phone", input.Phone)
		applyText(updates, "address1", input.Address1)
		applyText(updates, "address2", input.Address2)
		applyText(updates, "city", input.City)
		applyText(updates, "state", input.State)
		applyText(updates, "postal", input.Postal)
		if input.Country != nil {
			updates["country"] = valueOr(input.Country, "US")
		}
		if input.Terms != nil {
			updates["terms"] = valueOr(input.Terms, "Net 30")
		}
		if len(updates) == 0 {
			out = row
			return nil
		}
		updates["updated_at"] = time.Now().UTC()

		if err := tx.WithContext(ctx).
			Model(&customerdomain.Customer{}).
			Where("merchant_id = ? AND id = ?", merchantID, id).
			Updates(updates).Error; err != nil {
			return err
		}
		return tx.WithContext(ctx).
			Where("merchant_id = ? AND id = ?", merchantID, id).
			First(&out).Error
	})
	return out, err
}

func (s *Service) List(ctx context.Context, merchantID snowflake.ID, input customerdomain.ListInput) (customerdomain.ListResult, error) {
	limit := input.Limit
	if limit <= 0 || limit > 200 {
		limit = defaultListLimit
	}

	query := s.db.WithContext(ctx).
		Where("merchant_id = ?", merchantID).
		Order("id DESC").
		Limit(limit + 1)
	if input.Cursor != 0 {
		query = query.Where("id < ?", input.Cursor)
	}
	if search := strings.TrimSpace(input.Search); search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		query = query.Where(
			"LOWER(COALESCE(first_name, '')) LIKE ? OR LOWER(COALESCE(last_name, '')) LIKE ? OR LOWER(COALESCE(company, '')) LIKE ? OR LOWER(COALESCE(email, '')) LIKE ?",
			pattern, pattern, pattern, pattern,
		)
	}

	var rows []customerdomain.Customer
	if err := query.Find(&rows).Error; err != nil {
		return customerdomain.ListResult{}, err
	}

	result := customerdomain.ListResult{Customers: rows}
	if len(rows) > limit {
		result.Customers = rows[:limit]
		result.NextCursor = rows[limit-1].ID
	}
	return result, nil
}

func normalizeEmail(value *string) (*string, error) {
	if value == nil {
		return nil, nil
	}
	email := strings.ToLower(strings.TrimSpace(*value))
	if email == "" {
		return nil, nil
	}
	at := strings.Index(email, "@")
	if at <= 0 || at == len(email)-1 || strings.Contains(email, " ") {
		return nil, customerdomain.ErrInvalidEmail
	}
	return &email, nil
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

func valueOr(value *string, fallback string) string {
	if trimmed := trimPtr(value); trimmed != nil {
		return *trimmed
	}
	return fallback
}

func applyText(updates map[string]any, column string, value *string) {
	if value == nil {
		return
	}
	updates[column] = trimPtr(value)
}
