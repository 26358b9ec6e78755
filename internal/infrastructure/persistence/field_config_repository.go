package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/nexuscrm/formengine/pkg/constants"
	"github.com/nexuscrm/formengine/pkg/models"
)

const saveRetries = 3

// FieldConfigRepository stores the field registry in a single table keyed by (tenant, entity type).
// Rows with equal display_order keep their insertion order through the auto-increment id.
type FieldConfigRepository struct {
	db     *sql.DB
	tx     *TransactionManager
	logger *zap.Logger
}

func NewFieldConfigRepository(db *sql.DB, logger *zap.Logger) *FieldConfigRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FieldConfigRepository{db: db, tx: NewTransactionManager(db), logger: logger}
}

func selectFieldsQuery() string {
	return fmt.Sprintf("SELECT %s FROM %s WHERE %s = ? AND %s = ? ORDER BY %s, %s",
		strings.Join(fieldColumns, ", "), TableFieldConfig,
		ColTenantID, ColEntityType, ColDisplayOrder, ColID)
}

func deleteFieldsQuery() string {
	return fmt.Sprintf("DELETE FROM %s WHERE %s = ? AND %s = ?", TableFieldConfig, ColTenantID, ColEntityType)
}

func insertFieldQuery() string {
	cols := append([]string{ColTenantID, ColEntityType}, fieldColumns...)
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", TableFieldConfig, strings.Join(cols, ", "), marks)
}

func countFieldsQuery() string {
	return fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s = ? AND %s = ?", TableFieldConfig, ColTenantID, ColEntityType)
}

// LoadFieldConfig returns the stored fields ordered by display order then insertion order
func (r *FieldConfigRepository) LoadFieldConfig(ctx context.Context, tenantID, entityType string) ([]models.FieldDefinition, error) {
	rows, err := r.db.QueryContext(ctx, selectFieldsQuery(), tenantID, entityType)
	if err != nil {
		return nil, fmt.Errorf("query field config for %s/%s: %w", tenantID, entityType, err)
	}
	defer func() { _ = rows.Close() }()

	fields := make([]models.FieldDefinition, 0)
	for rows.Next() {
		var (
			f           models.FieldDefinition
			fieldType   string
			options     sql.NullString
			placeholder sql.NullString
			helpText    sql.NullString
		)
		if err := rows.Scan(&f.Name, &f.Label, &fieldType, &f.IsMandatory, &f.IsEnabled,
			&f.Section, &f.DisplayOrder, &options, &placeholder, &helpText); err != nil {
			return nil, fmt.Errorf("scan field config row: %w", err)
		}
		f.Type = constants.FieldType(fieldType)
		if options.Valid && options.String != "" {
			if err := json.Unmarshal([]byte(options.String), &f.Options); err != nil {
				// a corrupt option list degrades to no options rather than failing the whole form
				r.logger.Warn("Invalid field options in registry",
					zap.String("tenant_id", tenantID),
					zap.String("entity_type", entityType),
					zap.String("field", f.Name),
					zap.Error(err))
				f.Options = nil
			}
		}
		if placeholder.Valid {
			f.Placeholder = models.StringPtr(placeholder.String)
		}
		if helpText.Valid {
			f.HelpText = models.StringPtr(helpText.String)
		}
		fields = append(fields, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate field config rows: %w", err)
	}
	return fields, nil
}

// SaveFieldConfig replaces the stored batch for (tenant, entity type) in one transaction
func (r *FieldConfigRepository) SaveFieldConfig(ctx context.Context, tenantID, entityType string, fields []models.FieldDefinition) error {
	err := r.tx.WithRetry(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, deleteFieldsQuery(), tenantID, entityType); err != nil {
			return fmt.Errorf("clear field config: %w", err)
		}
		return insertFields(ctx, tx, tenantID, entityType, fields)
	}, saveRetries)
	if err != nil {
		return err
	}
	r.logger.Debug("Field config saved",
		zap.String("tenant_id", tenantID),
		zap.String("entity_type", entityType),
		zap.Int("fields", len(fields)))
	return nil
}

// SeedFieldConfig inserts fields only when the (tenant, entity type) pair has no rows yet.
// It reports whether rows were inserted.
func (r *FieldConfigRepository) SeedFieldConfig(ctx context.Context, tenantID, entityType string, fields []models.FieldDefinition) (bool, error) {
	seeded := false
	err := r.tx.WithTransaction(ctx, func(tx *sql.Tx) error {
		var count int
		if err := tx.QueryRowContext(ctx, countFieldsQuery(), tenantID, entityType).Scan(&count); err != nil {
			return fmt.Errorf("count field config: %w", err)
		}
		if count > 0 {
			return nil
		}
		if err := insertFields(ctx, tx, tenantID, entityType, fields); err != nil {
			return err
		}
		seeded = true
		return nil
	})
	return seeded, err
}

func insertFields(ctx context.Context, tx *sql.Tx, tenantID, entityType string, fields []models.FieldDefinition) error {
	if len(fields) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, insertFieldQuery())
	if err != nil {
		return fmt.Errorf("prepare field insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, f := range fields {
		var options interface{}
		if len(f.Options) > 0 {
			raw, err := json.Marshal(f.Options)
			if err != nil {
				return fmt.Errorf("encode options for %s: %w", f.Name, err)
			}
			options = string(raw)
		}
		if _, err := stmt.ExecContext(ctx, tenantID, entityType,
			f.Name, f.Label, string(f.Type), f.IsMandatory, f.IsEnabled,
			f.Section, f.DisplayOrder, options, nullable(f.Placeholder), nullable(f.HelpText)); err != nil {
			return fmt.Errorf("insert field %s: %w", f.Name, err)
		}
	}
	return nil
}

func nullable(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}
