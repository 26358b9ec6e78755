package bootstrap

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/nexuscrm/formengine/internal/infrastructure/persistence"
)

// fieldConfigDDL creates the registry table. The auto-increment id keeps insertion order for tied display orders.
var fieldConfigDDL = fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	%s BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
	%s VARCHAR(64) NOT NULL,
	%s VARCHAR(32) NOT NULL,
	%s VARCHAR(128) NOT NULL,
	%s VARCHAR(255) NOT NULL,
	%s VARCHAR(32) NOT NULL,
	%s BOOLEAN NOT NULL DEFAULT FALSE,
	%s BOOLEAN NOT NULL DEFAULT TRUE,
	%s VARCHAR(64) NOT NULL,
	%s INT NOT NULL DEFAULT 0,
	%s TEXT NULL,
	%s VARCHAR(255) NULL,
	%s TEXT NULL,
	KEY idx_field_config_scope (%s, %s, %s)
)`,
	persistence.TableFieldConfig,
	persistence.ColID,
	persistence.ColTenantID,
	persistence.ColEntityType,
	persistence.ColFieldName,
	persistence.ColFieldLabel,
	persistence.ColFieldType,
	persistence.ColIsMandatory,
	persistence.ColIsEnabled,
	persistence.ColFieldSection,
	persistence.ColDisplayOrder,
	persistence.ColFieldOptions,
	persistence.ColPlaceholder,
	persistence.ColHelpText,
	persistence.ColTenantID, persistence.ColEntityType, persistence.ColDisplayOrder,
)

// InitializeSchema creates the field registry table if it does not exist
func InitializeSchema(ctx context.Context, db *sql.DB, logger *zap.Logger) error {
	if _, err := db.ExecContext(ctx, fieldConfigDDL); err != nil {
		return fmt.Errorf("create %s: %w", persistence.TableFieldConfig, err)
	}
	logger.Info("Registry schema ready", zap.String("table", persistence.TableFieldConfig))
	return nil
}
