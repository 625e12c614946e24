package repository

import (
	"errors"
	"fmt"

	"catalog-service/internal/apperrors"

	"gorm.io/gorm"
)

// translate maps a gorm error onto the apperrors kinds. The DB is opened with
// TranslateError, so constraint violations arrive as gorm sentinels.
func translate(err error, notFoundCode, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return apperrors.NotFound(notFoundCode, "%s not found", what)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return apperrors.Conflict("DUPLICATE_RECORD", err, "%s already exists", what)
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return apperrors.Conflict("RECORD_IN_USE", err, "%s is referenced by other records", what)
	default:
		return apperrors.Transient("DATABASE_ERROR", err, "database operation on %s failed", what)
	}
}

func describe(kind string, id fmt.Stringer) string {
	return fmt.Sprintf("%s %s", kind, id)
}
