package service

import (
	"errors"
	"strings"
	"unicode"

	"github.com/boddenberg/farma-crm-bfa-go/internal/domain"
	"github.com/boddenberg/farma-crm-bfa-go/internal/port"
)

const (
	sqlUniqueViolation     = "23505"
	sqlForeignKeyViolation = "23503"
	pgrstFunctionNotFound  = "PGRST202"
	sqlUndefinedFunction   = "42883"
)

func errorCode(err error) (string, string, bool) {
	var coded port.CodedError
	if errors.As(err, &coded) {
		return coded.ErrorCode(), coded.ErrorDetail(), true
	}
	return "", "", false
}

// translateUnique turns a unique violation into a nameable domain error.
// productName is set only for product writes that carry a name; the
// violation then becomes ErrDuplicateProduct unless its key leaves the
// name column out.
func translateUnique(resource, productName string, err error) error {
	code, detail, ok := errorCode(err)
	if !ok || code != sqlUniqueViolation {
		return err
	}
	if productName != "" && involvesNameColumn(detail) {
		return &domain.ErrDuplicateProduct{ProductName: productName}
	}
	return &domain.ErrDuplicateData{Resource: resource, Detail: detail}
}

// involvesNameColumn reports whether the "Key (...)=" list of a unique
// violation references the name column. A detail without a key list is
// attributed to the name.
func involvesNameColumn(detail string) bool {
	cols, ok := uniqueKeyColumns(detail)
	if !ok {
		return true
	}
	for _, tok := range strings.FieldsFunc(strings.ToLower(cols), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	}) {
		if tok == "name" {
			return true
		}
	}
	return false
}

// uniqueKeyColumns returns the raw column list of "Key (a, b)=(x, y)",
// expressions like lower(name::text) included.
func uniqueKeyColumns(detail string) (string, bool) {
	i := strings.Index(detail, "Key (")
	if i < 0 {
		return "", false
	}
	rest := detail[i+len("Key ("):]
	j := strings.Index(rest, ")=")
	if j < 0 {
		return "", false
	}
	return rest[:j], true
}

func isForeignKeyViolation(err error) bool {
	code, _, ok := errorCode(err)
	return ok && code == sqlForeignKeyViolation
}

func isMissingFunction(err error) bool {
	code, _, ok := errorCode(err)
	return ok && (code == pgrstFunctionNotFound || code == sqlUndefinedFunction)
}
