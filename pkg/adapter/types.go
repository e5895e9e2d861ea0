package adapter

import (
	"context"
	"fmt"
	"strings"

	"github.com/leapstack-labs/datarade/pkg/core"
)

// TypeMap maps semantic field types to an engine's column types.
type TypeMap map[core.FieldType]string

// Lookup returns the column type for t.
func (m TypeMap) Lookup(t core.FieldType) (string, error) {
	if col, ok := m[t]; ok {
		return col, nil
	}
	return "", &core.SchemaMappingError{Type: t}
}

// ColumnDefs renders the column list of a CREATE TABLE statement.
// Every field must map; the first one that does not is reported by name.
func ColumnDefs(a core.Adapter, fields []core.Field) (string, error) {
	if len(fields) == 0 {
		return "", &core.ValidationError{Field: "fields", Message: "at least one field is required"}
	}
	defs := make([]string, 0, len(fields))
	for _, f := range fields {
		col, err := a.ColumnType(f.Type)
		if err != nil {
			return "", &core.SchemaMappingError{Field: f.Name, Type: f.Type}
		}
		defs = append(defs, a.QuoteIdent(f.Name)+" "+col)
	}
	return strings.Join(defs, ", "), nil
}

// CreateTableSQL builds the CREATE TABLE statement for fields.
func CreateTableSQL(a core.Adapter, ref core.TableRef, fields []core.Field) (string, error) {
	cols, err := ColumnDefs(a, fields)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", a.QuoteTable(ref), cols), nil
}

// DropTableSQL builds a DROP TABLE IF EXISTS statement.
func DropTableSQL(a core.Adapter, ref core.TableRef) string {
	return "DROP TABLE IF EXISTS " + a.QuoteTable(ref)
}

// CheckFields verifies every field maps to a column type without touching
// the database.
func CheckFields(a core.Adapter, fields []core.Field) error {
	_, err := ColumnDefs(a, fields)
	return err
}

// CountRows returns the number of rows in ref.
func CountRows(ctx context.Context, a core.Adapter, ref core.TableRef) (int64, error) {
	rows, err := a.Query(ctx, "SELECT COUNT(*) FROM "+a.QuoteTable(ref))
	if err != nil {
		return 0, err
	}
	defer func() { _ = rows.Close() }()

	var n int64
	if rows.Next() {
		if err := rows.Scan(&n); err != nil {
			return 0, fmt.Errorf("failed to count rows in %s: %w", ref, err)
		}
	}
	return n, rows.Err()
}
