package market

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/amass-me/locale-engine/pkg/model"
)

// Querier is the subset of pgxpool.Pool the catalog loader needs.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

const officesQuery = `
SELECT market_code, name, address, phones, fax, emails
FROM site.offices
WHERE active
ORDER BY sort_order, id`

// LoadCatalogPG reads the office catalog from Postgres in display order.
func LoadCatalogPG(ctx context.Context, q Querier, reg *Registry) (Catalog, error) {
	rows, err := q.Query(ctx, officesQuery)
	if err != nil {
		return nil, fmt.Errorf("query offices: %w", err)
	}
	defer rows.Close()

	var out Catalog
	for rows.Next() {
		var (
			code   string
			office model.Office
			fax    *string
		)
		if err := rows.Scan(&code, &office.Name, &office.Address, &office.Phones, &fax, &office.Emails); err != nil {
			return nil, fmt.Errorf("scan office: %w", err)
		}
		if fax != nil {
			office.Fax = *fax
		}
		entry, err := bindOffice(reg, code, office)
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read offices: %w", err)
	}
	return out, nil
}

// OpenCatalogPG connects to dsn, loads the catalog once and closes the pool.
func OpenCatalogPG(ctx context.Context, dsn string, reg *Registry) (Catalog, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect catalog db: %w", err)
	}
	defer pool.Close()
	return LoadCatalogPG(ctx, pool, reg)
}
