package market

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/amass-me/locale-engine/pkg/model"
)

//go:embed catalog_default.json
var defaultCatalog []byte

// Catalog is the market-tagged office list, loaded once and read-only afterwards.
type Catalog []model.CatalogEntry[model.Office]

type officeRecord struct {
	Market string `json:"market"`
	model.Office
}

type catalogDocument struct {
	Offices []officeRecord `json:"offices"`
}

// DefaultCatalog returns the office catalog compiled into the binary.
func DefaultCatalog(reg *Registry) (Catalog, error) {
	return LoadCatalog(bytes.NewReader(defaultCatalog), reg)
}

// LoadCatalogFile reads a catalog document from path.
func LoadCatalogFile(path string, reg *Registry) (Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer func() { _ = f.Close() }()
	return LoadCatalog(f, reg)
}

// LoadCatalog decodes a catalog document and binds every office to a configured market.
func LoadCatalog(r io.Reader, reg *Registry) (Catalog, error) {
	var doc catalogDocument
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	out := make(Catalog, 0, len(doc.Offices))
	for i, rec := range doc.Offices {
		entry, err := bindOffice(reg, rec.Market, rec.Office)
		if err != nil {
			return nil, fmt.Errorf("catalog entry %d: %w", i, err)
		}
		out = append(out, entry)
	}
	return out, nil
}

func bindOffice(reg *Registry, code string, office model.Office) (model.CatalogEntry[model.Office], error) {
	m, ok := reg.Lookup(strings.TrimSpace(code))
	if !ok {
		return model.CatalogEntry[model.Office]{}, fmt.Errorf("unknown market %q for office %q", code, office.Name)
	}
	if strings.TrimSpace(office.Name) == "" {
		return model.CatalogEntry[model.Office]{}, fmt.Errorf("office in %s has no name", m.Code)
	}
	return model.CatalogEntry[model.Office]{Payload: office, Market: m}, nil
}

// ForMarket returns the catalog prioritized for m, truncated to limit when limit > 0.
func (c Catalog) ForMarket(m model.Market, limit int) Catalog {
	return Prioritize[model.Office](c, m, limit)
}
