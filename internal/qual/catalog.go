package qual

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/url"
	"gopkg.in/yaml.v3"

	"github.com/kurihiro0119/hitbatch/internal/domain"
)

//go:embed premium.yaml
var defaultCatalog []byte

// systemTypeIDs maps system qualification names to their fixed type IDs per environment
var systemTypeIDs = map[domain.Environment]map[string]string{
	domain.EnvironmentProduction: {
		domain.QualMasters:                    "2F1QJWKUDD8XADTFD2Q0G6UTO95ALH",
		domain.QualNumberHITsApproved:         "00000000000000000040",
		domain.QualLocale:                     "00000000000000000071",
		domain.QualAdult:                      "00000000000000000060",
		domain.QualPercentAssignmentsApproved: "000000000000000000L0",
	},
	domain.EnvironmentSandbox: {
		domain.QualMasters:                    "2ARFPLSP75KLA8M8DH1HTEQVJT3SY6",
		domain.QualNumberHITsApproved:         "00000000000000000040",
		domain.QualLocale:                     "00000000000000000071",
		domain.QualAdult:                      "00000000000000000060",
		domain.QualPercentAssignmentsApproved: "000000000000000000L0",
	},
}

// SystemTypeID returns the fixed type ID of a system qualification
func SystemTypeID(env domain.Environment, name string) (string, bool) {
	id, ok := systemTypeIDs[env][name]
	return id, ok
}

// PremiumOffer is a premium qualification's ID and fee on one environment
type PremiumOffer struct {
	ID  string
	Fee decimal.Decimal
}

// PremiumEntry is one premium qualification in the catalog
type PremiumEntry struct {
	Name   string
	Offers map[domain.Environment]PremiumOffer
}

// Catalog is the static premium qualification catalog keyed by name
type Catalog struct {
	entries map[string]PremiumEntry
	names   []string
}

type catalogOffer struct {
	ID  string `yaml:"id"`
	Fee string `yaml:"fee"`
}

type catalogEntry struct {
	Name       string        `yaml:"name"`
	Production *catalogOffer `yaml:"production"`
	Sandbox    *catalogOffer `yaml:"sandbox"`
}

// DefaultCatalog returns the catalog compiled into the binary
func DefaultCatalog() (*Catalog, error) {
	return ParseCatalog(defaultCatalog)
}

// LoadCatalog reads a catalog from a YAML file, falling back to the built-in one for an empty path
func LoadCatalog(ctx context.Context, path string) (*Catalog, error) {
	if path == "" {
		return DefaultCatalog()
	}
	data, err := afs.New().DownloadWithURL(ctx, url.Normalize(path, file.Scheme))
	if err != nil {
		return nil, fmt.Errorf("failed to read premium catalog: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes a YAML catalog
func ParseCatalog(data []byte) (*Catalog, error) {
	var raw []catalogEntry
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse premium catalog: %w", err)
	}

	c := &Catalog{entries: make(map[string]PremiumEntry, len(raw))}
	for _, r := range raw {
		if r.Name == "" {
			return nil, fmt.Errorf("premium catalog entry without name")
		}
		entry := PremiumEntry{Name: r.Name, Offers: make(map[domain.Environment]PremiumOffer)}
		for env, offer := range map[domain.Environment]*catalogOffer{
			domain.EnvironmentProduction: r.Production,
			domain.EnvironmentSandbox:    r.Sandbox,
		} {
			if offer == nil || offer.ID == "" {
				continue
			}
			fee, err := decimal.NewFromString(offer.Fee)
			if err != nil {
				return nil, fmt.Errorf("premium catalog entry %s: invalid fee %q: %w", r.Name, offer.Fee, err)
			}
			entry.Offers[env] = PremiumOffer{ID: offer.ID, Fee: fee}
		}
		if _, dup := c.entries[r.Name]; !dup {
			c.names = append(c.names, r.Name)
		}
		c.entries[r.Name] = entry
	}
	return c, nil
}

// Lookup returns the catalog entry for a name
func (c *Catalog) Lookup(name string) (PremiumEntry, bool) {
	e, ok := c.entries[name]
	return e, ok
}

// Names returns the catalog's qualification names in file order
func (c *Catalog) Names() []string {
	return c.names
}
