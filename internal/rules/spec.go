// Package rules holds the published PRIMIS group definitions and turns them
// into compiled decision tables.
package rules

import (
	_ "embed"
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/primis-cohort/internal/domain"
	"github.com/primis-cohort/pkg/decision"
)

//go:embed primis.yaml
var primisYAML []byte

var productPattern = regexp.MustCompile(`^[a-z][a-z0-9]*$`)

// Spec is the decoded rule document.
type Spec struct {
	Groups   []GroupSpec `yaml:"groups"`
	Products []string    `yaml:"products"`
}

// GroupSpec is one group as written in the rule document. A group either
// lists its rows or names a dose for which the unstated-vaccine table is
// generated from the product list.
type GroupSpec struct {
	Name         string     `yaml:"name"`
	Description  string     `yaml:"description"`
	Rows         [][]string `yaml:"rows"`
	UnstatedDose int        `yaml:"unstated_dose"`
}

// PRIMIS returns the embedded PRIMIS rule document.
func PRIMIS() (*Spec, error) {
	return ParseSpec(primisYAML)
}

// ParseSpec decodes a rule document.
func ParseSpec(data []byte) (*Spec, error) {
	var spec Spec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, domain.NewConfigurationError(domain.ErrMalformedTable, "",
			fmt.Sprintf("cannot decode rule document: %v", err))
	}
	if len(spec.Groups) == 0 {
		return nil, domain.NewConfigurationError(domain.ErrMalformedTable, "", "rule document defines no groups")
	}
	return &spec, nil
}

// Tables builds every group table. products overrides the document's vaccine
// product list when non-nil.
func (s *Spec) Tables(products []string) ([]*decision.Table, error) {
	if products == nil {
		products = s.Products
	}
	if err := validateProducts(products); err != nil {
		return nil, err
	}

	tables := make([]*decision.Table, 0, len(s.Groups))
	for _, g := range s.Groups {
		t, err := g.table(products)
		if err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	return tables, nil
}

// Descriptions maps group names to their titles.
func (s *Spec) Descriptions() map[string]string {
	out := make(map[string]string, len(s.Groups))
	for _, g := range s.Groups {
		out[g.Name] = g.Description
	}
	return out
}

func (g GroupSpec) table(products []string) (*decision.Table, error) {
	switch {
	case g.UnstatedDose > 0 && len(g.Rows) > 0:
		return nil, domain.NewConfigurationError(domain.ErrMalformedTable, g.Name,
			"group has both rows and unstated_dose")
	case g.UnstatedDose > 0:
		return decision.ParseTable(g.Name, g.Description, UnstatedRows(g.UnstatedDose, products))
	}

	rows := make([][3]string, len(g.Rows))
	for i, r := range g.Rows {
		if len(r) != 3 {
			return nil, domain.NewRowError(g.Name, i+1,
				fmt.Sprintf("row needs [condition, on true, on false], got %d fields", len(r)))
		}
		rows[i] = [3]string{r[0], r[1], r[2]}
	}
	return decision.ParseTable(g.Name, g.Description, rows)
}

// UnstatedRows builds the rows of the unstated-vaccine table for a dose: a
// vaccinated patient with no product-specific record of that dose.
//
//	IF COVAX1D_GROUP <> NULL | Next   | Reject
//	IF AZD1RX_DAT <> NULL    | Reject | Next
//	...
//	IF VLD1RX_DAT <> NULL    | Reject | Select
func UnstatedRows(dose int, products []string) [][3]string {
	covax := fmt.Sprintf("IF COVAX%dD_GROUP <> NULL", dose)
	if len(products) == 0 {
		return [][3]string{{covax, "Select", "Reject"}}
	}

	rows := [][3]string{{covax, "Next", "Reject"}}
	for i, p := range products {
		onFalse := "Next"
		if i == len(products)-1 {
			onFalse = "Select"
		}
		rows = append(rows, [3]string{
			fmt.Sprintf("IF %sD%dRX_DAT <> NULL", strings.ToUpper(p), dose), "Reject", onFalse,
		})
	}
	return rows
}

// ProductAttribute is the record attribute holding the date of a dose of a
// product, e.g. ProductAttribute("az", 1) == "azd1rx_dat".
func ProductAttribute(product string, dose int) string {
	return fmt.Sprintf("%sd%drx_dat", strings.ToLower(product), dose)
}

// ProductColumns lists the dose 1 and dose 2 attributes of every product, in
// product order.
func ProductColumns(products []string) []string {
	cols := make([]string, 0, 2*len(products))
	for _, p := range products {
		cols = append(cols, ProductAttribute(p, 1), ProductAttribute(p, 2))
	}
	return cols
}

func validateProducts(products []string) error {
	seen := make(map[string]bool, len(products))
	for _, p := range products {
		if !productPattern.MatchString(p) {
			return domain.NewConfigurationError(domain.ErrInvalidConfig, "",
				fmt.Sprintf("invalid vaccine product prefix %q", p))
		}
		if seen[p] {
			return domain.NewConfigurationError(domain.ErrInvalidConfig, "",
				fmt.Sprintf("vaccine product %q listed twice", p))
		}
		seen[p] = true
	}
	return nil
}
