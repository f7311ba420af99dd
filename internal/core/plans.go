package core

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/coachhub/coachhub-api/internal/models"
)

// PlanCatalog is the fixed set of purchasable plans, keyed by plan key.
type PlanCatalog map[string]models.Plan

// DefaultPlans is used when no PLANS_FILE is configured.
func DefaultPlans() PlanCatalog {
	return PlanCatalog{
		"monthly":    {Key: "monthly", Label: "Monthly", Days: 30, Amount: 29.99},
		"quarterly":  {Key: "quarterly", Label: "Quarterly", Days: 90, Amount: 79.99},
		"semiannual": {Key: "semiannual", Label: "Semi-annual", Days: 180, Amount: 149.99},
		"annual":     {Key: "annual", Label: "Annual", Days: 365, Amount: 269.99},
	}
}

type planFile struct {
	Plans []models.Plan `yaml:"plans"`
}

// LoadPlanCatalog reads a YAML plan file of the form
//
//	plans:
//	  - {key: monthly, label: Monthly, days: 30, amount: 29.99}
//
// An empty path yields DefaultPlans.
func LoadPlanCatalog(path string) (PlanCatalog, error) {
	if path == "" {
		return DefaultPlans(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plans file: %w", err)
	}
	return ParsePlanCatalog(data)
}

// ParsePlanCatalog decodes and validates YAML plan definitions.
func ParsePlanCatalog(data []byte) (PlanCatalog, error) {
	var f planFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse plans file: %w", err)
	}
	if len(f.Plans) == 0 {
		return nil, fmt.Errorf("plans file defines no plans")
	}

	catalog := make(PlanCatalog, len(f.Plans))
	for _, p := range f.Plans {
		p.Key = strings.ToLower(strings.TrimSpace(p.Key))
		if p.Key == "" {
			return nil, fmt.Errorf("plan without key")
		}
		if p.Days <= 0 {
			return nil, fmt.Errorf("plan %q: days must be positive", p.Key)
		}
		if p.Amount < 0 {
			return nil, fmt.Errorf("plan %q: amount must not be negative", p.Key)
		}
		if _, dup := catalog[p.Key]; dup {
			return nil, fmt.Errorf("plan %q defined twice", p.Key)
		}
		if p.Label == "" {
			p.Label = p.Key
		}
		catalog[p.Key] = p
	}
	return catalog, nil
}

// Lookup returns the plan for key or ErrValidation.
func (c PlanCatalog) Lookup(key string) (models.Plan, error) {
	p, ok := c[strings.ToLower(strings.TrimSpace(key))]
	if !ok {
		return models.Plan{}, fmt.Errorf("%w: unknown plan %q", ErrValidation, key)
	}
	return p, nil
}

// List returns the plans ordered by duration.
func (c PlanCatalog) List() []models.Plan {
	plans := make([]models.Plan, 0, len(c))
	for _, p := range c {
		plans = append(plans, p)
	}
	sort.Slice(plans, func(i, j int) bool {
		if plans[i].Days == plans[j].Days {
			return plans[i].Key < plans[j].Key
		}
		return plans[i].Days < plans[j].Days
	})
	return plans
}
