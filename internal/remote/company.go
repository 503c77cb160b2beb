package remote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/smartsupply/agent/internal/models"
)

// CompanySetup is the subset of the company configuration the agent needs.
type CompanySetup struct {
	ID          string `json:"id"`
	CompanyName string `json:"companyName"`
}

// GetCompanySetup fetches the company configuration. It returns
// ErrNotConfigured when the company has not been set up yet.
func (c *Client) GetCompanySetup(ctx context.Context) (CompanySetup, error) {
	var setup *CompanySetup
	err := c.get(ctx, "get company setup", "/company-setup", nil, &setup)
	if IsStatus(err, http.StatusNotFound) {
		return CompanySetup{}, fmt.Errorf("get company setup: %w", ErrNotConfigured)
	}
	if err != nil {
		return CompanySetup{}, err
	}
	if setup == nil || setup.ID == "" {
		return CompanySetup{}, fmt.Errorf("get company setup: %w", ErrNotConfigured)
	}
	return *setup, nil
}

// GetBottleCategories fetches the bottle categories of a company setup.
func (c *Client) GetBottleCategories(ctx context.Context, companySetupID string) ([]models.BottleCategoryRecord, error) {
	if companySetupID == "" {
		return nil, errors.New("get bottle categories: company setup id is required")
	}
	params := url.Values{}
	params.Set("companySetupId", companySetupID)

	categories := make([]models.BottleCategoryRecord, 0)
	if err := c.get(ctx, "get bottle categories", "/bottle-categories", params, &categories); err != nil {
		return nil, err
	}
	return categories, nil
}
