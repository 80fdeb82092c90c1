package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"medrunner-portal/internal/model"
	"medrunner-portal/pkg/apierror"
)

func (c *Client) FetchUser(ctx context.Context) (model.Person, error) {
	var person model.Person
	if err := c.do(ctx, http.MethodGet, "/client/", nil, nil, true, &person); err != nil {
		return model.Person{}, err
	}

	return person, nil
}

func (c *Client) FetchBlockStatus(ctx context.Context) (model.BlockStatus, error) {
	var status model.BlockStatus
	if err := c.do(ctx, http.MethodGet, "/client/blocked", nil, nil, true, &status); err != nil {
		return model.BlockStatus{}, err
	}

	return status, nil
}

func (c *Client) LinkHandle(ctx context.Context, handle string) error {
	handle = strings.TrimSpace(handle)
	if handle == "" {
		return apierror.Validation("rsiHandle is required", "rsiHandle")
	}

	return c.do(ctx, http.MethodPost, "/client/link", nil, model.LinkRequest{RSIHandle: handle}, true, nil)
}

// UpdateSettings replaces the whole preferences blob.
func (c *Client) UpdateSettings(ctx context.Context, blob string) error {
	return c.do(ctx, http.MethodPut, "/client/settings", nil, model.UpdateSettingsRequest{ClientPortalPreferencesBlob: blob}, true, nil)
}

func (c *Client) FetchHistory(ctx context.Context, limit int, paginationToken string) (model.PaginatedResponse[model.History], error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	if paginationToken != "" {
		query.Set("paginationToken", paginationToken)
	}

	var page model.PaginatedResponse[model.History]
	if err := c.do(ctx, http.MethodGet, "/client/history", query, nil, true, &page); err != nil {
		return model.PaginatedResponse[model.History]{}, err
	}

	return page, nil
}

func (c *Client) PublicOrgSettings(ctx context.Context) (model.PublicOrgSettings, error) {
	var settings model.PublicOrgSettings
	if err := c.do(ctx, http.MethodGet, "/orgSettings/public", nil, nil, true, &settings); err != nil {
		return model.PublicOrgSettings{}, err
	}

	return settings, nil
}

func (c *Client) LookUpUserBlocks(ctx context.Context, handle string) ([]model.BlockReport, error) {
	return c.lookUpBlocks(ctx, "/block/user", "rsiHandle", handle)
}

func (c *Client) LookUpOrgBlocks(ctx context.Context, orgSID string) ([]model.BlockReport, error) {
	return c.lookUpBlocks(ctx, "/block/org", "orgSid", orgSID)
}

func (c *Client) lookUpBlocks(ctx context.Context, path string, param string, value string) ([]model.BlockReport, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, apierror.Validation(param+" is required", param)
	}

	var reports []model.BlockReport
	if err := c.do(ctx, http.MethodGet, path, url.Values{param: {value}}, nil, true, &reports); err != nil {
		return nil, err
	}

	return reports, nil
}
