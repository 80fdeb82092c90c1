package api

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"medrunner-portal/internal/model"
	"medrunner-portal/pkg/apierror"
)

func (c *Client) CreateEmergency(ctx context.Context, emergency model.NewEmergency) (model.Emergency, error) {
	if strings.TrimSpace(emergency.System) == "" || strings.TrimSpace(emergency.Subsystem) == "" {
		return model.Emergency{}, apierror.Validation("system and subsystem are required", "system|subsystem")
	}

	var created model.Emergency
	if err := c.do(ctx, http.MethodPost, "/emergency/", nil, emergency, true, &created); err != nil {
		return model.Emergency{}, err
	}

	return created, nil
}

func (c *Client) FetchEmergency(ctx context.Context, id string) (model.Emergency, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return model.Emergency{}, apierror.Validation("emergency id is required", "id")
	}

	var emergency model.Emergency
	if err := c.do(ctx, http.MethodGet, "/emergency/"+url.PathEscape(id), nil, nil, true, &emergency); err != nil {
		return model.Emergency{}, err
	}

	return emergency, nil
}

func (c *Client) FetchEmergencies(ctx context.Context, ids ...string) ([]model.Emergency, error) {
	if len(ids) == 0 {
		return []model.Emergency{}, nil
	}

	var emergencies []model.Emergency
	if err := c.do(ctx, http.MethodGet, "/emergency/bulk", url.Values{"id": ids}, nil, true, &emergencies); err != nil {
		return nil, err
	}

	return emergencies, nil
}
