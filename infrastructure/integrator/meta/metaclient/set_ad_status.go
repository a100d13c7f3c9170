package metaclient

import (
	"context"
	"net/url"

	"github.com/vfg2006/ad-publisher-api/infrastructure/integrator/adplatform"
)

// SetAdStatus altera o status de um anúncio existente (ativação/pausa)
func (c *MetaClient) SetAdStatus(ctx context.Context, adID string, status adplatform.AdStatus) error {
	const op = "set_ad_status"

	params := url.Values{}
	params.Set("status", string(status))

	_, err := c.postForm(ctx, op, "/"+adID, params)
	return err
}
