package metaclient

import (
	"context"
	"net/url"

	"github.com/sirupsen/logrus"
	"github.com/vfg2006/ad-publisher-api/infrastructure/integrator/adplatform"
)

// CreateAd cria um anúncio no conjunto informado apontando para o criativo já
// registrado. O anúncio nasce pausado; a ativação é uma chamada separada via
// SetAdStatus, para que uma retentativa de ativação nunca duplique o anúncio.
func (c *MetaClient) CreateAd(ctx context.Context, adSetID, creativeID, name string) (string, error) {
	const op = "create_ad"

	creativeJSON, err := json.Marshal(map[string]string{"creative_id": creativeID})
	if err != nil {
		return "", adplatform.NewPermanent(op, err)
	}

	params := url.Values{}
	params.Set("name", name)
	params.Set("adset_id", adSetID)
	params.Set("creative", string(creativeJSON))
	params.Set("status", string(adplatform.AdStatusPaused))

	body, err := c.postForm(ctx, op, "/act_"+c.Cfg.Meta.AdAccountID+"/ads", params)
	if err != nil {
		return "", err
	}

	var response responseCreated
	if err := json.Unmarshal(body, &response); err != nil {
		logrus.WithError(err).Error("Erro ao decodificar resposta de criação de anúncio do Meta")
		return "", adplatform.NewPermanent(op, err)
	}

	return response.ID, nil
}
