package metaclient

import (
	"context"
	"net/url"

	"github.com/sirupsen/logrus"
	"github.com/vfg2006/ad-publisher-api/infrastructure/integrator/adplatform"
	"github.com/vfg2006/ad-publisher-api/internal/domain"
)

type responseCreated struct {
	ID string `json:"id"`
}

// CreateCreative registra um criativo de anúncio usando a imagem previamente
// enviada e retorna o ID externo gerado
func (c *MetaClient) CreateCreative(ctx context.Context, spec domain.CreativeSpec, mediaID string) (string, error) {
	const op = "create_creative"

	storySpec := map[string]any{
		"page_id": c.Cfg.Meta.PageID,
		"link_data": map[string]any{
			"image_hash": mediaID,
			"link":       c.Cfg.Meta.DefaultLink,
			"name":       spec.Title,
			"message":    spec.Message,
		},
	}
	if spec.CallToAction != nil {
		storySpec["link_data"].(map[string]any)["call_to_action"] = map[string]any{
			"type": *spec.CallToAction,
		}
	}

	storySpecJSON, err := json.Marshal(storySpec)
	if err != nil {
		return "", adplatform.NewPermanent(op, err)
	}

	params := url.Values{}
	params.Set("name", spec.Title)
	params.Set("object_story_spec", string(storySpecJSON))

	body, err := c.postForm(ctx, op, "/act_"+c.Cfg.Meta.AdAccountID+"/adcreatives", params)
	if err != nil {
		return "", err
	}

	var response responseCreated
	if err := json.Unmarshal(body, &response); err != nil {
		logrus.WithError(err).Error("Erro ao decodificar resposta de criação de criativo do Meta")
		return "", adplatform.NewPermanent(op, err)
	}

	return response.ID, nil
}
