package metaclient

import (
	"context"
	"encoding/base64"
	"net/url"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/vfg2006/ad-publisher-api/infrastructure/integrator/adplatform"
)

type responseAdImage struct {
	Images map[string]struct {
		Hash string `json:"hash"`
		URL  string `json:"url"`
	} `json:"images"`
}

// UploadMedia envia a imagem do anúncio para a conta configurada e retorna o
// hash gerado pela plataforma. Arquivo ilegível é erro permanente: nenhuma
// quantidade de retentativas corrige uma mídia inválida.
func (c *MetaClient) UploadMedia(ctx context.Context, mediaPath string) (string, error) {
	const op = "upload_media"

	content, err := os.ReadFile(mediaPath)
	if err != nil {
		return "", adplatform.NewPermanent(op, adplatform.ErrInvalidMedia)
	}

	params := url.Values{}
	params.Set("name", filepath.Base(mediaPath))
	params.Set("bytes", base64.StdEncoding.EncodeToString(content))

	body, err := c.postForm(ctx, op, "/act_"+c.Cfg.Meta.AdAccountID+"/adimages", params)
	if err != nil {
		return "", err
	}

	var response responseAdImage
	if err := json.Unmarshal(body, &response); err != nil {
		logrus.WithError(err).Error("Erro ao decodificar resposta de upload de mídia do Meta")
		return "", adplatform.NewPermanent(op, err)
	}

	for _, image := range response.Images {
		if image.Hash != "" {
			return image.Hash, nil
		}
	}

	return "", adplatform.NewPermanent(op, adplatform.ErrInvalidMedia)
}
