package metaclient

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
	"github.com/vfg2006/ad-publisher-api/infrastructure/integrator/adplatform"
	metadomain "github.com/vfg2006/ad-publisher-api/infrastructure/integrator/meta/domain"
	"github.com/vfg2006/ad-publisher-api/internal/config"
	"github.com/vfg2006/ad-publisher-api/internal/domain"
	"golang.org/x/time/rate"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// MetaClient implementa adplatform.Client sobre a Graph API do Meta.
//
// O limitador token-bucket é compartilhado entre o workflow engine e o
// agendador de insights: o recurso contendido é a própria plataforma, não os
// componentes internos, então o orçamento de requisições é único por client.
type MetaClient struct {
	Cfg        *config.Config
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient cria um client da Graph API com rate limit configurável
func NewClient(cfg *config.Config) *MetaClient {
	limit := rate.Limit(cfg.Meta.RateLimitPerSecond)
	if limit <= 0 {
		limit = rate.Limit(1)
	}

	burst := cfg.Meta.RateBurst
	if burst <= 0 {
		burst = 1
	}

	return &MetaClient{
		Cfg:        cfg,
		httpClient: &http.Client{},
		limiter:    rate.NewLimiter(limit, burst),
	}
}

// Platform identifica a plataforma atendida por este client
func (c *MetaClient) Platform() domain.Platform {
	return domain.PlatformMeta
}

// postForm executa um POST de formulário na Graph API respeitando o rate
// limit e o deadline do contexto
func (c *MetaClient) postForm(ctx context.Context, op, endpoint string, params url.Values) ([]byte, error) {
	params.Set("access_token", c.Cfg.Meta.AccessToken)

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.Cfg.Meta.URL+endpoint,
		strings.NewReader(params.Encode()),
	)
	if err != nil {
		return nil, adplatform.NewPermanent(op, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	return c.do(op, req)
}

// get executa um GET na Graph API respeitando o rate limit e o deadline
func (c *MetaClient) get(ctx context.Context, op, endpoint string, params url.Values) ([]byte, error) {
	params.Set("access_token", c.Cfg.Meta.AccessToken)

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodGet,
		c.Cfg.Meta.URL+endpoint+"?"+params.Encode(),
		nil,
	)
	if err != nil {
		return nil, adplatform.NewPermanent(op, err)
	}

	return c.do(op, req)
}

func (c *MetaClient) do(op string, req *http.Request) ([]byte, error) {
	// Aguarda o token-bucket; o deadline do contexto limita a espera
	if err := c.limiter.Wait(req.Context()); err != nil {
		return nil, adplatform.NewTransient(op, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Falhas de rede e timeouts são sempre retentáveis
		return nil, adplatform.NewTransient(op, err)
	}
	defer resp.Body.Close()

	return c.handleResponse(op, resp)
}

// handleResponse lê o corpo da resposta e classifica falhas da Graph API na
// taxonomia transitório/permanente
func (c *MetaClient) handleResponse(op string, resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, adplatform.NewTransient(op, err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return body, nil
	}

	var errResp metadomain.ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		logrus.WithFields(logrus.Fields{
			"op":          op,
			"status_code": resp.StatusCode,
			"meta_code":   errResp.Error.Code,
			"meta_type":   errResp.Error.Type,
			"fbtrace_id":  errResp.Error.FBTraceID,
		}).Warn("Erro retornado pela API do Meta")

		if errResp.IsRateLimited() {
			return nil, adplatform.NewTransient(op, adplatform.ErrRateLimited)
		}
		if errResp.IsAuthError() {
			return nil, adplatform.NewPermanent(op, errors.New(errResp.Error.Message))
		}
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, adplatform.NewTransient(op, adplatform.ErrRateLimited)
	}
	if resp.StatusCode >= 500 {
		return nil, adplatform.NewTransient(op, errors.New(http.StatusText(resp.StatusCode)))
	}

	return nil, adplatform.NewPermanent(op, errors.New(string(body)))
}

// insightWindowParam monta o parâmetro time_range da Graph API
func insightWindowParam(window domain.InsightWindow) string {
	return `{"since":"` + window.Start.Format(time.DateOnly) + `","until":"` + window.End.Format(time.DateOnly) + `"}`
}

var _ adplatform.Client = (*MetaClient)(nil)
