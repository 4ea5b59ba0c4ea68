package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"writer-backend/internal/content"
	"writer-backend/internal/requests"
)

// Webhook delegates generation to an external HTTP service. It POSTs JSON to
// {baseURL}/structure and {baseURL}/article.
type Webhook struct {
	client *resty.Client
}

type webhookStructureRequest struct {
	Request requests.GenerationRequest `json:"request"`
}

type webhookArticleRequest struct {
	Request   requests.GenerationRequest `json:"request"`
	Structure content.StructurePayload   `json:"structure"`
}

type webhookError struct {
	Error string `json:"error"`
}

func NewWebhook(baseURL, apiKey string, timeout time.Duration) (*Webhook, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("GENERATION_BASE_URL is required for webhook")
	}
	client := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Content-Type", "application/json")
	if timeout > 0 {
		client.SetTimeout(timeout)
	}
	if apiKey != "" {
		client.SetAuthToken(apiKey)
	}
	return &Webhook{client: client}, nil
}

func (w *Webhook) GenerateStructure(ctx context.Context, req requests.GenerationRequest) (content.StructurePayload, error) {
	var doc structureDoc
	if err := w.post(ctx, "/structure", webhookStructureRequest{Request: req}, &doc); err != nil {
		return content.StructurePayload{}, wrap(ctx, "structure", err)
	}
	out, err := structureFromDoc(doc, req.Title)
	if err != nil {
		return content.StructurePayload{}, invalidOutput("structure", err)
	}
	return out, nil
}

func (w *Webhook) GenerateArticle(ctx context.Context, structure content.StructurePayload, req requests.GenerationRequest) (content.ArticlePayload, error) {
	var doc articleDoc
	if err := w.post(ctx, "/article", webhookArticleRequest{Request: req, Structure: structure}, &doc); err != nil {
		return content.ArticlePayload{}, wrap(ctx, "article", err)
	}
	out, err := articleFromDoc(doc, structure.Title)
	if err != nil {
		return content.ArticlePayload{}, invalidOutput("article", err)
	}
	return out, nil
}

func (w *Webhook) post(ctx context.Context, path string, body, out any) error {
	var failure webhookError
	resp, err := w.client.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(out).
		SetError(&failure).
		Post(path)
	if err != nil {
		return err
	}
	if resp.IsError() {
		if failure.Error != "" {
			return fmt.Errorf("webhook %s: status %d: %s", path, resp.StatusCode(), failure.Error)
		}
		return fmt.Errorf("webhook %s: status %d", path, resp.StatusCode())
	}
	return nil
}

var _ Client = (*Webhook)(nil)
