package graphapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/valyala/fasthttp"
	pkgError "github.com/whatspy/whatspy/pkg/error"
	"github.com/whatspy/whatspy/pkg/utils"
)

// ErrNotConfigured is returned when no access token / phone number id is available.
var ErrNotConfigured = errors.New("whatsapp cloud api is not configured")

// Credentials identify the business phone number a message is sent from.
type Credentials struct {
	PhoneNumberID string
	AccessToken   string
}

func (c Credentials) Valid() bool {
	return c.PhoneNumberID != "" && c.AccessToken != ""
}

// Client talks to the WhatsApp Cloud API (graph.facebook.com).
type Client struct {
	baseURL string
	timeout time.Duration
	http    *fasthttp.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		http: &fasthttp.Client{
			Name:                     "whatspy",
			ReadTimeout:              timeout,
			WriteTimeout:             timeout,
			MaxIdleConnDuration:      time.Minute,
			NoDefaultUserAgentHeader: true,
		},
	}
}

// SendText sends a plain text message and returns the vendor message id.
func (c *Client) SendText(ctx context.Context, creds Credentials, to, body string) (string, error) {
	return c.send(ctx, creds, sendRequest{
		Type: "text",
		To:   to,
		Text: &textBody{Body: body, PreviewURL: strings.Contains(body, "http")},
	})
}

// SendMedia sends an image/audio/video/document by public link.
func (c *Client) SendMedia(ctx context.Context, creds Credentials, to string, media Media) (string, error) {
	req := sendRequest{Type: media.Type, To: to}
	body := &mediaBody{Link: media.Link, Caption: media.Caption}
	switch media.Type {
	case "image":
		req.Image = body
	case "video":
		req.Video = body
	case "audio":
		body.Caption = ""
		req.Audio = body
	case "document":
		body.Filename = media.Filename
		req.Document = body
	default:
		return "", pkgError.ValidationError(fmt.Sprintf("unsupported media type: %s", media.Type))
	}
	return c.send(ctx, creds, req)
}

// SendLocation sends a location pin.
func (c *Client) SendLocation(ctx context.Context, creds Credentials, to string, loc Location) (string, error) {
	return c.send(ctx, creds, sendRequest{
		Type: "location",
		To:   to,
		Location: &locationBody{
			Latitude:  loc.Latitude,
			Longitude: loc.Longitude,
			Name:      loc.Name,
			Address:   loc.Address,
		},
	})
}

// SendTemplate sends a pre-approved Meta template.
func (c *Client) SendTemplate(ctx context.Context, creds Credentials, to, name, language string, components []TemplateComponent) (string, error) {
	if language == "" {
		language = "en_US"
	}
	return c.send(ctx, creds, sendRequest{
		Type: "template",
		To:   to,
		Template: &templateBody{
			Name:       name,
			Language:   templateLanguage{Code: language},
			Components: components,
		},
	})
}

// MarkAsRead flags an inbound message as read (blue ticks).
func (c *Client) MarkAsRead(ctx context.Context, creds Credentials, messageID string) error {
	_, err := c.do(ctx, creds, sendRequest{
		MessagingProduct: "whatsapp",
		Status:           "read",
		MessageID:        messageID,
	})
	return err
}

func (c *Client) send(ctx context.Context, creds Credentials, req sendRequest) (string, error) {
	req.MessagingProduct = "whatsapp"
	req.RecipientType = "individual"
	req.To = utils.DigitsOnly(req.To)
	if req.To == "" {
		return "", pkgError.ValidationError("recipient phone is required")
	}

	resp, err := c.do(ctx, creds, req)
	if err != nil {
		return "", err
	}
	if len(resp.Messages) == 0 || resp.Messages[0].ID == "" {
		return "", fmt.Errorf("graph api returned no message id")
	}
	return resp.Messages[0].ID, nil
}

func (c *Client) do(ctx context.Context, creds Credentials, payload sendRequest) (*sendResponse, error) {
	if !creds.Valid() {
		return nil, ErrNotConfigured
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal graph api request: %w", err)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(fmt.Sprintf("%s/%s/messages", c.baseURL, creds.PhoneNumberID))
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.Header.Set("Authorization", "Bearer "+creds.AccessToken)
	req.SetBodyRaw(body)

	timeout := c.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := c.http.DoTimeout(req, resp, timeout); err != nil {
		logrus.WithError(err).Error("[GRAPH_API] Request failed")
		return nil, fmt.Errorf("graph api request failed: %w", err)
	}

	status := resp.StatusCode()
	if status < 200 || status >= 300 {
		return nil, parseAPIError(status, resp.Body())
	}

	var out sendResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return nil, fmt.Errorf("failed to decode graph api response: %w", err)
	}
	return &out, nil
}

func parseAPIError(status int, body []byte) error {
	apiErr := &pkgError.GraphAPIError{HTTPStatus: status, Message: string(body)}
	var er errorResponse
	if err := json.Unmarshal(body, &er); err == nil && er.Error.Message != "" {
		apiErr.Code = er.Error.Code
		apiErr.Type = er.Error.Type
		apiErr.Message = er.Error.Message
	}
	logrus.WithFields(logrus.Fields{
		"http_status": status,
		"code":        apiErr.Code,
	}).Warnf("[GRAPH_API] %s", apiErr.Message)
	return apiErr
}
