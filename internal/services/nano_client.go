package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"regexp"
	"strings"
	"time"

	"github.com/syy-ex/hair-makeover/config"
	"github.com/syy-ex/hair-makeover/internal/utils"
	"github.com/tidwall/gjson"
)

var ErrGeneratorConfig = errors.New("image generation API is not configured")

var dataURLPattern = regexp.MustCompile(`^data:([^;]+);base64,(.+)$`)

// NanoClient calls an OpenAI-style image edit endpoint.
type NanoClient struct {
	cfg    config.NanoConfig
	client *http.Client
}

func NewNanoClient(cfg config.NanoConfig, client *http.Client) *NanoClient {
	if client == nil {
		client = utils.NewHTTPClient(120 * time.Second)
	}
	return &NanoClient{cfg: cfg, client: client}
}

// Ready reports whether the endpoint and key are configured.
func (n *NanoClient) Ready() bool {
	return n.cfg.APIURL != "" && n.cfg.APIKey != ""
}

func (n *NanoClient) Generate(ctx context.Context, req GenerateRequest) ([]string, error) {
	if !n.Ready() {
		return nil, ErrGeneratorConfig
	}

	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	fields := [][2]string{
		{"model", n.cfg.Model},
		{"prompt", req.Prompt},
		{"response_format", n.cfg.ResponseFormat},
		{"aspect_ratio", n.cfg.AspectRatio},
		{"image_size", n.cfg.ImageSize},
	}
	for _, f := range fields {
		if f[1] == "" {
			continue
		}
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, err
		}
	}
	if err := writeImagePart(w, "user-image.png", req.UserImage); err != nil {
		return nil, err
	}
	if err := writeImagePart(w, "hairstyle-image.png", req.HairstyleImage); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(n.cfg.APIURL, "/")+"/v1/images/edits", body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", w.FormDataContentType())
	httpReq.Header.Set("Authorization", "Bearer "+n.cfg.APIKey)

	resp, err := n.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("api returned error status: %d", resp.StatusCode)
	}
	if !gjson.ValidBytes(respBody) {
		return nil, errors.New("failed to decode response")
	}
	return parseNanoOutput(gjson.ParseBytes(respBody)), nil
}

// parseNanoOutput accepts output[], data[].url, data[].b64_json, or a bare
// url / b64_json.
func parseNanoOutput(data gjson.Result) []string {
	out := make([]string, 0)
	if output := data.Get("output"); output.IsArray() {
		for _, item := range output.Array() {
			if item.Type == gjson.String {
				out = append(out, item.Str)
			}
		}
		return out
	}
	if items := data.Get("data"); items.IsArray() {
		for _, item := range items.Array() {
			if u := item.Get("url"); u.Type == gjson.String {
				out = append(out, u.Str)
			} else if b := item.Get("b64_json"); b.Type == gjson.String {
				out = append(out, "data:image/png;base64,"+b.Str)
			}
		}
		return out
	}
	if u := data.Get("url"); u.Type == gjson.String {
		return append(out, u.Str)
	}
	if b := data.Get("b64_json"); b.Type == gjson.String {
		return append(out, "data:image/png;base64,"+b.Str)
	}
	return out
}

func writeImagePart(w *multipart.Writer, filename, dataURL string) error {
	m := dataURLPattern.FindStringSubmatch(dataURL)
	if m == nil {
		return ErrInvalidImage
	}
	raw, err := base64.StdEncoding.DecodeString(m[2])
	if err != nil {
		return ErrInvalidImage
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename="%s"`, filename))
	h.Set("Content-Type", m[1])
	part, err := w.CreatePart(h)
	if err != nil {
		return err
	}
	_, err = part.Write(raw)
	return err
}
