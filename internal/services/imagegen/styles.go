package imagegen

import (
	"context"
	"encoding/base64"
	"strings"

	"songflow/internal/config"
	"songflow/internal/services"
)

type openRouterRequest struct {
	Model      string              `json:"model"`
	Messages   []openRouterMessage `json:"messages"`
	Modalities []string            `json:"modalities"`
}

type openRouterMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openRouterResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
			Images  []struct {
				ImageURL struct {
					URL string `json:"url"`
				} `json:"image_url"`
			} `json:"images"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *Client) generateOpenRouter(ctx context.Context, conn config.ImageConfig, prompt string) (Image, error) {
	payload := openRouterRequest{
		Model: conn.Model,
		Messages: []openRouterMessage{{
			Role:    "user",
			Content: "Create square album cover art. No text, letters, or logos. " + prompt,
		}},
		Modalities: []string{"image", "text"},
	}
	var resp openRouterResponse
	if err := c.postJSON(ctx, conn, payload, &resp); err != nil {
		return Image{}, services.WrapCall("cover", "image provider", err)
	}
	for _, choice := range resp.Choices {
		for _, image := range choice.Message.Images {
			url := strings.TrimSpace(image.ImageURL.URL)
			if url == "" {
				continue
			}
			if strings.HasPrefix(url, "data:") {
				img, err := decodeDataURL(url)
				if err != nil {
					return Image{}, services.Wrap(services.ErrValidation, "cover", "decode image", "", err)
				}
				return img, nil
			}
			img, err := c.download(ctx, url)
			if err != nil {
				return Image{}, services.WrapCall("cover", "download image", err)
			}
			return img, nil
		}
	}
	return Image{}, services.Wrap(services.ErrValidation, "cover", "decode response", "provider returned no image", nil)
}

type openAIRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	N      int    `json:"n"`
	Size   string `json:"size"`
}

type openAIResponse struct {
	Data []struct {
		B64JSON string `json:"b64_json"`
		URL     string `json:"url"`
	} `json:"data"`
}

func (c *Client) generateOpenAI(ctx context.Context, conn config.ImageConfig, prompt string) (Image, error) {
	payload := openAIRequest{
		Model:  conn.Model,
		Prompt: "Square album cover art, no text or lettering. " + prompt,
		N:      1,
		Size:   "1024x1024",
	}
	var resp openAIResponse
	if err := c.postJSON(ctx, conn, payload, &resp); err != nil {
		return Image{}, services.WrapCall("cover", "image provider", err)
	}
	for _, item := range resp.Data {
		if item.B64JSON != "" {
			data, err := base64.StdEncoding.DecodeString(item.B64JSON)
			if err != nil {
				return Image{}, services.Wrap(services.ErrValidation, "cover", "decode image", "", err)
			}
			return Image{Data: data, MIMEType: sniff(data, "")}, nil
		}
		if item.URL != "" {
			img, err := c.download(ctx, item.URL)
			if err != nil {
				return Image{}, services.WrapCall("cover", "download image", err)
			}
			return img, nil
		}
	}
	return Image{}, services.Wrap(services.ErrValidation, "cover", "decode response", "provider returned no image", nil)
}
