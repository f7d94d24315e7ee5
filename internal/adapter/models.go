package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
)

// RemoteModel describes a model a provider reports as available.
type RemoteModel struct {
	Name        string
	DisplayName string
	// CanGenerate is false for embedding-only models when the provider says so.
	CanGenerate bool
}

// ModelLister is implemented by adapters that can enumerate provider models.
type ModelLister interface {
	ListModels(ctx context.Context) ([]RemoteModel, error)
}

type geminiModelList struct {
	Models []struct {
		Name                       string   `json:"name"`
		DisplayName                string   `json:"displayName"`
		SupportedGenerationMethods []string `json:"supportedGenerationMethods"`
	} `json:"models"`
	NextPageToken string `json:"nextPageToken"`
}

// ListModels pages through the Gemini models endpoint.
func (g *geminiAdapter) ListModels(ctx context.Context) ([]RemoteModel, error) {
	var out []RemoteModel
	token := ""
	for {
		q := url.Values{"key": {g.apiKey}}
		if token != "" {
			q.Set("pageToken", token)
		}
		var page geminiModelList
		if err := getJSON(ctx, g.client, g.baseURL+"/models?"+q.Encode(), &page); err != nil {
			return nil, fmt.Errorf("gemini list models: %w", err)
		}
		for _, m := range page.Models {
			out = append(out, RemoteModel{
				Name:        m.Name,
				DisplayName: m.DisplayName,
				CanGenerate: containsString(m.SupportedGenerationMethods, "generateContent"),
			})
		}
		if page.NextPageToken == "" {
			return out, nil
		}
		token = page.NextPageToken
	}
}

type ollamaTags struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// ListModels returns the models pulled into the local Ollama instance.
func (o *ollamaAdapter) ListModels(ctx context.Context) ([]RemoteModel, error) {
	var tags ollamaTags
	if err := getJSON(ctx, o.client, o.host+"/api/tags", &tags); err != nil {
		return nil, fmt.Errorf("ollama list models: %w", err)
	}
	out := make([]RemoteModel, len(tags.Models))
	for i, m := range tags.Models {
		out[i] = RemoteModel{Name: m.Name, CanGenerate: true}
	}
	return out, nil
}

// ListModels returns the models visible to the API key, sorted by ID.
func (o *openaiAdapter) ListModels(ctx context.Context) ([]RemoteModel, error) {
	list, err := o.client.ListModels(ctx)
	if err != nil {
		return nil, fmt.Errorf("openai list models: %w", err)
	}
	out := make([]RemoteModel, len(list.Models))
	for i, m := range list.Models {
		out[i] = RemoteModel{Name: m.ID, CanGenerate: !strings.Contains(m.ID, "embedding")}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func getJSON(ctx context.Context, client *http.Client, target string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("status %d: %s", resp.StatusCode, body)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
