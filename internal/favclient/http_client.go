package favclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/hitoshi/recipebox/internal/model"
)

// maxResponseSize はレスポンスボディの読み取り上限。
const maxResponseSize = 1 << 20

// envelope はお気に入りAPIのレスポンスエンベロープ。
type envelope struct {
	Success bool            `json:"success"`
	Data    *model.Favorite `json:"data"`
	Error   string          `json:"error"`
}

// APIError はお気に入りAPIが失敗を返したことを表す。
type APIError struct {
	StatusCode int
	Message    string
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("favorites API returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("favorites API returned status %d: %s", e.StatusCode, e.Message)
}

// HTTPClient はHTTP経由でお気に入りAPIを呼び出すFavoritesAPIの実装。
// 通信エラー、2xx以外のステータス、success:false はいずれもエラーとして返す。
type HTTPClient struct {
	httpClient *http.Client
	baseURL    string
}

// NewHTTPClient はHTTPClientを生成する。baseURLは "http://localhost:8080" のようなサーバーのルート。
func NewHTTPClient(httpClient *http.Client, baseURL string) *HTTPClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &HTTPClient{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// List はお気に入り一覧を取得する。
func (c *HTTPClient) List(ctx context.Context) ([]model.Favorite, error) {
	body, status, err := c.do(ctx, http.MethodGet, "/api/favorites", nil)
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, &APIError{StatusCode: status}
	}

	var favs []model.Favorite
	if err := json.Unmarshal(body, &favs); err != nil {
		return nil, fmt.Errorf("お気に入り一覧のパースに失敗しました: %w", err)
	}
	return favs, nil
}

// Add はお気に入りを追加し、サーバーが作成したレコードを返す。
func (c *HTTPClient) Add(ctx context.Context, recipeID, recipeName, imageURL string) (*model.Favorite, error) {
	payload, err := json.Marshal(map[string]string{
		"recipeId":   recipeID,
		"recipeName": recipeName,
		"imageUrl":   imageURL,
	})
	if err != nil {
		return nil, err
	}
	return c.mutate(ctx, http.MethodPost, "/api/favorites", payload)
}

// Remove はパス形式の削除エンドポイントでお気に入りを削除する。
func (c *HTTPClient) Remove(ctx context.Context, recipeID string) (*model.Favorite, error) {
	return c.mutate(ctx, http.MethodDelete, "/api/favorites/"+url.PathEscape(recipeID), nil)
}

func (c *HTTPClient) mutate(ctx context.Context, method, path string, payload []byte) (*model.Favorite, error) {
	body, status, err := c.do(ctx, method, path, payload)
	if err != nil {
		return nil, err
	}

	var env envelope
	decodeErr := json.Unmarshal(body, &env)

	if status < 200 || status >= 300 {
		return nil, &APIError{StatusCode: status, Message: env.Error}
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("レスポンスのパースに失敗しました: %w", decodeErr)
	}
	if !env.Success {
		return nil, &APIError{StatusCode: status, Message: env.Error}
	}
	return env.Data, nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, payload []byte) ([]byte, int, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, 0, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}
	return body, resp.StatusCode, nil
}

// compile-time interface check
var _ FavoritesAPI = (*HTTPClient)(nil)
