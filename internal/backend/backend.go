// Package backend はリモートコラボレータ（認証・カタログ・決済バックエンド）の
// HTTPクライアントを提供する。
// いずれのバックエンドも実装の詳細は不透明であり、ここでは公開契約のみを消費する。
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const (
	// userAgent は全バックエンド呼び出しで使用するUser-Agentヘッダー。
	userAgent = "CulqiPay/1.0"
	// maxResponseSize はレスポンスボディの最大読み取りサイズ（1MB）。
	maxResponseSize = 1 << 20
)

// newJSONRequest はJSONボディ付きのHTTPリクエストを作成する。
// bodyがnilの場合はボディなしのリクエストを作成する。
// accessTokenが空でない場合はBearer認証ヘッダーを付与する。
func newJSONRequest(ctx context.Context, method, url string, body any, accessToken string) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}

	req.Header.Set("User-Agent", userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	return req, nil
}

// readBody はレスポンスボディをサイズ上限付きで読み取る。
func readBody(resp *http.Response) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return data, nil
}
