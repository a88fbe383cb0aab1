package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/shouni/go-visual-kit/pkg/stream"
)

// バックエンド通信のセンチネルエラー群です。
var (
	// ErrUnreachable は設定されたエンドポイントにバックエンドが存在しない場合に返します。
	ErrUnreachable = errors.New("backend unreachable")
	// ErrRequestFailed はAPIリクエストが非2xxで失敗した場合に返します。
	ErrRequestFailed = errors.New("backend request failed")
	// ErrConnectionTimeout は接続がタイムアウトした場合に返します。
	ErrConnectionTimeout = errors.New("backend connection timeout")
	// ErrGeneration は単発生成APIが success=false を返した場合に返します。
	ErrGeneration = errors.New("image generation rejected")
)

const (
	endpointGenerateText    = "/api/generate/text"
	endpointGenerateImages  = "/api/generate/images"
	endpointRegenerateImage = "/api/images/regenerate"
	endpointEditImage       = "/api/images/edit"
	endpointImagePlan       = "/api/images/plan"
)

// streamReadBufferSize はストリーム読み取りのチャンクサイズです。
const streamReadBufferSize = 4 * 1024

// Client はコンテンツ生成バックエンドとの通信を担います。
// 通常リクエストは既定タイムアウト、編集・再生成は分単位の延長タイムアウト、
// ストリーミングはタイムアウトなし（context で寿命管理）と、3種のクライアントを使い分けます。
type Client struct {
	endpoint     string
	apiKey       string
	httpClient   *http.Client
	slowClient   *http.Client
	streamClient *http.Client
}

// New は新しいバックエンドクライアントを生成します。
// timeout は単発リクエスト用、slowTimeout は編集・再生成用の延長タイムアウトです。
func New(endpoint, apiKey string, timeout, slowTimeout time.Duration) *Client {
	return &Client{
		endpoint:     endpoint,
		apiKey:       apiKey,
		httpClient:   &http.Client{Timeout: timeout},
		slowClient:   &http.Client{Timeout: slowTimeout},
		streamClient: &http.Client{},
	}
}

// OnEvent はストリーム上の各イベントに対して呼ばれるコールバックです。
// 返り値が非nilの場合、ストリームの消費を中断します。
type OnEvent func(ev stream.Event) error

// StreamText はテキスト生成ストリームを開き、各イベントをコールバックへ順に渡します。
func (c *Client) StreamText(ctx context.Context, req TextRequest, onEvent OnEvent) error {
	req.Stream = true
	return c.consumeStream(ctx, endpointGenerateText, req, onEvent)
}

// StreamImageBatch は1スロット分の画像バッチ生成ストリームを開きます。
// 画像フレームは到着順にコールバックへ渡されるため、バッチ完了を待たずに部分結果を描画できます。
func (c *Client) StreamImageBatch(ctx context.Context, req ImageBatchRequest, onEvent OnEvent) error {
	return c.consumeStream(ctx, endpointGenerateImages, req, onEvent)
}

// consumeStream はストリーミングエンドポイントへPOSTし、レスポンスボディを
// チャンク単位で FrameParser に通して、完成したイベントを同期的に払い出します。
// 1チャンク内の全イベントを処理し終えるまで次のチャンクは読みません。
func (c *Client) consumeStream(ctx context.Context, path string, payload any, onEvent OnEvent) error {
	resp, err := c.post(ctx, c.streamClient, path, payload)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	parser := stream.NewParser()
	buf := make([]byte, streamReadBufferSize)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			for _, ev := range parser.Feed(buf[:n]) {
				if cbErr := onEvent(ev); cbErr != nil {
					return cbErr
				}
			}
		}
		if readErr == io.EOF {
			return nil
		}
		if readErr != nil {
			return c.classifyError(readErr)
		}
	}
}

// GetImagePlan は配置プランの初回取得、または対話を踏まえた更新を行います。
func (c *Client) GetImagePlan(ctx context.Context, req PlanRequest) (*PlanResponse, error) {
	resp, err := c.post(ctx, c.httpClient, endpointImagePlan, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var plan PlanResponse
	if err := json.NewDecoder(resp.Body).Decode(&plan); err != nil {
		return nil, fmt.Errorf("プラン応答のデコードに失敗しました: %w", err)
	}
	return &plan, nil
}

// EditImage は参照画像＋指示文による単発編集を実行し、新しい画像URLを返します。
// 編集は素の生成より大幅に遅いため、延長タイムアウトのクライアントを使います。
func (c *Client) EditImage(ctx context.Context, req EditRequest) (string, error) {
	return c.singleShotImage(ctx, endpointEditImage, req)
}

// RegenerateImage は単一バリエーションを再生成し、新しい画像URLを返します。
func (c *Client) RegenerateImage(ctx context.Context, req RegenerateRequest) (string, error) {
	return c.singleShotImage(ctx, endpointRegenerateImage, req)
}

// singleShotImage は {success, data, error} 形式の単発画像エンドポイントを呼び出します。
func (c *Client) singleShotImage(ctx context.Context, path string, payload any) (string, error) {
	resp, err := c.post(ctx, c.slowClient, path, payload)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var result imageResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("画像応答のデコードに失敗しました: %w", err)
	}
	if !result.Success {
		return "", fmt.Errorf("%w: %s", ErrGeneration, result.Error)
	}
	return result.Data, nil
}

// FetchImage は画像URLからバイト列を取得します。ライトボックスのプリフェッチで使用します。
func (c *Client) FetchImage(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("リクエストの生成に失敗しました: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status %d", ErrRequestFailed, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// post はJSONボディのPOSTを発行し、非2xxをエラーに変換して返します。
func (c *Client) post(ctx context.Context, client *http.Client, path string, payload any) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("リクエストのエンコードに失敗しました: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("リクエストの生成に失敗しました: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		classified := c.classifyError(err)
		if errors.Is(classified, ErrUnreachable) {
			return nil, fmt.Errorf("%w at %s", ErrUnreachable, c.endpoint)
		}
		return nil, classified
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		resp.Body.Close()
		return nil, fmt.Errorf("%w: status %d: %s", ErrRequestFailed, resp.StatusCode, string(errBody))
	}
	return resp, nil
}

// classifyError はトランスポートエラーをセンチネルエラーに分類します。
func (c *Client) classifyError(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrConnectionTimeout, err)
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrConnectionTimeout, err)
	}

	return fmt.Errorf("%w: %v", ErrRequestFailed, err)
}
