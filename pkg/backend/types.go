package backend

import "github.com/shouni/go-visual-kit/pkg/domain"

// Message はプランナーとの対話履歴の1ターンです。
type Message struct {
	Role    string `json:"role"` // "user" | "assistant"
	Content string `json:"content"`
}

const (
	// RoleUser はユーザー発話のロールです。
	RoleUser = "user"
	// RoleAssistant はバックエンド（モデル）応答のロールです。
	RoleAssistant = "assistant"
)

// TextRequest はストリーミングテキスト生成のリクエストです。
type TextRequest struct {
	Prompt  string `json:"prompt"`
	Context string `json:"context,omitempty"` // 既存ドキュメントなどの参照テキスト
	Stream  bool   `json:"stream"`
}

// ImageBatchRequest は1つの配置スロットに対するバリエーション一括生成のリクエストです。
type ImageBatchRequest struct {
	PlacementID string               `json:"placement_id"`
	Description string               `json:"description"`
	Type        domain.PlacementType `json:"type"`
	AspectRatio string               `json:"aspect_ratio"`
	Style       string               `json:"style,omitempty"`
	BrandColors []string             `json:"brand_colors,omitempty"`
	Count       int                  `json:"count"`
}

// EditRequest は参照画像＋指示文による単発の画像編集リクエストです。
type EditRequest struct {
	ReferenceURL string `json:"reference_url"`
	Prompt       string `json:"prompt"`
	AspectRatio  string `json:"aspect_ratio,omitempty"`
}

// RegenerateRequest は単一バリエーションの再生成リクエストです。
type RegenerateRequest struct {
	Description string `json:"description"`
	Prompt      string `json:"prompt,omitempty"`
	AspectRatio string `json:"aspect_ratio,omitempty"`
	Seed        *int64 `json:"seed,omitempty"`
}

// imageResult は単発系エンドポイント（edit / regenerate）の共通レスポンスです。
type imageResult struct {
	Success bool   `json:"success"`
	Data    string `json:"data,omitempty"` // 生成された画像のURL
	Error   string `json:"error,omitempty"`
}

// PlanRequest は配置プランの取得・継続リクエストです。
// Messages が空なら初回分析、以降はユーザー発話を含む全履歴を毎回送ります。
type PlanRequest struct {
	Content  string    `json:"content"`
	Messages []Message `json:"messages,omitempty"`
}

// PlanResponse は配置プランの提案（または承認確定）です。
// Approved が真の場合、Recommendations はこの応答に同梱されたリストが正であり、
// 過去にキャッシュしたリストより常に優先されます。
type PlanResponse struct {
	Recommendations []domain.PlacementPlan `json:"recommendations"`
	Message         string                 `json:"message"`
	Approved        bool                   `json:"approved,omitempty"`
}
