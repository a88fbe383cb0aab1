package domain

import (
	"fmt"

	"github.com/google/uuid"
)

// PlacementType は画像を挿入するドキュメント上のスロットの種別です。
type PlacementType string

const (
	// PlacementHeader はページ先頭のヒーロー画像スロットです。
	PlacementHeader PlacementType = "header"
	// PlacementBody は本文中の挿絵スロットです。
	PlacementBody PlacementType = "body"
)

const (
	// HeaderAspectRatio はヘッダー画像の推奨アスペクト比です。
	HeaderAspectRatio = "16:9"
	// BodyAspectRatio は本文挿絵の推奨アスペクト比です。
	BodyAspectRatio = "4:3"
)

// Placement は1つの画像スロットと、そこに集まった候補バリエーション群を保持します。
// Variations は生成イベントの到着に応じて増えるだけで、明示的な再生成時のみ置き換えられます。
type Placement struct {
	ID          string        `json:"id"`
	Type        PlacementType `json:"type"`
	Description string        `json:"description"`
	AspectRatio string        `json:"aspect_ratio"`
	Position    int           `json:"position,omitempty"` // 本文中の挿入位置（段落インデックス）
	Variations  []Variation   `json:"variations"`
}

// Variation は1つのスロットに対する生成候補画像です。
// URL が確定しロードが完了した後は不変として扱います。
type Variation struct {
	ID        string `json:"id"`
	URL       string `json:"url"`
	IsLoading bool   `json:"is_loading"`
	Prompt    string `json:"prompt,omitempty"`
	Seed      *int64 `json:"seed,omitempty"`
}

// PlacementPlan はプランナーが提案する配置案（生成前のレコメンデーション）です。
type PlacementPlan struct {
	Type        PlacementType `json:"type"`
	Description string        `json:"description"`
	AspectRatio string        `json:"aspect_ratio"`
	Position    int           `json:"position,omitempty"`
}

// AppliedImage は選択確定後にドキュメント側へ引き渡す最終形です。
type AppliedImage struct {
	ImageURL      string        `json:"image_url"`
	AspectRatio   string        `json:"aspect_ratio"`
	PlacementType PlacementType `json:"placement_type"`
	Position      int           `json:"position,omitempty"`
}

// NewPlacement は配置案から空のバリエーションリストを持つ Placement を生成します。
func NewPlacement(plan PlacementPlan) Placement {
	ratio := plan.AspectRatio
	if ratio == "" {
		ratio = DefaultAspectRatio(plan.Type)
	}
	return Placement{
		ID:          uuid.NewString(),
		Type:        plan.Type,
		Description: plan.Description,
		AspectRatio: ratio,
		Position:    plan.Position,
		Variations:  []Variation{},
	}
}

// DefaultAspectRatio はスロット種別ごとの既定アスペクト比を返します。
func DefaultAspectRatio(t PlacementType) string {
	if t == PlacementHeader {
		return HeaderAspectRatio
	}
	return BodyAspectRatio
}

// FindVariation はIDからバリエーションを特定します。見つからない場合は nil を返します。
func (p *Placement) FindVariation(variationID string) *Variation {
	for i := range p.Variations {
		if p.Variations[i].ID == variationID {
			return &p.Variations[i]
		}
	}
	return nil
}

// String は配置情報を文字列で返します。
func (p Placement) String() string {
	return fmt.Sprintf("%s [%s] %s", p.ID, p.Type, p.Description)
}
