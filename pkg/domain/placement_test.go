package domain

import (
	"encoding/json"
	"testing"
)

func TestNewPlacement(t *testing.T) {
	t.Run("配置案から空のバリエーションを持つPlacementが生成されること", func(t *testing.T) {
		plan := PlacementPlan{
			Type:        PlacementHeader,
			Description: "夕暮れの都市スカイライン",
		}

		p := NewPlacement(plan)

		if p.ID == "" {
			t.Error("IDが採番されていません")
		}
		if p.AspectRatio != HeaderAspectRatio {
			t.Errorf("期待値 '%s', 実際の値 '%s'", HeaderAspectRatio, p.AspectRatio)
		}
		if p.Variations == nil || len(p.Variations) != 0 {
			t.Errorf("Variationsは空のリストで初期化されるべきです: %v", p.Variations)
		}
	})

	t.Run("アスペクト比が指定されていればそれが優先されること", func(t *testing.T) {
		p := NewPlacement(PlacementPlan{Type: PlacementBody, AspectRatio: "1:1"})
		if p.AspectRatio != "1:1" {
			t.Errorf("期待値 '1:1', 実際の値 '%s'", p.AspectRatio)
		}
	})
}

func TestPlacement_FindVariation(t *testing.T) {
	p := Placement{
		ID:   "p1",
		Type: PlacementBody,
		Variations: []Variation{
			{ID: "v1", URL: "http://example.com/1.png"},
			{ID: "v2", URL: "http://example.com/2.png"},
		},
	}

	if v := p.FindVariation("v2"); v == nil || v.URL != "http://example.com/2.png" {
		t.Errorf("v2が取得できません: %+v", v)
	}
	if v := p.FindVariation("missing"); v != nil {
		t.Errorf("存在しないIDでnil以外が返りました: %+v", v)
	}
}

func TestPlacementPlan_JSON(t *testing.T) {
	t.Run("バックエンドのレコメンデーション形式をパースできること", func(t *testing.T) {
		inputJSON := `{
			"type": "body",
			"description": "手順を示す図解",
			"aspect_ratio": "4:3",
			"position": 2
		}`

		var plan PlacementPlan
		if err := json.Unmarshal([]byte(inputJSON), &plan); err != nil {
			t.Fatalf("パースに失敗しました: %v", err)
		}
		if plan.Type != PlacementBody || plan.Position != 2 {
			t.Errorf("期待した内容と一致しません: %+v", plan)
		}
	})
}

func TestGenerationProgress_WithCompleted(t *testing.T) {
	g := GenerationProgress{TotalImages: 6}

	next := g.WithCompleted(3, "生成中")

	if next.Percent != 50 {
		t.Errorf("期待値 50, 実際の値 %d", next.Percent)
	}
	// 元のスナップショットは変更されないこと
	if g.CompletedImages != 0 || g.Percent != 0 {
		t.Errorf("元のスナップショットが変更されています: %+v", g)
	}
}
