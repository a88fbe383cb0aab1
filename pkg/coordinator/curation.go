package coordinator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/shouni/go-visual-kit/pkg/backend"
	"github.com/shouni/go-visual-kit/pkg/domain"
	"github.com/shouni/go-visual-kit/pkg/lightbox"
)

// interactiveStates は選択・スキップ操作が許可される状態の集合です。
// サブビュー（等倍表示・編集・再生成）を離れなくても選択は可能です。
var interactiveStates = map[ModalState]bool{
	StateSelecting:    true,
	StateLightbox:     true,
	StateEditing:      true,
	StateRegenerating: true,
}

// SelectImage は指定スロットの選択バリエーションを上書きします。
func (c *Coordinator) SelectImage(placementID, variationID string) error {
	c.mu.Lock()
	if !interactiveStates[c.state] {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s では選択できません", ErrInvalidState, c.state)
	}
	p := c.findPlacement(placementID)
	if p == nil {
		c.mu.Unlock()
		return ErrUnknownPlacement
	}
	if p.FindVariation(variationID) == nil {
		c.mu.Unlock()
		return ErrUnknownVariation
	}
	c.mu.Unlock()

	c.store.Select(placementID, variationID)
	return nil
}

// SkipPlacement は指定スロットを明示的にスキップします。既存の選択は破棄されます。
func (c *Coordinator) SkipPlacement(placementID string) error {
	c.mu.Lock()
	if !interactiveStates[c.state] {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s ではスキップできません", ErrInvalidState, c.state)
	}
	if c.findPlacement(placementID) == nil {
		c.mu.Unlock()
		return ErrUnknownPlacement
	}
	c.mu.Unlock()

	c.store.Skip(placementID)
	return nil
}

// OpenLightbox は指定バリエーションから等倍表示を開き、隣接画像を先読みします。
func (c *Coordinator) OpenLightbox(ctx context.Context, variationID string) error {
	c.mu.Lock()
	if c.state != StateSelecting {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s からは等倍表示を開けません", ErrInvalidState, c.state)
	}
	if _, ok := c.navigator.Find(variationID); !ok {
		c.mu.Unlock()
		return ErrUnknownVariation
	}
	c.state = StateLightbox
	c.lightboxID = variationID
	c.mu.Unlock()

	c.navigator.PrefetchAdjacent(ctx, variationID)
	return nil
}

// NavigateLightbox は表示位置を指定バリエーションへ移し、隣接画像を先読みします。
// 親の状態スタックは変えません（lightbox のままです）。
func (c *Coordinator) NavigateLightbox(ctx context.Context, variationID string) error {
	c.mu.Lock()
	if c.state != StateLightbox {
		c.mu.Unlock()
		return fmt.Errorf("%w: 等倍表示が開いていません", ErrInvalidState)
	}
	if _, ok := c.navigator.Find(variationID); !ok {
		c.mu.Unlock()
		return ErrUnknownVariation
	}
	c.lightboxID = variationID
	c.mu.Unlock()

	c.navigator.PrefetchAdjacent(ctx, variationID)
	return nil
}

// LightboxNext は折り返しありで次の画像へ移動します。
func (c *Coordinator) LightboxNext(ctx context.Context) (lightbox.Image, error) {
	return c.lightboxStep(ctx, c.navigator.Next)
}

// LightboxPrevious は折り返しありで前の画像へ移動します。
func (c *Coordinator) LightboxPrevious(ctx context.Context) (lightbox.Image, error) {
	return c.lightboxStep(ctx, c.navigator.Previous)
}

func (c *Coordinator) lightboxStep(ctx context.Context, step func(string) (lightbox.Image, bool)) (lightbox.Image, error) {
	c.mu.Lock()
	if c.state != StateLightbox {
		c.mu.Unlock()
		return lightbox.Image{}, fmt.Errorf("%w: 等倍表示が開いていません", ErrInvalidState)
	}
	current := c.lightboxID
	c.mu.Unlock()

	img, ok := step(current)
	if !ok {
		return lightbox.Image{}, ErrUnknownVariation
	}
	if err := c.NavigateLightbox(ctx, img.ID); err != nil {
		return lightbox.Image{}, err
	}
	return img, nil
}

// CurrentLightboxImage は等倍表示中の画像を返します。
func (c *Coordinator) CurrentLightboxImage() (lightbox.Image, bool) {
	c.mu.Lock()
	current := c.lightboxID
	c.mu.Unlock()
	if current == "" {
		return lightbox.Image{}, false
	}
	return c.navigator.Find(current)
}

// CloseLightbox は等倍表示を閉じて selecting に戻ります。
func (c *Coordinator) CloseLightbox() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateLightbox {
		c.state = StateSelecting
		c.lightboxID = ""
	}
}

// OpenEdit は参照画像編集のサブビューを開きます。編集スロットは単一占有です。
func (c *Coordinator) OpenEdit(variationID, placementID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateSelecting && c.state != StateLightbox {
		return fmt.Errorf("%w: %s からは編集を開けません", ErrInvalidState, c.state)
	}
	p := c.findPlacement(placementID)
	if p == nil {
		return ErrUnknownPlacement
	}
	v := p.FindVariation(variationID)
	if v == nil {
		return ErrUnknownVariation
	}
	c.state = StateEditing
	c.editing = &editSlot{
		placementID:  placementID,
		variationID:  variationID,
		referenceURL: v.URL,
	}
	return nil
}

// SubmitEdit は参照画像＋指示文の単発編集を実行します。成功時は元を変更せず
// 新しいバリエーションをスロット末尾に追記して selecting へ戻ります。
// 失敗時は editing に留まり、保持済みの参照画像でそのままリトライできます。
func (c *Coordinator) SubmitEdit(ctx context.Context, prompt string) error {
	c.mu.Lock()
	if c.state != StateEditing || c.editing == nil {
		c.mu.Unlock()
		return ErrEditNotOpen
	}
	slot := *c.editing
	epoch := c.epoch
	var aspectRatio string
	if p := c.findPlacement(slot.placementID); p != nil {
		aspectRatio = p.AspectRatio
	}
	c.mu.Unlock()

	url, err := c.client.EditImage(ctx, backend.EditRequest{
		ReferenceURL: slot.referenceURL,
		Prompt:       prompt,
		AspectRatio:  aspectRatio,
	})
	if err != nil {
		// editing に留まる。エラーは呼び出し元がインライン表示する
		return fmt.Errorf("画像の編集に失敗しました: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if epoch != c.epoch {
		return nil
	}
	p := c.findPlacement(slot.placementID)
	if p == nil {
		return ErrUnknownPlacement
	}
	p.Variations = append(p.Variations, domain.Variation{
		ID:     uuid.NewString(),
		URL:    url,
		Prompt: prompt,
	})
	if c.navigator != nil {
		c.navigator.Update(copyPlacements(c.placements))
	}
	c.editing = nil
	c.state = StateSelecting
	slog.Info("編集結果を新しいバリエーションとして追加しました", "placement_id", slot.placementID)
	return nil
}

// CloseEdit は編集サブビューを破棄して selecting に戻ります。
func (c *Coordinator) CloseEdit() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateEditing {
		c.editing = nil
		c.state = StateSelecting
	}
}

// OpenRegenerate は1枚単位の再生成ポップオーバーを開きます。単一占有です。
func (c *Coordinator) OpenRegenerate(placementID, variationID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateSelecting {
		return fmt.Errorf("%w: %s からは再生成を開けません", ErrInvalidState, c.state)
	}
	p := c.findPlacement(placementID)
	if p == nil {
		return ErrUnknownPlacement
	}
	if p.FindVariation(variationID) == nil {
		return ErrUnknownVariation
	}
	c.state = StateRegenerating
	c.regen = &regenSlot{placementID: placementID, variationID: variationID}
	return nil
}

// SubmitRegenerate は単発エンドポイントで1枚だけ再生成し、対象バリエーションを
// 新しいIDと画像で置き換えます。旧IDを指していた選択は取り消されます。
func (c *Coordinator) SubmitRegenerate(ctx context.Context, prompt string) error {
	c.mu.Lock()
	if c.state != StateRegenerating || c.regen == nil {
		c.mu.Unlock()
		return ErrRegenerateNotOpen
	}
	slot := *c.regen
	epoch := c.epoch
	var description, aspectRatio string
	if p := c.findPlacement(slot.placementID); p != nil {
		description = p.Description
		aspectRatio = p.AspectRatio
	}
	c.mu.Unlock()

	url, err := c.client.RegenerateImage(ctx, backend.RegenerateRequest{
		Description: description,
		Prompt:      prompt,
		AspectRatio: aspectRatio,
	})
	if err != nil {
		return fmt.Errorf("画像の再生成に失敗しました: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if epoch != c.epoch {
		return nil
	}
	p := c.findPlacement(slot.placementID)
	if p == nil {
		return ErrUnknownPlacement
	}
	for i := range p.Variations {
		if p.Variations[i].ID == slot.variationID {
			p.Variations[i] = domain.Variation{ID: uuid.NewString(), URL: url, Prompt: prompt}
			break
		}
	}
	if selected, ok := c.store.Selected(slot.placementID); ok && selected == slot.variationID {
		c.store.ClearSelection(slot.placementID)
	}
	if c.navigator != nil {
		c.navigator.Update(copyPlacements(c.placements))
	}
	c.regen = nil
	c.state = StateSelecting
	return nil
}

// CloseRegenerate は再生成ポップオーバーを破棄して selecting に戻ります。
func (c *Coordinator) CloseRegenerate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateRegenerating && c.regen != nil {
		c.regen = nil
		c.state = StateSelecting
	}
}

// ApplyImages は成功経路の終端です。選択マップから最終リストを組み立てて
// ドキュメントモデルへ引き渡し、モーダルを閉じます。スキップ済みスロットと
// 未選択スロットは何も寄与しません。引き渡しに失敗した場合は状態を保ちます。
func (c *Coordinator) ApplyImages(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateSelecting {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s からは適用できません", ErrInvalidState, c.state)
	}
	applied := c.buildAppliedImages()
	c.mu.Unlock()

	if err := c.applier.ApplyImages(ctx, applied); err != nil {
		return fmt.Errorf("ドキュメントへの画像適用に失敗しました: %w", err)
	}

	slog.Info("画像をドキュメントへ適用しました", "count", len(applied))
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reset()
	return nil
}

// buildAppliedImages は呼び出し側でロックを保持している前提の内部ヘルパーです。
// 配置リストの元の順序を保ちます。
func (c *Coordinator) buildAppliedImages() []domain.AppliedImage {
	var applied []domain.AppliedImage
	for i := range c.placements {
		p := &c.placements[i]
		if c.store.IsSkipped(p.ID) {
			continue
		}
		variationID, ok := c.store.Selected(p.ID)
		if !ok {
			continue
		}
		v := p.FindVariation(variationID)
		if v == nil {
			continue
		}
		applied = append(applied, domain.AppliedImage{
			ImageURL:      v.URL,
			AspectRatio:   p.AspectRatio,
			PlacementType: p.Type,
			Position:      p.Position,
		})
	}
	return applied
}
