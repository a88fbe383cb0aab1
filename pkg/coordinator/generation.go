package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/shouni/go-visual-kit/pkg/backend"
	"github.com/shouni/go-visual-kit/pkg/domain"
	"github.com/shouni/go-visual-kit/pkg/stream"
)

// StartGeneration は承認済みプランから生成セッションを開始します。
//
// 最初のスロットのバッチだけをフォアグラウンドで完了させ、その時点で selecting へ
// 遷移して結果を操作可能にします。残りのスロットはバックグラウンドで並行生成を続け、
// 到着したバリエーションは placementID によるマージで既存リストへ合流します。
// この間 IsGeneratingMore は真を保ちます。
func (c *Coordinator) StartGeneration(ctx context.Context, plans []domain.PlacementPlan, style string, brandColors []string) error {
	if len(plans) == 0 {
		return fmt.Errorf("配置プランが空です")
	}

	c.mu.Lock()
	if c.state != StateClosed {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s からは開始できません", ErrInvalidState, c.state)
	}
	epoch := c.epoch
	c.state = StateGenerating
	c.style = style
	c.brandColors = brandColors
	c.placements = make([]domain.Placement, 0, len(plans))
	for _, plan := range plans {
		c.placements = append(c.placements, domain.NewPlacement(plan))
	}
	first := c.placements[0].ID
	rest := make([]string, 0, len(c.placements)-1)
	for _, p := range c.placements[1:] {
		rest = append(rest, p.ID)
	}
	c.progress = domain.GenerationProgress{
		CurrentPlacement: 1,
		TotalImages:      len(plans) * c.opts.VariationCount,
		Message:          "画像を生成しています...",
	}
	progress := c.progress
	c.mu.Unlock()

	c.notifyProgress(progress)
	slog.Info("画像生成セッションを開始します", "placements", len(plans), "variations_per_placement", c.opts.VariationCount)

	// 最初のスロットはフォアグラウンドで完了を待つ
	startTime := time.Now()
	c.runBatch(ctx, epoch, first)
	slog.Info("最初のスロットのバッチが完了しました", "duration", time.Since(startTime).Round(time.Millisecond))

	c.mu.Lock()
	if epoch != c.epoch {
		// フォアグラウンド生成中にモーダルが閉じられた
		c.mu.Unlock()
		return nil
	}
	c.state = StateSelecting
	c.generatingMore = len(rest) > 0
	c.mu.Unlock()

	if len(rest) > 0 {
		go c.continueInBackground(ctx, epoch, rest)
	}
	return nil
}

// continueInBackground は残りのスロットのバッチを並行して発行します。
// 発行はレートリミッターで間隔を空け、1スロットの失敗は他のスロットに波及させません。
func (c *Coordinator) continueInBackground(ctx context.Context, epoch int, placementIDs []string) {
	eg, egCtx := errgroup.WithContext(ctx)

	for _, id := range placementIDs {
		placementID := id
		eg.Go(func() error {
			if err := c.limiter.Wait(egCtx); err != nil {
				return nil // モーダルが閉じられた等。エポック照合で二重に防御される
			}
			c.runBatch(egCtx, epoch, placementID)
			return nil
		})
	}
	_ = eg.Wait()

	c.mu.Lock()
	if epoch != c.epoch {
		c.mu.Unlock()
		return
	}
	c.generatingMore = false
	c.progress = c.progress.WithCompleted(c.progress.CompletedImages, "すべてのスロットの生成が完了しました")
	progress := c.progress
	c.mu.Unlock()

	c.notifyProgress(progress)
	slog.Info("バックグラウンド生成が完了しました", "placements", len(placementIDs))
}

// runBatch は1スロット分のストリーミングバッチを消費します。
// トランスポート障害はこのスロットの残りバリエーションだけを打ち切り、通知を出して終わります。
func (c *Coordinator) runBatch(ctx context.Context, epoch int, placementID string) {
	req, err := c.batchRequest(placementID)
	if err != nil {
		return
	}
	c.markPlacementInFlight(epoch, placementID)

	err = c.client.StreamImageBatch(ctx, req, func(ev stream.Event) error {
		c.applyImageEvent(epoch, placementID, ev)
		return nil
	})
	if err != nil {
		slog.Error("バッチ生成のストリームが失敗しました", "placement_id", placementID, "error", err)
		c.notifyNotice(Notice{PlacementID: placementID, Message: fmt.Sprintf("このスロットの生成に失敗しました: %v", err)})
	}
}

// markPlacementInFlight はバッチ発行直前に、そのスロットの1始まり番号を進捗へ反映します。
// バックグラウンド生成は並行発行のため、番号は「最後に発行が始まったスロット」を指します。
func (c *Coordinator) markPlacementInFlight(epoch int, placementID string) {
	c.mu.Lock()
	if epoch != c.epoch {
		c.mu.Unlock()
		return
	}
	for i := range c.placements {
		if c.placements[i].ID == placementID {
			c.progress.CurrentPlacement = i + 1
			break
		}
	}
	progress := c.progress
	c.mu.Unlock()
	c.notifyProgress(progress)
}

// batchRequest は配置スロットの現在値からバッチリクエストを組み立てます。
func (c *Coordinator) batchRequest(placementID string) (backend.ImageBatchRequest, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p := c.findPlacement(placementID)
	if p == nil {
		return backend.ImageBatchRequest{}, ErrUnknownPlacement
	}
	return backend.ImageBatchRequest{
		PlacementID: p.ID,
		Description: p.Description,
		Type:        p.Type,
		AspectRatio: p.AspectRatio,
		Style:       c.style,
		BrandColors: append([]string(nil), c.brandColors...),
		Count:       c.opts.VariationCount,
	}, nil
}

// applyImageEvent はストリームイベント1件を状態へ反映します。すべての変更は
// ミューテックスの下で直列に適用され、閉鎖後のイベントはエポック照合で破棄されます。
func (c *Coordinator) applyImageEvent(epoch int, placementID string, ev stream.Event) {
	var progress *domain.GenerationProgress
	var notice *Notice

	c.mu.Lock()
	if epoch != c.epoch {
		c.mu.Unlock()
		return
	}

	switch ev.Type {
	case stream.EventTypeImage:
		p := c.findPlacement(placementID)
		if p == nil {
			c.mu.Unlock()
			return
		}
		p.Variations = append(p.Variations, domain.Variation{
			ID:  uuid.NewString(),
			URL: ev.Image,
		})
		c.progress = c.progress.WithCompleted(c.progress.CompletedImages+1, "画像を生成しています...")
		snapshot := c.progress
		progress = &snapshot
		if c.navigator != nil {
			c.navigator.Update(copyPlacements(c.placements))
		}

	case stream.EventTypeError:
		// 1枚分の失敗はそのスロットの欠番として扱い、バッチもセッションも継続する
		notice = &Notice{PlacementID: placementID, Message: fmt.Sprintf("バリエーション1枚の生成に失敗しました: %s", ev.Error)}

	case stream.EventTypeComplete:
		c.progress = c.progress.WithCompleted(c.progress.CompletedImages, "スロットの生成が完了しました")
		snapshot := c.progress
		progress = &snapshot
	}
	c.mu.Unlock()

	if progress != nil {
		c.notifyProgress(*progress)
	}
	if notice != nil {
		slog.Warn("バリエーションの生成に失敗しました", "placement_id", placementID, "error", ev.Error)
		c.notifyNotice(*notice)
	}
}

// RegeneratePlacement は1スロットの候補を破棄し、そのスロットだけ新しいバッチを発行します。
// 当該スロットの選択は（旧バリエーションIDが消滅するため）取り消されますが、
// 他のスロットの選択状態には触れません。完了後は selecting に戻ります。
func (c *Coordinator) RegeneratePlacement(ctx context.Context, placementID, newPrompt string) error {
	c.mu.Lock()
	if c.state != StateSelecting {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s からは再生成できません", ErrInvalidState, c.state)
	}
	p := c.findPlacement(placementID)
	if p == nil {
		c.mu.Unlock()
		return ErrUnknownPlacement
	}
	epoch := c.epoch
	c.state = StateRegenerating
	discarded := len(p.Variations)
	p.Variations = []domain.Variation{}
	if newPrompt != "" {
		p.Description = newPrompt
	}
	c.store.ClearSelection(placementID)
	if c.navigator != nil {
		c.navigator.Update(copyPlacements(c.placements))
	}
	c.mu.Unlock()

	slog.Info("スロットを再生成します", "placement_id", placementID, "discarded", discarded)
	c.runBatch(ctx, epoch, placementID)

	c.mu.Lock()
	defer c.mu.Unlock()
	if epoch != c.epoch {
		return nil
	}
	c.state = StateSelecting
	return nil
}

// findPlacement は呼び出し側でロックを保持している前提の内部ヘルパーです。
func (c *Coordinator) findPlacement(placementID string) *domain.Placement {
	for i := range c.placements {
		if c.placements[i].ID == placementID {
			return &c.placements[i]
		}
	}
	return nil
}

func (c *Coordinator) notifyProgress(progress domain.GenerationProgress) {
	if c.opts.OnProgress != nil {
		c.opts.OnProgress(progress)
	}
}

func (c *Coordinator) notifyNotice(notice Notice) {
	if c.opts.OnNotice != nil {
		c.opts.OnNotice(notice)
	}
}
