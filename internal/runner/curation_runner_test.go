package runner

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shouni/go-visual-kit/internal/config"
	"github.com/shouni/go-visual-kit/pkg/backend"
	"github.com/shouni/go-visual-kit/pkg/coordinator"
	"github.com/shouni/go-visual-kit/pkg/domain"
	"github.com/shouni/go-visual-kit/pkg/lightbox"
	"github.com/shouni/go-visual-kit/pkg/stream"
)

// stubImageClient は説明文ごとに固定URLのバリエーションを1枚ずつ返すのだ。
type stubImageClient struct {
	urls map[string][]string
}

func (c *stubImageClient) StreamImageBatch(_ context.Context, req backend.ImageBatchRequest, onEvent backend.OnEvent) error {
	urls := c.urls[req.Description]
	for i, u := range urls {
		idx := i
		if err := onEvent(stream.Event{Type: stream.EventTypeImage, Image: u, VariationIndex: &idx, TotalCount: len(urls)}); err != nil {
			return err
		}
	}
	return onEvent(stream.Event{Type: stream.EventTypeComplete})
}

func (c *stubImageClient) EditImage(context.Context, backend.EditRequest) (string, error) {
	return "", nil
}

func (c *stubImageClient) RegenerateImage(context.Context, backend.RegenerateRequest) (string, error) {
	return "", nil
}

// captureApplier は適用された最終リストを記録するのだ。
type captureApplier struct {
	mu      sync.Mutex
	applied []domain.AppliedImage
}

func (a *captureApplier) ApplyImages(_ context.Context, images []domain.AppliedImage) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.applied = append([]domain.AppliedImage(nil), images...)
	return nil
}

func TestInteractiveCurationRunner_RunAuto(t *testing.T) {
	client := &stubImageClient{urls: map[string][]string{
		"ヘッダー": {"h1"},
		"挿絵":   {"b1"},
		"空振り":  {},
	}}
	applier := &captureApplier{}
	coord := coordinator.New(client, applier, lightbox.NewNavigator(nil), coordinator.Options{
		VariationCount: 1,
		BatchInterval:  time.Millisecond,
	})

	var out bytes.Buffer
	cr := NewInteractiveCurationRunner(coord, config.GenerateOptions{Auto: true}, strings.NewReader(""), &out)

	plans := []domain.PlacementPlan{
		{Type: domain.PlacementHeader, Description: "ヘッダー"},
		{Type: domain.PlacementBody, Description: "挿絵"},
		{Type: domain.PlacementBody, Description: "空振り"},
	}
	if err := cr.Run(context.Background(), plans); err != nil {
		t.Fatalf("Runでエラー: %v", err)
	}

	// 候補のあるスロットだけが先頭候補で適用され、候補なしはスキップされること
	if len(applier.applied) != 2 {
		t.Fatalf("期待値 2件, 実際は %d件: %+v", len(applier.applied), applier.applied)
	}
	if applier.applied[0].ImageURL != "h1" || applier.applied[1].ImageURL != "b1" {
		t.Errorf("適用されたURLが不正です: %+v", applier.applied)
	}
	if coord.State() != coordinator.StateClosed {
		t.Errorf("適用後にモーダルが閉じていません: %s", coord.State())
	}
}
