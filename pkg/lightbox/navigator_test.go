package lightbox

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shouni/go-visual-kit/pkg/domain"
)

func testPlacements() []domain.Placement {
	return []domain.Placement{
		{
			ID:   "p1",
			Type: domain.PlacementHeader,
			Variations: []domain.Variation{
				{ID: "v1", URL: "http://example.com/1.png"},
				{ID: "v2", URL: "http://example.com/2.png"},
			},
		},
		{
			ID:   "p2",
			Type: domain.PlacementBody,
			Variations: []domain.Variation{
				{ID: "v3", URL: "http://example.com/3.png"},
			},
		},
	}
}

func TestFlatten(t *testing.T) {
	images := Flatten(testPlacements())

	if len(images) != 3 {
		t.Fatalf("期待値 3枚, 実際は %d枚", len(images))
	}

	// スロットは元の順、スロット内は到着順であること
	wantOrder := []string{"v1", "v2", "v3"}
	for i, want := range wantOrder {
		if images[i].ID != want {
			t.Errorf("位置 %d: 期待値 '%s', 実際の値 '%s'", i, want, images[i].ID)
		}
	}

	if images[0].VariationTotal != 2 || images[2].VariationTotal != 1 {
		t.Errorf("VariationTotalが不正です: %+v", images)
	}
	if images[2].PlacementType != domain.PlacementBody {
		t.Errorf("PlacementTypeが引き継がれていません: %+v", images[2])
	}
}

func TestNavigator_WrapAround(t *testing.T) {
	n := NewNavigator(nil)
	n.Update(testPlacements())

	t.Run("N回のNextで開始位置に戻ること", func(t *testing.T) {
		current := "v2"
		for i := 0; i < n.Len(); i++ {
			img, ok := n.Next(current)
			if !ok {
				t.Fatalf("%d回目のNextに失敗しました", i+1)
			}
			current = img.ID
		}
		if current != "v2" {
			t.Errorf("折り返し1周で開始位置に戻りません: %s", current)
		}
	})

	t.Run("先頭からのPreviousは末尾に折り返すこと", func(t *testing.T) {
		img, ok := n.Previous("v1")
		if !ok || img.ID != "v3" {
			t.Errorf("期待値 'v3', 実際の値 '%+v'", img)
		}
	})

	t.Run("末尾からのNextは先頭に折り返すこと", func(t *testing.T) {
		img, ok := n.Next("v3")
		if !ok || img.ID != "v1" {
			t.Errorf("期待値 'v1', 実際の値 '%+v'", img)
		}
	})

	t.Run("存在しないIDからの移動は失敗すること", func(t *testing.T) {
		if _, ok := n.Next("missing"); ok {
			t.Error("存在しないIDでNextが成功しました")
		}
	})
}

// recordingFetcher は取得されたURLを記録するテスト用フェッチャーです。
type recordingFetcher struct {
	mu   sync.Mutex
	urls []string
}

func (f *recordingFetcher) FetchImage(_ context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.urls = append(f.urls, url)
	return []byte("image-bytes"), nil
}

func (f *recordingFetcher) fetched() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.urls...)
}

func TestNavigator_PrefetchAdjacent(t *testing.T) {
	fetcher := &recordingFetcher{}
	n := NewNavigator(fetcher)
	n.Update(testPlacements())

	n.PrefetchAdjacent(context.Background(), "v2")

	// プリフェッチは非同期なので完了を待つ
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(fetcher.fetched()) >= 2 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	got := map[string]bool{}
	for _, u := range fetcher.fetched() {
		got[u] = true
	}
	// v2 の隣は v3（次）と v1（前）
	if !got["http://example.com/3.png"] || !got["http://example.com/1.png"] {
		t.Errorf("隣接画像がプリフェッチされていません: %v", got)
	}

	t.Run("プリフェッチ済みはキャッシュから取得できること", func(t *testing.T) {
		if data, ok := n.Cached("http://example.com/3.png"); !ok || string(data) != "image-bytes" {
			t.Errorf("キャッシュが効いていません: ok=%v", ok)
		}
	})

	t.Run("キャッシュ済みURLは再取得されないこと", func(t *testing.T) {
		before := len(fetcher.fetched())
		n.PrefetchAdjacent(context.Background(), "v2")
		time.Sleep(50 * time.Millisecond)
		if len(fetcher.fetched()) != before {
			t.Errorf("キャッシュ済みにもかかわらず再取得されました: %d -> %d", before, len(fetcher.fetched()))
		}
	})
}
