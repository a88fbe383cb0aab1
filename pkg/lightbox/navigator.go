package lightbox

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/shouni/go-visual-kit/pkg/domain"
)

// Image は全スロットのバリエーションを1列に平坦化した、等倍表示用の読み取り専用ビューです。
// 元の Placement/Variation から再計算されるだけで、単独では変更されません。
type Image struct {
	ID             string
	URL            string
	PlacementID    string
	PlacementType  domain.PlacementType
	VariationIndex int
	VariationTotal int
}

// Fetcher は画像バイト列の取得手段です。プリフェッチで使用します。
type Fetcher interface {
	FetchImage(ctx context.Context, url string) ([]byte, error)
}

const (
	prefetchTTL      = 10 * time.Minute
	prefetchCleanup  = 30 * time.Minute
	prefetchDeadline = 30 * time.Second
)

// Navigator はライトボックスの順送りナビゲーションと隣接画像のプリフェッチを担います。
// 並び順は安定で、スロットは元のリスト順、スロット内は到着順です。
// Next / Previous は末尾と先頭で折り返します。
type Navigator struct {
	mu      sync.RWMutex
	images  []Image
	fetcher Fetcher
	cache   *cache.Cache
	group   singleflight.Group
}

// NewNavigator は新しい Navigator を生成します。fetcher が nil の場合、プリフェッチは行いません。
func NewNavigator(fetcher Fetcher) *Navigator {
	return &Navigator{
		fetcher: fetcher,
		cache:   cache.New(prefetchTTL, prefetchCleanup),
	}
}

// Flatten は配置リストをライトボックス用の1列に平坦化します。
func Flatten(placements []domain.Placement) []Image {
	var images []Image
	for _, p := range placements {
		total := len(p.Variations)
		for i, v := range p.Variations {
			images = append(images, Image{
				ID:             v.ID,
				URL:            v.URL,
				PlacementID:    p.ID,
				PlacementType:  p.Type,
				VariationIndex: i,
				VariationTotal: total,
			})
		}
	}
	return images
}

// Update は下層の配置リストの変化を反映してビューを再計算します。
func (n *Navigator) Update(placements []domain.Placement) {
	flattened := Flatten(placements)
	n.mu.Lock()
	n.images = flattened
	n.mu.Unlock()
}

// Len は平坦化された画像の総数を返します。
func (n *Navigator) Len() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.images)
}

// Find はバリエーションIDから現在のビュー上の画像を返します。
func (n *Navigator) Find(variationID string) (Image, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	idx := n.indexOf(variationID)
	if idx < 0 {
		return Image{}, false
	}
	return n.images[idx], true
}

// Next は現在位置の次の画像を返します。末尾の次は先頭へ折り返します。
func (n *Navigator) Next(currentID string) (Image, bool) {
	return n.step(currentID, +1)
}

// Previous は現在位置の前の画像を返します。先頭の前は末尾へ折り返します。
func (n *Navigator) Previous(currentID string) (Image, bool) {
	return n.step(currentID, -1)
}

func (n *Navigator) step(currentID string, delta int) (Image, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if len(n.images) == 0 {
		return Image{}, false
	}
	idx := n.indexOf(currentID)
	if idx < 0 {
		return Image{}, false
	}
	next := (idx + delta + len(n.images)) % len(n.images)
	return n.images[next], true
}

// indexOf は呼び出し側でロックを保持している前提の内部ヘルパーです。
func (n *Navigator) indexOf(variationID string) int {
	for i := range n.images {
		if n.images[i].ID == variationID {
			return i
		}
	}
	return -1
}

// PrefetchAdjacent は現在画像の前後2枚（折り返しを含む）を先読みします。
// 連打ナビゲーションでもロードのちらつきが出ないよう、呼び出しは非同期で完了を待ちません。
// 同一URLへの同時プリフェッチは singleflight で1回にまとめます。
func (n *Navigator) PrefetchAdjacent(ctx context.Context, currentID string) {
	if n.fetcher == nil {
		return
	}

	neighbors := make([]Image, 0, 2)
	if next, ok := n.Next(currentID); ok && next.ID != currentID {
		neighbors = append(neighbors, next)
	}
	if prev, ok := n.Previous(currentID); ok && prev.ID != currentID {
		neighbors = append(neighbors, prev)
	}

	for _, img := range neighbors {
		if _, cached := n.cache.Get(img.URL); cached {
			continue
		}
		go n.prefetch(ctx, img.URL)
	}
}

// Cached はプリフェッチ済みの画像バイト列を返します。
func (n *Navigator) Cached(url string) ([]byte, bool) {
	if v, ok := n.cache.Get(url); ok {
		data, isBytes := v.([]byte)
		return data, isBytes
	}
	return nil, false
}

func (n *Navigator) prefetch(ctx context.Context, url string) {
	_, err, _ := n.group.Do(url, func() (interface{}, error) {
		// singleflight 待機中に別のゴルーチンが取得済みの可能性があるため再確認
		if _, ok := n.cache.Get(url); ok {
			return nil, nil
		}

		fetchCtx, cancel := context.WithTimeout(ctx, prefetchDeadline)
		defer cancel()

		data, err := n.fetcher.FetchImage(fetchCtx, url)
		if err != nil {
			return nil, err
		}
		n.cache.Set(url, data, cache.DefaultExpiration)
		return nil, nil
	})
	if err != nil {
		// プリフェッチは最適化であり、失敗しても閲覧自体は継続できます。
		slog.Warn("画像のプリフェッチに失敗しました", "url", url, "error", err)
	}
}
