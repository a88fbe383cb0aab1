package coordinator

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/shouni/go-visual-kit/pkg/backend"
	"github.com/shouni/go-visual-kit/pkg/domain"
	"github.com/shouni/go-visual-kit/pkg/lightbox"
	"github.com/shouni/go-visual-kit/pkg/selection"
)

// ModalState は画像キュレーションモーダルの状態です。常にちょうど1つだけが有効です。
type ModalState string

const (
	// StateClosed はモーダルが閉じている状態です。
	StateClosed ModalState = "closed"
	// StateGenerating は最初のスロットのバッチ完了を待っている状態です。
	StateGenerating ModalState = "generating"
	// StateSelecting は結果が操作可能になった状態です。後続スロットの生成は背後で継続し得ます。
	StateSelecting ModalState = "selecting"
	// StateLightbox は等倍表示で閲覧中の状態です。
	StateLightbox ModalState = "lightbox"
	// StateEditing は参照画像編集のサブビューが開いている状態です。
	StateEditing ModalState = "editing"
	// StateRegenerating は再生成（スロット単位または1枚単位）が進行中の状態です。
	StateRegenerating ModalState = "regenerating"
)

var (
	// ErrInvalidState は現在の状態で許可されない操作を示します。
	ErrInvalidState = errors.New("operation not allowed in current modal state")
	// ErrUnknownPlacement は存在しない配置スロットIDを示します。
	ErrUnknownPlacement = errors.New("unknown placement id")
	// ErrUnknownVariation は存在しないバリエーションIDを示します。
	ErrUnknownVariation = errors.New("unknown variation id")
	// ErrEditNotOpen は編集サブビューが開いていないことを示します。
	ErrEditNotOpen = errors.New("no edit in progress")
	// ErrRegenerateNotOpen は再生成ポップオーバーが開いていないことを示します。
	ErrRegenerateNotOpen = errors.New("no regenerate popover open")
)

// ImageClient は画像生成バックエンドの契約です。
type ImageClient interface {
	StreamImageBatch(ctx context.Context, req backend.ImageBatchRequest, onEvent backend.OnEvent) error
	EditImage(ctx context.Context, req backend.EditRequest) (string, error)
	RegenerateImage(ctx context.Context, req backend.RegenerateRequest) (string, error)
}

// DocumentApplier は確定した画像をドキュメントモデルへ引き渡す外部コラボレーターです。
type DocumentApplier interface {
	ApplyImages(ctx context.Context, images []domain.AppliedImage) error
}

// Notice は1枚分の失敗などをUIに知らせる一過性の通知です。バッチは中断しません。
type Notice struct {
	PlacementID string
	Message     string
}

// editSlot は単一占有の編集サブビューです。参照画像は再送信せずにリトライできるよう保持します。
type editSlot struct {
	placementID  string
	variationID  string
	referenceURL string
}

// regenSlot は単一占有の再生成ポップオーバーです。
type regenSlot struct {
	placementID string
	variationID string
}

// Options は Coordinator の動作パラメータです。
type Options struct {
	// VariationCount はスロットごとに要求するバリエーション数です（既定 3）。
	VariationCount int
	// BatchInterval は後続スロットのバッチ発行間隔です（APIレート保護、既定 5s）。
	BatchInterval time.Duration
	// OnProgress は進捗スナップショットの差し替えごとに呼ばれます。
	OnProgress func(progress domain.GenerationProgress)
	// OnNotice は1枚分の生成失敗などの一過性通知で呼ばれます。
	OnNotice func(notice Notice)
}

const (
	defaultVariationCount = 3
	defaultBatchInterval  = 5 * time.Second
)

// Coordinator は複数スロットの画像生成と、その結果に対するユーザーのキュレーション
// 操作（選択・スキップ・編集・再生成・等倍閲覧）を1つの状態機械として駆動します。
//
// 並行性のモデル: 複数のストリームやリクエストが同時に飛び交っても、状態の変更は
// すべてこのミューテックスの下で直列化されます。バリエーションの反映は位置ではなく
// ID によるマージなので、ストリーム間の到着順序に依存しません。モーダルを閉じた後に
// 届いたイベントはエポック番号の照合で無視されます（ハードキャンセルは行いません）。
type Coordinator struct {
	client    ImageClient
	applier   DocumentApplier
	navigator *lightbox.Navigator
	store     *selection.Store
	limiter   *rate.Limiter
	opts      Options

	mu             sync.Mutex
	state          ModalState
	epoch          int
	placements     []domain.Placement
	progress       domain.GenerationProgress
	generatingMore bool
	style          string
	brandColors    []string
	editing        *editSlot
	regen          *regenSlot
	lightboxID     string
}

// New は新しい Coordinator を生成します。
func New(client ImageClient, applier DocumentApplier, navigator *lightbox.Navigator, opts Options) *Coordinator {
	if opts.VariationCount <= 0 {
		opts.VariationCount = defaultVariationCount
	}
	if opts.BatchInterval <= 0 {
		opts.BatchInterval = defaultBatchInterval
	}
	return &Coordinator{
		client:    client,
		applier:   applier,
		navigator: navigator,
		store:     selection.NewStore(),
		limiter:   rate.NewLimiter(rate.Every(opts.BatchInterval), 1),
		opts:      opts,
		state:     StateClosed,
	}
}

// State は現在のモーダル状態を返します。
func (c *Coordinator) State() ModalState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsGeneratingMore は後続スロットの生成が背後で継続中かどうかを返します。
func (c *Coordinator) IsGeneratingMore() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generatingMore
}

// Progress は進捗スナップショットのコピーを返します。
func (c *Coordinator) Progress() domain.GenerationProgress {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.progress
}

// Placements は配置リストの防御的コピーを返します。
func (c *Coordinator) Placements() []domain.Placement {
	c.mu.Lock()
	defer c.mu.Unlock()
	return copyPlacements(c.placements)
}

// Store は選択状態コンテナを返します。UI層と適用処理が読み取りに使います。
func (c *Coordinator) Store() *selection.Store {
	return c.store
}

// Navigator はライトボックスのナビゲーターを返します。
func (c *Coordinator) Navigator() *lightbox.Navigator {
	return c.navigator
}

// NeedsDiscardConfirmation は、閉じる前にユーザーへ破棄確認を出すべきかどうかを返します。
// 生成が進行中、または既に1枚でも画像が生成されている場合は真です。
func (c *Coordinator) NeedsDiscardConfirmation() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateGenerating || c.generatingMore {
		return true
	}
	for _, p := range c.placements {
		if len(p.Variations) > 0 {
			return true
		}
	}
	return false
}

// CloseModal はキャンセル経路の終端です。以降に届くストリームイベントはすべて無視されます。
// 破棄確認（必要な場合）は呼び出し側が NeedsDiscardConfirmation で判断して済ませている前提です。
func (c *Coordinator) CloseModal() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reset()
}

// reset は呼び出し側でロックを保持している前提の内部ヘルパーです。
func (c *Coordinator) reset() {
	c.epoch++
	c.state = StateClosed
	c.placements = nil
	c.progress = domain.GenerationProgress{}
	c.generatingMore = false
	c.editing = nil
	c.regen = nil
	c.lightboxID = ""
	c.store.Reset()
	if c.navigator != nil {
		c.navigator.Update(nil)
	}
}

// copyPlacements は配置リストとバリエーションを深くコピーします。
func copyPlacements(src []domain.Placement) []domain.Placement {
	copied := make([]domain.Placement, len(src))
	for i, p := range src {
		copied[i] = p
		copied[i].Variations = append([]domain.Variation(nil), p.Variations...)
	}
	return copied
}
