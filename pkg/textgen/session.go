package textgen

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/shouni/go-visual-kit/pkg/backend"
	"github.com/shouni/go-visual-kit/pkg/stream"
)

// ErrSessionActive は同一セッションでの多重 Start を拒否するエラーです。
var ErrSessionActive = errors.New("text generation already in flight for this session")

// ErrGenerationFailed はストリーム上のエラーフレームでバックエンドが生成の失敗を
// 通知してきたことを示すエラーです。
var ErrGenerationFailed = errors.New("text generation failed")

// TextStreamer はテキスト生成ストリームを提供するバックエンドの契約です。
type TextStreamer interface {
	StreamText(ctx context.Context, req backend.TextRequest, onEvent backend.OnEvent) error
}

// Callbacks はストリーム進行中に呼び出されるフック群です。nil のフックは無視されます。
type Callbacks struct {
	// OnChunk はテキスト増分が到着するたびに呼ばれます。
	OnChunk func(delta string)
	// OnComplete はストリーム終端で全文を受け取ります。
	OnComplete func(fullText string)
	// OnError はトランスポート障害またはストリーム上のエラーフレームで
	// セッション全体が失敗したときに呼ばれます。
	OnError func(err error)
	// OnToolStart はモデルがストリーム中に内蔵ツール（例: インライン画像生成）を
	// 起動したときに呼ばれます。
	OnToolStart func(ts stream.ToolStart)
	// OnToolResult はツール実行の成否と結果を受け取ります。
	OnToolResult func(tr stream.ToolResult)
}

// Session は1本のストリーミングテキスト生成リクエストを駆動します。
// 1つの Session オブジェクトにつき同時に1リクエストのみ実行できます。
// 画像バッチ生成と異なり部分完了の経路はなく、トランスポート障害も
// ストリーム上のエラーフレームもセッション全体の失敗として扱います。
type Session struct {
	client TextStreamer
	active atomic.Bool
}

// NewSession は新しい Session を生成します。
func NewSession(client TextStreamer) *Session {
	return &Session{client: client}
}

// Start はストリーミング生成を実行し、完了（または失敗）までブロックします。
// すでに実行中の場合は ErrSessionActive を返します。
func (s *Session) Start(ctx context.Context, req backend.TextRequest, cb Callbacks) error {
	if !s.active.CompareAndSwap(false, true) {
		return ErrSessionActive
	}
	defer s.active.Store(false)

	var acc strings.Builder

	err := s.client.StreamText(ctx, req, func(ev stream.Event) error {
		// エラーフレームはトランスポート障害と同じくセッション全体の失敗として扱う。
		// ここで中断すれば蓄積済みの部分テキストが OnComplete に渡ることはない。
		if ev.Error != "" {
			return fmt.Errorf("%w: %s", ErrGenerationFailed, ev.Error)
		}
		s.dispatch(ev, &acc, cb)
		return nil
	})
	if err != nil {
		if cb.OnError != nil {
			cb.OnError(err)
		}
		return err
	}

	if cb.OnComplete != nil {
		cb.OnComplete(acc.String())
	}
	return nil
}

// dispatch は1イベントを種別ごとのフックへ振り分けます。
func (s *Session) dispatch(ev stream.Event, acc *strings.Builder, cb Callbacks) {
	switch {
	case ev.ToolStart != nil:
		if cb.OnToolStart != nil {
			cb.OnToolStart(*ev.ToolStart)
		}
	case ev.ToolResult != nil:
		if cb.OnToolResult != nil {
			cb.OnToolResult(*ev.ToolResult)
		}
	case ev.IsTextDelta():
		acc.WriteString(ev.Text)
		if cb.OnChunk != nil {
			cb.OnChunk(ev.Text)
		}
	}
}
