package textgen

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shouni/go-visual-kit/pkg/backend"
	"github.com/shouni/go-visual-kit/pkg/stream"
)

// scriptedStreamer は事前に用意したイベント列を払い出すテスト用ストリーマーです。
type scriptedStreamer struct {
	events  []stream.Event
	err     error
	started chan struct{} // 非nilの場合、ストリーム開始を通知する
	block   chan struct{} // 非nilの場合、閉じられるまでストリームを保留する
}

func (f *scriptedStreamer) StreamText(ctx context.Context, _ backend.TextRequest, onEvent backend.OnEvent) error {
	if f.started != nil {
		close(f.started)
		f.started = nil
	}
	if f.block != nil {
		<-f.block
	}
	if f.err != nil {
		return f.err
	}
	for _, ev := range f.events {
		if err := onEvent(ev); err != nil {
			return err
		}
	}
	return nil
}

func TestSession_Start(t *testing.T) {
	t.Run("テキスト増分が蓄積され完了時に全文が渡ること", func(t *testing.T) {
		s := NewSession(&scriptedStreamer{events: []stream.Event{
			{Text: "こんにちは"},
			{Text: "、世界"},
		}})

		var chunks []string
		var full string
		err := s.Start(context.Background(), backend.TextRequest{Prompt: "挨拶"}, Callbacks{
			OnChunk:    func(d string) { chunks = append(chunks, d) },
			OnComplete: func(t string) { full = t },
		})
		if err != nil {
			t.Fatalf("Startでエラー: %v", err)
		}

		if len(chunks) != 2 {
			t.Errorf("期待値 2チャンク, 実際は %d", len(chunks))
		}
		if full != "こんにちは、世界" {
			t.Errorf("全文が一致しません: '%s'", full)
		}
	})

	t.Run("ツールイベントが対応するフックに届くこと", func(t *testing.T) {
		s := NewSession(&scriptedStreamer{events: []stream.Event{
			{ToolStart: &stream.ToolStart{Name: "generate_image", ID: "tool-1"}},
			{Text: "画像を生成しました"},
			{ToolResult: &stream.ToolResult{ToolName: "generate_image", ToolUseID: "tool-1", Result: "http://example.com/inline.png"}},
		}})

		var started stream.ToolStart
		var result stream.ToolResult
		err := s.Start(context.Background(), backend.TextRequest{}, Callbacks{
			OnToolStart:  func(ts stream.ToolStart) { started = ts },
			OnToolResult: func(tr stream.ToolResult) { result = tr },
		})
		if err != nil {
			t.Fatalf("Startでエラー: %v", err)
		}

		if started.Name != "generate_image" {
			t.Errorf("OnToolStartが呼ばれていません: %+v", started)
		}
		if result.ToolUseID != "tool-1" {
			t.Errorf("OnToolResultが呼ばれていません: %+v", result)
		}
	})

	t.Run("トランスポート障害でセッション全体が失敗すること", func(t *testing.T) {
		transportErr := errors.New("connection refused")
		s := NewSession(&scriptedStreamer{err: transportErr})

		var gotErr error
		completed := false
		err := s.Start(context.Background(), backend.TextRequest{}, Callbacks{
			OnError:    func(e error) { gotErr = e },
			OnComplete: func(string) { completed = true },
		})

		if !errors.Is(err, transportErr) || !errors.Is(gotErr, transportErr) {
			t.Errorf("エラーが伝播していません: err=%v, callback=%v", err, gotErr)
		}
		if completed {
			t.Error("失敗時にOnCompleteが呼ばれました（部分完了経路は存在しないはず）")
		}
	})

	t.Run("ストリーム上のエラーフレームでセッション全体が失敗すること", func(t *testing.T) {
		s := NewSession(&scriptedStreamer{events: []stream.Event{
			{Text: "こんに"},
			{Error: "rate limited"},
			{Text: "ちは"},
		}})

		var gotErr error
		completed := false
		err := s.Start(context.Background(), backend.TextRequest{}, Callbacks{
			OnError:    func(e error) { gotErr = e },
			OnComplete: func(string) { completed = true },
		})

		if !errors.Is(err, ErrGenerationFailed) || !errors.Is(gotErr, ErrGenerationFailed) {
			t.Errorf("エラーフレームが失敗として伝播していません: err=%v, callback=%v", err, gotErr)
		}
		if completed {
			t.Error("エラーフレーム後にOnCompleteが呼ばれました（部分完了経路は存在しないはず）")
		}
	})

	t.Run("同一セッションでの多重Startは拒否されること", func(t *testing.T) {
		block := make(chan struct{})
		started := make(chan struct{})
		s := NewSession(&scriptedStreamer{block: block, started: started})

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Start(context.Background(), backend.TextRequest{}, Callbacks{})
		}()

		// 1本目のストリーム開始を待ってから2本目を試みる
		<-started
		second := s.Start(context.Background(), backend.TextRequest{}, Callbacks{})
		close(block)
		wg.Wait()

		if !errors.Is(second, ErrSessionActive) {
			t.Errorf("期待値 ErrSessionActive, 実際は %v", second)
		}
	})
}
