package runner

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/shouni/go-visual-kit/pkg/backend"
	"github.com/shouni/go-visual-kit/pkg/stream"
	"github.com/shouni/go-visual-kit/pkg/textgen"
)

// fakeStreamer は台本どおりのイベント列を同期的に流すテスト用バックエンドなのだ。
type fakeStreamer struct {
	events []stream.Event
	err    error
}

func (f *fakeStreamer) StreamText(_ context.Context, _ backend.TextRequest, onEvent backend.OnEvent) error {
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

func TestStreamingWriteRunner_Run(t *testing.T) {
	t.Run("増分が出力へ流れて全文が返ること", func(t *testing.T) {
		streamer := &fakeStreamer{events: []stream.Event{
			{Text: "こんにちは"},
			{Text: "、世界"},
			{ToolStart: &stream.ToolStart{Name: "generate_image", ID: "t1"}},
			{ToolResult: &stream.ToolResult{ToolName: "generate_image", ToolUseID: "t1", Result: "ok"}},
			{Text: "！"},
		}}
		var out bytes.Buffer
		wr := NewStreamingWriteRunner(textgen.NewSession(streamer), &out)

		full, err := wr.Run(context.Background(), "挨拶を書いて", "")
		if err != nil {
			t.Fatalf("Runでエラー: %v", err)
		}
		if full != "こんにちは、世界！" {
			t.Errorf("全文が一致しません: %q", full)
		}
		if !strings.Contains(out.String(), "こんにちは、世界") {
			t.Errorf("増分が出力されていません: %q", out.String())
		}
		if !strings.Contains(out.String(), "generate_image") {
			t.Errorf("ツールの経過が出力されていません: %q", out.String())
		}
	})

	t.Run("トランスポート障害では部分結果を返さないこと", func(t *testing.T) {
		streamer := &fakeStreamer{err: errors.New("connection reset")}
		var out bytes.Buffer
		wr := NewStreamingWriteRunner(textgen.NewSession(streamer), &out)

		full, err := wr.Run(context.Background(), "挨拶を書いて", "")
		if err == nil {
			t.Fatal("障害がエラーになっていません")
		}
		if full != "" {
			t.Errorf("部分結果が返っています: %q", full)
		}
	})
}
