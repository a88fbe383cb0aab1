package runner

import (
	"context"
	"fmt"
	"io"

	"github.com/shouni/go-visual-kit/pkg/backend"
	"github.com/shouni/go-visual-kit/pkg/stream"
	"github.com/shouni/go-visual-kit/pkg/textgen"
)

// WriteRunner は、ストリーミングテキスト生成を実行するためのインターフェースなのだ。
type WriteRunner interface {
	// Run は生成を実行し、確定した全文を返すのだ。
	Run(ctx context.Context, prompt, contextText string) (string, error)
}

// StreamingWriteRunner は、テキスト増分をそのまま出力へ流しつつ全文を組み立てる標準実装なのだ。
// ストリーム中にモデルがインライン画像ツールを起動した場合は、その経過も表示するのだ。
type StreamingWriteRunner struct {
	session *textgen.Session
	out     io.Writer
}

// NewStreamingWriteRunner は、StreamingWriteRunnerの新しいインスタンスを生成して返すのだ。
func NewStreamingWriteRunner(session *textgen.Session, out io.Writer) *StreamingWriteRunner {
	return &StreamingWriteRunner{
		session: session,
		out:     out,
	}
}

// Run は、ストリーム完了までブロックして全文を返すのだ。
// トランスポート障害は部分結果を捨ててエラーとして返るのだ。
func (wr *StreamingWriteRunner) Run(ctx context.Context, prompt, contextText string) (string, error) {
	var full string

	err := wr.session.Start(ctx, backend.TextRequest{
		Prompt:  prompt,
		Context: contextText,
		Stream:  true,
	}, textgen.Callbacks{
		OnChunk: func(delta string) {
			fmt.Fprint(wr.out, delta)
		},
		OnToolStart: func(ts stream.ToolStart) {
			fmt.Fprintf(wr.out, "\n[ツール実行中: %s]\n", ts.Name)
		},
		OnToolResult: func(tr stream.ToolResult) {
			if tr.IsError {
				fmt.Fprintf(wr.out, "[ツール失敗: %s]\n", tr.Result)
				return
			}
			fmt.Fprintf(wr.out, "[ツール完了: %s]\n", tr.ToolName)
		},
		OnComplete: func(fullText string) {
			full = fullText
		},
	})
	if err != nil {
		return "", fmt.Errorf("テキスト生成に失敗したのだ: %w", err)
	}

	fmt.Fprintln(wr.out)
	return full, nil
}
