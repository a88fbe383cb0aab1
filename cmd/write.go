package cmd

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/shouni/go-visual-kit/internal/config"
	"github.com/shouni/go-visual-kit/internal/pipeline"

	"github.com/spf13/cobra"
)

// writeCmd は、ストリーミングテキスト生成を実行するのだ。
var writeCmd = &cobra.Command{
	Use:   "write [プロンプト]",
	Short: "AIに文章をストリーミング生成させるのだ。",
	Long: `プロンプトからテキストを生成し、増分をそのまま標準出力へ流すのだ。
--content-url や --content-file で参照テキストを渡すこともできるのだよ。
生成中にモデルがインライン画像ツールを使った場合は、その経過も表示されるのだ。`,
	Args: cobra.MinimumNArgs(1),
	RunE: writeCommand,
}

func writeCommand(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	prompt := strings.Join(args, " ")
	if strings.TrimSpace(prompt) == "" {
		return fmt.Errorf("プロンプトを指定してほしいのだ")
	}

	cfg := config.LoadConfig()
	cfg.Options = opts

	slog.Info("テキスト生成を開始するのだ！", "prompt_len", len(prompt))

	if err := pipeline.ExecuteWrite(ctx, cfg, prompt); err != nil {
		return fmt.Errorf("テキスト生成中にエラーが発生したのだ: %w", err)
	}
	return nil
}
