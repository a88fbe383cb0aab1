package cmd

import (
	"fmt"
	"log/slog"

	"github.com/shouni/go-visual-kit/internal/config"
	"github.com/shouni/go-visual-kit/internal/pipeline"

	"github.com/spf13/cobra"
)

// planCmd は、画像配置計画の対話（JSON出力）のみを実行するのだ。
var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "画像の配置計画だけを対話で練って保存するのだ。",
	Long: `本文を解析させて画像配置の提案を受け取り、納得がいくまで対話で修正するのだ。
承認した配置案はJSON形式で出力されるのだ。画像生成は行わないのだよ。`,
	RunE: planCommand,
}

func planCommand(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	// 標準入力は配置計画の対話に使うので、本文はフラグ指定のみ受け付けるのだ
	if opts.ContentURL == "" && opts.ContentFile == "" {
		return fmt.Errorf("ソース（--content-url または --content-file）を指定してほしいのだ")
	}

	cfg := config.LoadConfig()
	cfg.Options = opts

	slog.Info("配置計画の対話を開始するのだ！", "url", opts.ContentURL, "file", opts.ContentFile)

	if err := pipeline.ExecutePlan(ctx, cfg); err != nil {
		return fmt.Errorf("配置計画の実行中にエラーが発生したのだ: %w", err)
	}
	return nil
}
