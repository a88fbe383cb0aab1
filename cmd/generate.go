package cmd

import (
	"fmt"
	"log/slog"

	"github.com/shouni/go-visual-kit/examples"
	"github.com/shouni/go-visual-kit/internal/config"
	"github.com/shouni/go-visual-kit/internal/pipeline"
	"github.com/shouni/go-visual-kit/pkg/domain"

	"github.com/shouni/go-remote-io/pkg/gcsfactory"
	"github.com/spf13/cobra"
)

var (
	planFile   string
	samplePlan bool
)

// generateCmd は、配置計画から画像生成・キュレーション・適用までを一気に実行するのだ。
var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "AIに画像を生成させて、選別してドキュメントに適用するのだ。",
	Long: `本文を解析し、配置計画の対話、スロットごとの候補画像の生成、対話による選別
（選択・スキップ・編集・再生成・等倍表示）、そしてドキュメントへの適用まで実行するのだ。
--plan-file で承認済みの配置案を渡すと、計画の対話をスキップできるのだよ。`,
	RunE: generateCommand,
}

func init() {
	generateCmd.Flags().StringVarP(&planFile, "plan-file", "p", "", "承認済み配置案のJSONパス（ローカル or gs://...）なのだ。")
	generateCmd.Flags().BoolVar(&samplePlan, "sample", false, "同梱のサンプル配置案で動作を試すのだ。")
}

func generateCommand(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	// 標準入力は計画や選別の対話に使うので、本文はフラグ指定のみ受け付けるのだ
	if opts.ContentURL == "" && opts.ContentFile == "" {
		return fmt.Errorf("ソース（--content-url または --content-file）を指定してほしいのだ")
	}

	cfg := config.LoadConfig()
	cfg.Options = opts

	// 配置案が外部から与えられている場合は先に読み込むのだ
	plans, err := loadPlans(cmd)
	if err != nil {
		return err
	}

	slog.Info("画像生成パイプラインを起動するのだ！",
		"auto", opts.Auto,
		"variations", opts.VariationCount,
		"output", opts.OutputDir)

	if err := pipeline.ExecuteGenerate(ctx, cfg, plans); err != nil {
		return fmt.Errorf("パイプライン実行中にエラーが発生したのだ: %w", err)
	}

	slog.Info("すべての生成工程が完了したのだ！")
	return nil
}

// loadPlans は --sample または --plan-file の指定から配置案を読み込むのだ。
// どちらも指定されていない場合は nil を返し、対話での計画に委ねるのだ。
func loadPlans(cmd *cobra.Command) ([]domain.PlacementPlan, error) {
	if samplePlan {
		return examples.SamplePlans()
	}
	if planFile == "" {
		return nil, nil
	}

	ctx := cmd.Context()
	rioFactory, err := gcsfactory.NewGCSClientFactory(ctx)
	if err != nil {
		return nil, fmt.Errorf("GCSクライアントファクトリの初期化に失敗したのだ: %w", err)
	}
	plans, err := examples.LoadPlacementPlans(ctx, rioFactory, planFile)
	if err != nil {
		return nil, fmt.Errorf("配置案 '%s' の読み込みに失敗したのだ: %w", planFile, err)
	}
	return plans, nil
}
