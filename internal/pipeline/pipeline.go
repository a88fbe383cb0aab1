package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/shouni/go-visual-kit/internal/config"
	"github.com/shouni/go-visual-kit/internal/runner"
	"github.com/shouni/go-visual-kit/pkg/coordinator"
	"github.com/shouni/go-visual-kit/pkg/domain"
	"github.com/shouni/go-visual-kit/pkg/publisher"
	"github.com/shouni/go-visual-kit/pkg/workflow"

	kitconfig "github.com/shouni/go-visual-kit/pkg/config"
)

// ExecutePlan は、本文の取り込みと配置計画の対話（Phase 1）だけを実行し、
// 承認された配置案をJSONで標準出力に書き出すのだ。
func ExecutePlan(ctx context.Context, cfg *config.Config) error {
	mgr, err := setupManager(ctx, cfg)
	if err != nil {
		return err
	}

	content, err := loadContent(ctx, mgr, cfg)
	if err != nil {
		return err
	}

	planRunner := runner.NewInteractivePlanRunner(mgr.BuildPlanner(), os.Stdin, os.Stdout)
	plans, err := planRunner.Run(ctx, content)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(plans, "", "  ")
	if err != nil {
		return fmt.Errorf("配置案のエンコードに失敗したのだ: %w", err)
	}
	fmt.Println(string(out))

	slog.Info("配置計画が完了したのだ！", "placements", len(plans))
	return nil
}

// ExecuteGenerate は、配置計画から画像生成・キュレーション・ドキュメント適用までの
// 全工程（Phase 1〜3）を一気に実行するのだ。
func ExecuteGenerate(ctx context.Context, cfg *config.Config, plans []domain.PlacementPlan) error {
	mgr, err := setupManager(ctx, cfg)
	if err != nil {
		return err
	}

	content, err := loadContent(ctx, mgr, cfg)
	if err != nil {
		return err
	}

	// --- Phase 1: Plan Phase (配置計画) ---
	// 配置案が外部から与えられている場合は対話をスキップできるのだ
	if len(plans) == 0 {
		planRunner := runner.NewInteractivePlanRunner(mgr.BuildPlanner(), os.Stdin, os.Stdout)
		plans, err = planRunner.Run(ctx, content)
		if err != nil {
			return err
		}
	}

	// --- Phase 2 & 3: Generate + Curate Phase (生成と選別、適用) ---
	doc := publisher.Document{
		Title: cfg.Options.Title,
		Body:  content,
	}
	coord, err := mgr.BuildCoordinator(doc, coordinator.Options{
		VariationCount: cfg.Options.VariationCount,
		OnNotice: func(n coordinator.Notice) {
			fmt.Fprintf(os.Stderr, "通知: %s\n", n.Message)
		},
	})
	if err != nil {
		return fmt.Errorf("Coordinatorの構築に失敗したのだ: %w", err)
	}

	curationRunner := runner.NewInteractiveCurationRunner(coord, cfg.Options, os.Stdin, os.Stdout)
	if err := curationRunner.Run(ctx, plans); err != nil {
		return err
	}

	slog.Info("画像生成とキュレーションが完了したのだ！")
	return nil
}

// ExecuteWrite は、プロンプトからのストリーミングテキスト生成を実行して全文を返すのだ。
func ExecuteWrite(ctx context.Context, cfg *config.Config, prompt string) error {
	mgr, err := setupManager(ctx, cfg)
	if err != nil {
		return err
	}

	// 参照テキストの指定は任意なのだ
	var contextText string
	if cfg.Options.ContentURL != "" || cfg.Options.ContentFile != "" {
		contextText, err = loadContent(ctx, mgr, cfg)
		if err != nil {
			return err
		}
	}

	writeRunner := runner.NewStreamingWriteRunner(mgr.BuildTextSession(), os.Stdout)
	if _, err := writeRunner.Run(ctx, prompt, contextText); err != nil {
		return err
	}

	slog.Info("テキスト生成が完了したのだ！")
	return nil
}

// setupManager は、提供された設定からワークフローマネージャーを初期化して返すのだ。
// internal/config の値を pkg/config 用の構造体に詰め替えるのだ。
func setupManager(ctx context.Context, cfg *config.Config) (*workflow.Manager, error) {
	kitCfg := kitconfig.DefaultConfig()
	kitCfg.BackendURL = cfg.BackendURL
	kitCfg.APIKey = cfg.APIKey
	kitCfg.Style = cfg.Style
	kitCfg.OutputDir = cfg.Options.OutputDir

	if cfg.Options.Style != "" {
		kitCfg.Style = cfg.Options.Style
	}
	if cfg.Options.VariationCount > 0 {
		kitCfg.VariationCount = cfg.Options.VariationCount
	}
	if cfg.Options.HTTPTimeout > 0 {
		kitCfg.RequestTimeout = cfg.Options.HTTPTimeout
	}
	kitCfg.BrandColors = cfg.Options.BrandColors
	kitCfg.HTMLPreview = cfg.Options.HTMLPreview

	mgr, err := workflow.New(ctx, kitCfg)
	if err != nil {
		return nil, fmt.Errorf("ワークフローの初期化に失敗したのだ: %w", err)
	}
	return mgr, nil
}

// loadContent は、URLまたはパスの設定に基づいて適切な方法で本文を取得するのだ。
func loadContent(ctx context.Context, mgr *workflow.Manager, cfg *config.Config) (string, error) {
	// URLが指定されている場合は、本文抽出を実行するのだ
	if cfg.Options.ContentURL != "" {
		return mgr.FetchContent(ctx, cfg.Options.ContentURL)
	}
	if cfg.Options.ContentFile != "" {
		// ファイルパスが指定されている場合は、リーダーを使って開くのだ（GCS等も対応！）
		return mgr.ReadContent(ctx, cfg.Options.ContentFile)
	}
	return "", fmt.Errorf("--content-url または --content-file のどちらかが必要なのだ")
}
