package cmd

import (
	"fmt"
	"os"

	"github.com/shouni/go-visual-kit/internal/config"

	clibase "github.com/shouni/go-cli-base"
	"github.com/spf13/cobra"
)

// opts は addAppFlags でコマンドラインフラグと紐付けられる実行時パラメータなのだ。
var opts config.GenerateOptions

// addAppFlags は、アプリケーション全般に適用されるグローバルフラグを定義するのだ。
func addAppFlags(rootCmd *cobra.Command) {
	// --- ソース入力関連 ---
	rootCmd.PersistentFlags().StringVarP(&opts.ContentURL, "content-url", "u", "", "Webページから本文を取得するためのURLなのだ。")
	rootCmd.PersistentFlags().StringVarP(&opts.ContentFile, "content-file", "f", "", "本文ファイルのパス（ローカル or gs://...）なのだ。")
	rootCmd.PersistentFlags().StringVarP(&opts.Title, "title", "t", "", "ドキュメントのタイトルなのだ。")

	// --- 生成結果の出力設定 ---
	rootCmd.PersistentFlags().StringVarP(&opts.OutputDir, "output-dir", "o", config.DefaultOutputDir, "成果物の保存ディレクトリ（ローカル or gs://...）なのだ。")
	rootCmd.PersistentFlags().BoolVar(&opts.HTMLPreview, "html", false, "MarkdownにくわえてHTMLプレビューも書き出すのだ。")

	// --- 画像生成の挙動設定 ---
	rootCmd.PersistentFlags().StringVar(&opts.Style, "style", "", "画像の画風指定なのだ（未指定なら VISUALKIT_STYLE か既定値）。")
	rootCmd.PersistentFlags().StringArrayVar(&opts.BrandColors, "brand-color", nil, "ブランドカラー（#RRGGBB、複数指定可）なのだ。")
	rootCmd.PersistentFlags().IntVarP(&opts.VariationCount, "variations", "n", config.DefaultVariationCount, "スロットごとに生成する候補の枚数なのだ。")

	// --- 実行制御 ---
	rootCmd.PersistentFlags().BoolVar(&opts.Auto, "auto", false, "対話なしで各スロットの先頭候補を自動選択するのだ。")
	rootCmd.PersistentFlags().DurationVar(&opts.HTTPTimeout, "http-timeout", config.DefaultHTTPTimeout, "Webリクエストのタイムアウトなのだ。")
}

// preRunAppE は、コマンド実行前に環境変数などの必須チェックを行うのだ。
func preRunAppE(cmd *cobra.Command, args []string) error {
	// 生成APIはすべて自前バックエンド経由なので、接続先の存在チェックは欠かせないのだ！
	if os.Getenv("VISUALKIT_BACKEND_URL") == "" {
		return fmt.Errorf("エラー: 環境変数 VISUALKIT_BACKEND_URL が設定されていません。バックエンドの利用には必須なのだ")
	}

	return nil
}

// Execute は、アプリケーションのメインエントリポイントなのだ。
// main.go から呼び出されて、cobra のコマンドライン解析を開始するのだよ。
func Execute() {
	clibase.Execute(
		"go-visual-kit",
		addAppFlags,
		preRunAppE,
		planCmd,
		generateCmd,
		writeCmd,
	)
}
