package config

import (
	"time"

	"github.com/shouni/go-utils/envutil"
)

// デフォルト値の定義なのだ
const (
	DefaultHTTPTimeout    = 30 * time.Second
	DefaultEditTimeout    = 3 * time.Minute
	DefaultVariationCount = 3
	DefaultBatchInterval  = 5 * time.Second
	DefaultOutputDir      = "output"
	DefaultStyle          = "clean editorial illustration, soft lighting, high resolution"
)

// Config はアプリケーション全体の環境設定（バックエンドURLやAPIキー）を保持する構造体なのだ。
type Config struct {
	BackendURL string
	APIKey     string
	Style      string

	Options GenerateOptions
}

// LoadConfig は環境変数から設定を読み込み、構造体を返すのだ！
func LoadConfig() *Config {
	cfg := &Config{
		BackendURL: envutil.GetEnv("VISUALKIT_BACKEND_URL", ""),
		APIKey:     envutil.GetEnv("VISUALKIT_API_KEY", ""),
		Style:      envutil.GetEnv("VISUALKIT_STYLE", DefaultStyle),
	}
	return cfg
}

// GenerateOptions は CLI フラグから渡される実行時のパラメータなのだ。
type GenerateOptions struct {
	// ソース入力関連
	ContentURL  string // --content-url
	ContentFile string // --content-file
	Title       string // --title
	OutputDir   string // --output-dir

	// 画像生成関連
	Style          string   // --style
	BrandColors    []string // --brand-color（複数指定可）
	VariationCount int      // --variations

	// 実行制御
	Auto        bool          // --auto: 対話なしで各スロットの先頭候補を自動選択する
	HTMLPreview bool          // --html: HTMLプレビューも書き出す
	HTTPTimeout time.Duration // --http-timeout
}
