package config

import (
	"time"
)

// デフォルト値の定義
const (
	DefaultRequestTimeout = 30 * time.Second
	// DefaultEditTimeout は編集・再生成の単発エンドポイント用です。モデル推論を
	// 挟むため分単位まで待ちます。
	DefaultEditTimeout    = 3 * time.Minute
	DefaultVariationCount = 3
	DefaultBatchInterval  = 5 * time.Second
	DefaultStyle          = "clean editorial illustration, soft lighting, high resolution"
)

// Config は Go Visual Kit の各コンポーネントを動作させるための基本設定です。
type Config struct {
	// --- Backend Settings ---
	BackendURL string
	APIKey     string

	// --- Generation Settings ---
	Style          string
	BrandColors    []string
	VariationCount int
	BatchInterval  time.Duration

	// --- Output Settings ---
	OutputDir   string
	HTMLPreview bool

	// --- Timeout ---
	RequestTimeout time.Duration
	EditTimeout    time.Duration
}

// DefaultConfig は推奨されるデフォルト設定を返すヘルパー関数です。
func DefaultConfig() Config {
	return Config{
		Style:          DefaultStyle,
		VariationCount: DefaultVariationCount,
		BatchInterval:  DefaultBatchInterval,
		RequestTimeout: DefaultRequestTimeout,
		EditTimeout:    DefaultEditTimeout,
	}
}
