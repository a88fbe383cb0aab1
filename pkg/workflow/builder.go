package workflow

import (
	"fmt"

	"github.com/shouni/go-http-kit/pkg/httpkit"
	"github.com/shouni/go-remote-io/pkg/remoteio"
	mdbuilder "github.com/shouni/go-text-format/pkg/builder"
	"github.com/shouni/go-web-exact/v2/pkg/extract"

	"github.com/shouni/go-visual-kit/pkg/backend"
	"github.com/shouni/go-visual-kit/pkg/config"
	"github.com/shouni/go-visual-kit/pkg/coordinator"
	"github.com/shouni/go-visual-kit/pkg/lightbox"
	"github.com/shouni/go-visual-kit/pkg/planner"
	"github.com/shouni/go-visual-kit/pkg/publisher"
	"github.com/shouni/go-visual-kit/pkg/textgen"
)

// Builder はワークフローの各工程を担うコンポーネント群を構築・管理するのだ。
type Builder struct {
	cfg        config.Config
	httpClient httpkit.ClientInterface
	reader     remoteio.InputReader
	writer     remoteio.OutputWriter
	backend    *backend.Client
}

// NewBuilder は Config と共有クライアント群を基に新しい Builder を作成するのだ。
func NewBuilder(cfg config.Config, httpClient httpkit.ClientInterface, reader remoteio.InputReader, writer remoteio.OutputWriter) (*Builder, error) {
	if cfg.BackendURL == "" {
		return nil, fmt.Errorf("BackendURL は必須です")
	}
	if httpClient == nil {
		return nil, fmt.Errorf("httpClient は必須です")
	}
	if reader == nil {
		return nil, fmt.Errorf("reader は必須です")
	}
	if writer == nil {
		return nil, fmt.Errorf("writer は必須です")
	}

	backendClient := backend.New(cfg.BackendURL, cfg.APIKey, cfg.RequestTimeout, cfg.EditTimeout)

	return &Builder{
		cfg:        cfg,
		httpClient: httpClient,
		reader:     reader,
		writer:     writer,
		backend:    backendClient,
	}, nil
}

// Backend はバックエンドクライアントを返すのだ。
func (b *Builder) Backend() *backend.Client {
	return b.backend
}

// BuildPlanner は配置計画の対話を担当する Planner を作成するのだ。
func (b *Builder) BuildPlanner() *planner.Planner {
	return planner.New(b.backend)
}

// BuildTextSession はストリーミングテキスト生成を担当する Session を作成するのだ。
func (b *Builder) BuildTextSession() *textgen.Session {
	return textgen.NewSession(b.backend)
}

// BuildExtractor はURLからの本文抽出を担当するエクストラクタを作成するのだ。
func (b *Builder) BuildExtractor() (*extract.Extractor, error) {
	extractor, err := extract.NewExtractor(b.httpClient)
	if err != nil {
		return nil, fmt.Errorf("エクストラクタの初期化に失敗しました: %w", err)
	}
	return extractor, nil
}

// BuildCoordinator は画像生成セッション全体を駆動する Coordinator を作成するのだ。
// 確定画像の引き渡し先として DocumentPublisher を組み込むのだ。
func (b *Builder) BuildCoordinator(doc publisher.Document, opts coordinator.Options) (*coordinator.Coordinator, error) {
	pub, err := b.BuildPublisher(doc, b.cfg.HTMLPreview)
	if err != nil {
		return nil, err
	}

	if opts.VariationCount <= 0 {
		opts.VariationCount = b.cfg.VariationCount
	}
	if opts.BatchInterval <= 0 {
		opts.BatchInterval = b.cfg.BatchInterval
	}

	navigator := lightbox.NewNavigator(b.backend)
	return coordinator.New(b.backend, pub, navigator, opts), nil
}

// BuildPublisher は成果物のパブリッシュを担当する DocumentPublisher を作成するのだ。
func (b *Builder) BuildPublisher(doc publisher.Document, htmlPreview bool) (*publisher.DocumentPublisher, error) {
	opts := publisher.Options{OutputDir: b.cfg.OutputDir}

	if !htmlPreview {
		return publisher.NewDocumentPublisher(b.backend, b.writer, nil, doc, opts), nil
	}

	htmlCfg := mdbuilder.BuilderConfig{
		EnableHardWraps: true,
	}
	md2htmlBuilder, err := mdbuilder.NewBuilder(htmlCfg)
	if err != nil {
		return nil, fmt.Errorf("md2htmlBuilderの初期化に失敗しました: %w", err)
	}
	md2htmlRunner, err := md2htmlBuilder.BuildRunner()
	if err != nil {
		return nil, fmt.Errorf("md2htmlrunnerの初期化に失敗しました: %w", err)
	}

	return publisher.NewDocumentPublisher(b.backend, b.writer, md2htmlRunner, doc, opts), nil
}
