package workflow

import (
	"context"
	"fmt"
	"io"

	"github.com/shouni/go-http-kit/pkg/httpkit"
	"github.com/shouni/go-remote-io/pkg/gcsfactory"
	"github.com/shouni/go-remote-io/pkg/remoteio"
	"github.com/shouni/go-web-exact/v2/pkg/extract"

	"github.com/shouni/go-visual-kit/pkg/config"
	"github.com/shouni/go-visual-kit/pkg/coordinator"
	"github.com/shouni/go-visual-kit/pkg/planner"
	"github.com/shouni/go-visual-kit/pkg/publisher"
	"github.com/shouni/go-visual-kit/pkg/textgen"
)

// Manager は、ワークフローの各工程を担うコンポーネント群を構築・管理します。
// Builder に本文取り込み（URL抽出・ファイル読み込み）の責務を重ねた最上位の入口です。
type Manager struct {
	cfg       config.Config
	builder   *Builder
	extractor *extract.Extractor
	reader    remoteio.InputReader
}

// New は、設定を基に共有クライアント群を初期化して新しい Manager を返します。
// 入出力はローカルパスと gs:// の両方に対応します。
func New(ctx context.Context, cfg config.Config) (*Manager, error) {
	httpClient := httpkit.New(cfg.RequestTimeout)

	gcsFactory, err := gcsfactory.NewGCSClientFactory(ctx)
	if err != nil {
		return nil, fmt.Errorf("GCSクライアントファクトリの初期化に失敗しました: %w", err)
	}
	reader, err := gcsFactory.NewInputReader()
	if err != nil {
		return nil, fmt.Errorf("InputReaderの取得に失敗しました: %w", err)
	}
	writer, err := gcsFactory.NewOutputWriter()
	if err != nil {
		return nil, fmt.Errorf("OutputWriterの取得に失敗しました: %w", err)
	}

	builder, err := NewBuilder(cfg, httpClient, reader, writer)
	if err != nil {
		return nil, err
	}

	extractor, err := builder.BuildExtractor()
	if err != nil {
		return nil, err
	}

	return &Manager{
		cfg:       cfg,
		builder:   builder,
		extractor: extractor,
		reader:    reader,
	}, nil
}

// BuildPlanner は配置計画の対話を担当する Planner を作成します。
func (m *Manager) BuildPlanner() *planner.Planner {
	return m.builder.BuildPlanner()
}

// BuildTextSession はストリーミングテキスト生成を担当する Session を作成します。
func (m *Manager) BuildTextSession() *textgen.Session {
	return m.builder.BuildTextSession()
}

// BuildCoordinator は画像生成セッション全体を駆動する Coordinator を作成します。
func (m *Manager) BuildCoordinator(doc publisher.Document, opts coordinator.Options) (*coordinator.Coordinator, error) {
	return m.builder.BuildCoordinator(doc, opts)
}

// FetchContent はURLから本文テキストを抽出して返します。
func (m *Manager) FetchContent(ctx context.Context, url string) (string, error) {
	text, _, err := m.extractor.FetchAndExtractText(ctx, url)
	if err != nil {
		return "", fmt.Errorf("本文の抽出に失敗しました %s: %w", url, err)
	}
	return text, nil
}

// ReadContent はローカルまたは gs:// のファイルから本文を読み込んで返します。
func (m *Manager) ReadContent(ctx context.Context, path string) (string, error) {
	rc, err := m.reader.Open(ctx, path)
	if err != nil {
		return "", fmt.Errorf("ファイル '%s' の読み込みに失敗しました: %w", path, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return "", fmt.Errorf("ファイル '%s' の読み取りに失敗しました: %w", path, err)
	}
	return string(data), nil
}
