package publisher

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"strings"

	"github.com/shouni/go-remote-io/pkg/remoteio"
	"github.com/shouni/go-text-format/pkg/md2htmlrunner"

	"github.com/shouni/go-visual-kit/pkg/asset"
	"github.com/shouni/go-visual-kit/pkg/domain"
)

// Document は画像適用の対象となる執筆済みドキュメントです。
type Document struct {
	Title string
	Body  string // Markdown本文
}

// ImageFetcher は確定した画像URLからバイト列を取得するための契約です。
type ImageFetcher interface {
	FetchImage(ctx context.Context, url string) ([]byte, error)
}

// Options はパブリッシュ動作を制御する設定項目です。
type Options struct {
	OutputDir string
}

// Result はパブリッシュ処理で生成されたファイルの情報を保持します。
type Result struct {
	MarkdownPath string   // 生成された document.md のパス
	HTMLPath     string   // 生成された HTML のパス（変換を行わない場合は空）
	ImagePaths   []string // 保存された全画像のパスリスト
}


// DocumentPublisher は確定した画像の永続化と、ドキュメントへの埋め込みを担います。
// coordinator.DocumentApplier として選択確定経路の終端に差し込まれます。
type DocumentPublisher struct {
	fetcher    ImageFetcher
	writer     remoteio.OutputWriter
	htmlRunner md2htmlrunner.Runner
	doc        Document
	opts       Options
}

// NewDocumentPublisher は新しい DocumentPublisher を生成します。
// htmlRunner が nil の場合、HTML変換はスキップされます。
func NewDocumentPublisher(fetcher ImageFetcher, writer remoteio.OutputWriter, htmlRunner md2htmlrunner.Runner, doc Document, opts Options) *DocumentPublisher {
	return &DocumentPublisher{
		fetcher:    fetcher,
		writer:     writer,
		htmlRunner: htmlRunner,
		doc:        doc,
		opts:       opts,
	}
}

// ApplyImages は coordinator からの引き渡しを受けてパブリッシュを実行します。
func (p *DocumentPublisher) ApplyImages(ctx context.Context, images []domain.AppliedImage) error {
	_, err := p.Publish(ctx, images)
	return err
}

// Publish は画像の取得と保存、画像入りMarkdownの構築、HTML変換を一括して実行し、
// 生成されたファイル情報を返却します。
func (p *DocumentPublisher) Publish(ctx context.Context, images []domain.AppliedImage) (Result, error) {
	result := Result{}

	markdownPath, err := asset.ResolveOutputPath(p.opts.OutputDir, asset.DefaultDocumentName)
	if err != nil {
		return result, err
	}
	result.MarkdownPath = markdownPath

	imgDir, err := asset.ResolveOutputPath(p.opts.OutputDir, asset.DefaultImageDir)
	if err != nil {
		return result, err
	}

	savedPaths, err := p.saveImages(ctx, images, imgDir)
	if err != nil {
		return result, fmt.Errorf("画像の書き込みに失敗しました: %w", err)
	}
	result.ImagePaths = savedPaths

	// Markdownから参照する相対パス
	relativePaths := make([]string, 0, len(savedPaths))
	for _, pathStr := range savedPaths {
		relativePaths = append(relativePaths, path.Join(asset.DefaultImageDir, filepath.Base(pathStr)))
	}

	content := buildMarkdown(p.doc, images, relativePaths)

	if err := p.writer.Write(ctx, markdownPath, strings.NewReader(content), "text/markdown; charset=utf-8"); err != nil {
		return result, fmt.Errorf("markdownファイルの書き込みに失敗しました: %w", err)
	}

	if p.htmlRunner != nil {
		slog.Info("HTMLプレビューへ変換します", "title", p.doc.Title)
		htmlBuffer, err := p.htmlRunner.Run(ctx, p.doc.Title, []byte(content))
		if err != nil {
			return result, fmt.Errorf("HTMLの変換に失敗しました: %w", err)
		}

		htmlPath := strings.TrimSuffix(markdownPath, filepath.Ext(markdownPath)) + ".html"
		if err := p.writer.Write(ctx, htmlPath, htmlBuffer, "text/html; charset=utf-8"); err != nil {
			return result, fmt.Errorf("htmlファイルの書き込みに失敗しました: %w", err)
		}
		result.HTMLPath = htmlPath
	}

	slog.Info("ドキュメントをパブリッシュしました", "markdown", result.MarkdownPath, "images", len(result.ImagePaths))
	return result, nil
}

// saveImages は確定画像をバックエンドから取得し、指定ディレクトリ（ローカルまたはGCS）へ
// 保存してパスのリストを返します。
func (p *DocumentPublisher) saveImages(ctx context.Context, images []domain.AppliedImage, baseDir string) ([]string, error) {
	var paths []string
	for i, img := range images {
		if img.ImageURL == "" {
			continue
		}
		data, err := p.fetcher.FetchImage(ctx, img.ImageURL)
		if err != nil {
			return nil, fmt.Errorf("画像の取得に失敗しました %s: %w", img.ImageURL, err)
		}

		name := fmt.Sprintf("placement_%d%s", i+1, imageExt(img.ImageURL))
		fullPath, err := asset.ResolveOutputPath(baseDir, name)
		if err != nil {
			return nil, fmt.Errorf("出力パスの解決に失敗しました: %w", err)
		}

		if err := p.writer.Write(ctx, fullPath, bytes.NewReader(data), imageContentType(img.ImageURL)); err != nil {
			return nil, fmt.Errorf("画像の書き込みに失敗しました %s: %w", fullPath, err)
		}
		paths = append(paths, fullPath)
	}
	return paths, nil
}

// imageExt はURLから保存ファイルの拡張子を推定します。不明な場合は .png とします。
func imageExt(url string) string {
	switch ext := strings.ToLower(path.Ext(strings.SplitN(url, "?", 2)[0])); ext {
	case ".jpg", ".jpeg", ".webp", ".gif", ".png":
		return ext
	default:
		return ".png"
	}
}

func imageContentType(url string) string {
	switch imageExt(url) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".webp":
		return "image/webp"
	case ".gif":
		return "image/gif"
	default:
		return "image/png"
	}
}
