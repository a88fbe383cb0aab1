package publisher

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/shouni/go-visual-kit/pkg/domain"
)

// fakeFetcher はURLごとに固定のバイト列を返します。
type fakeFetcher struct {
	data map[string][]byte
	err  error
}

func (f *fakeFetcher) FetchImage(_ context.Context, url string) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.data[url], nil
}

// memoryWriter は remoteio.OutputWriter 互換の書き込み先で、内容をメモリに記録します。
type memoryWriter struct {
	files map[string][]byte
	types map[string]string
}

func newMemoryWriter() *memoryWriter {
	return &memoryWriter{files: map[string][]byte{}, types: map[string]string{}}
}

func (w *memoryWriter) Write(_ context.Context, path string, data io.Reader, contentType string) error {
	buf, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	w.files[path] = buf
	w.types[path] = contentType
	return nil
}

// fakeHTMLRunner はタイトルを埋めた固定HTMLを返します。
type fakeHTMLRunner struct {
	err error
}

func (r *fakeHTMLRunner) Run(_ context.Context, title string, _ []byte) (io.Reader, error) {
	if r.err != nil {
		return nil, r.err
	}
	return bytes.NewReader([]byte("<html><title>" + title + "</title></html>")), nil
}

func TestDocumentPublisher_Publish(t *testing.T) {
	doc := Document{
		Title: "はじめてのGo",
		Body:  "最初の段落です。\n\n二番目の段落です。\n\n三番目の段落です。",
	}
	fetcher := &fakeFetcher{data: map[string][]byte{
		"http://example.com/hero.png":  []byte("hero-bytes"),
		"http://example.com/chart.jpg": []byte("chart-bytes"),
	}}
	writer := newMemoryWriter()
	pub := NewDocumentPublisher(fetcher, writer, &fakeHTMLRunner{}, doc, Options{OutputDir: "out"})

	images := []domain.AppliedImage{
		{ImageURL: "http://example.com/hero.png", AspectRatio: "16:9", PlacementType: domain.PlacementHeader},
		{ImageURL: "http://example.com/chart.jpg", AspectRatio: "4:3", PlacementType: domain.PlacementBody, Position: 1},
	}

	result, err := pub.Publish(context.Background(), images)
	if err != nil {
		t.Fatalf("Publishでエラー: %v", err)
	}

	t.Run("画像が取得内容そのままで保存されること", func(t *testing.T) {
		if len(result.ImagePaths) != 2 {
			t.Fatalf("期待値 2枚, 実際は %d枚", len(result.ImagePaths))
		}
		if got := writer.files["out/images/placement_1.png"]; string(got) != "hero-bytes" {
			t.Errorf("ヘッダー画像の内容が一致しません: %q", got)
		}
		if got := writer.types["out/images/placement_2.jpg"]; got != "image/jpeg" {
			t.Errorf("コンテンツタイプの推定が不正です: %s", got)
		}
	})

	t.Run("Markdownにタイトル直下のヘッダー画像と段落直後の挿絵が含まれること", func(t *testing.T) {
		md := string(writer.files[result.MarkdownPath])
		if !strings.HasPrefix(md, "# はじめてのGo\n\n![ヘッダー画像 (16:9)](images/placement_1.png)") {
			t.Errorf("ヘッダー画像の位置が不正です:\n%s", md)
		}
		wantOrder := "二番目の段落です。\n\n![挿絵 (4:3)](images/placement_2.jpg)\n\n三番目の段落です。"
		if !strings.Contains(md, wantOrder) {
			t.Errorf("本文挿絵の挿入位置が不正です:\n%s", md)
		}
	})

	t.Run("HTMLプレビューが書き出されること", func(t *testing.T) {
		if result.HTMLPath != "out/document.html" {
			t.Fatalf("HTMLパスが不正です: %s", result.HTMLPath)
		}
		if got := string(writer.files[result.HTMLPath]); !strings.Contains(got, "はじめてのGo") {
			t.Errorf("HTML内容が不正です: %s", got)
		}
	})
}

func TestBuildMarkdown_段落数を超える位置の画像(t *testing.T) {
	doc := Document{Title: "T", Body: "唯一の段落です。"}
	images := []domain.AppliedImage{
		{ImageURL: "a", PlacementType: domain.PlacementBody, Position: 9},
		{ImageURL: "b", PlacementType: domain.PlacementBody, Position: 5},
		{ImageURL: "c", PlacementType: domain.PlacementBody, Position: 5},
	}
	paths := []string{"images/a.png", "images/b.png", "images/c.png"}

	// 末尾送りの画像は位置の昇順（同位置は元の並び順）で安定していること
	want := "唯一の段落です。\n\n![挿絵](images/b.png)\n\n![挿絵](images/c.png)\n\n![挿絵](images/a.png)\n"
	for i := 0; i < 10; i++ {
		md := buildMarkdown(doc, images, paths)
		if !strings.HasSuffix(md, want) {
			t.Fatalf("末尾送りの順序が不正です:\n%s", md)
		}
	}
}

func TestDocumentPublisher_Publish_スキップ時の挙動(t *testing.T) {
	t.Run("htmlRunnerがnilの場合はHTML変換を行わないこと", func(t *testing.T) {
		writer := newMemoryWriter()
		pub := NewDocumentPublisher(&fakeFetcher{}, writer, nil, Document{Title: "T", Body: "本文"}, Options{OutputDir: "out"})

		result, err := pub.Publish(context.Background(), nil)
		if err != nil {
			t.Fatalf("Publishでエラー: %v", err)
		}
		if result.HTMLPath != "" {
			t.Errorf("HTMLが生成されています: %s", result.HTMLPath)
		}
	})

	t.Run("画像の取得失敗でエラーが返ること", func(t *testing.T) {
		pub := NewDocumentPublisher(&fakeFetcher{err: errors.New("not found")}, newMemoryWriter(), nil, Document{}, Options{OutputDir: "out"})
		_, err := pub.Publish(context.Background(), []domain.AppliedImage{{ImageURL: "http://example.com/x.png"}})
		if err == nil {
			t.Fatal("取得失敗がエラーになっていません")
		}
	})
}

