package publisher

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shouni/go-visual-kit/pkg/domain"
)

// buildMarkdown はドキュメント本文に確定画像を埋め込んだMarkdownを組み立てます。
//
// ヘッダー画像はタイトル直下に、本文画像は Position が指す段落の直後に挿入されます。
// images と paths は同じ順序で対応している前提です（saveImages の出力順）。
func buildMarkdown(doc Document, images []domain.AppliedImage, paths []string) string {
	var headers []string
	bodyInserts := make(map[int][]string)

	for i, img := range images {
		if i >= len(paths) {
			break
		}
		line := imageMarkdown(img, paths[i])
		if img.PlacementType == domain.PlacementHeader {
			headers = append(headers, line)
			continue
		}
		bodyInserts[img.Position] = append(bodyInserts[img.Position], line)
	}

	var sb strings.Builder
	if doc.Title != "" {
		sb.WriteString(fmt.Sprintf("# %s\n\n", doc.Title))
	}
	for _, line := range headers {
		sb.WriteString(line)
		sb.WriteString("\n\n")
	}

	paragraphs := splitParagraphs(doc.Body)
	for i, para := range paragraphs {
		sb.WriteString(para)
		sb.WriteString("\n\n")
		for _, line := range bodyInserts[i] {
			sb.WriteString(line)
			sb.WriteString("\n\n")
		}
	}

	// 位置が本文の段落数を超えている画像は、位置の昇順で末尾に寄せる
	var overflow []int
	for pos := range bodyInserts {
		if pos >= len(paragraphs) {
			overflow = append(overflow, pos)
		}
	}
	sort.Ints(overflow)
	for _, pos := range overflow {
		for _, line := range bodyInserts[pos] {
			sb.WriteString(line)
			sb.WriteString("\n\n")
		}
	}

	return strings.TrimRight(sb.String(), "\n") + "\n"
}

// imageMarkdown は1枚分の画像参照行を返します。
func imageMarkdown(img domain.AppliedImage, path string) string {
	alt := "挿絵"
	if img.PlacementType == domain.PlacementHeader {
		alt = "ヘッダー画像"
	}
	if img.AspectRatio != "" {
		alt = fmt.Sprintf("%s (%s)", alt, img.AspectRatio)
	}
	return fmt.Sprintf("![%s](%s)", alt, path)
}

// splitParagraphs は空行区切りでMarkdown本文を段落に分割します。空本文は空リストです。
func splitParagraphs(body string) []string {
	trimmed := strings.TrimSpace(body)
	if trimmed == "" {
		return nil
	}
	raw := strings.Split(trimmed, "\n\n")
	paragraphs := make([]string, 0, len(raw))
	for _, p := range raw {
		if s := strings.TrimSpace(p); s != "" {
			paragraphs = append(paragraphs, s)
		}
	}
	return paragraphs
}
