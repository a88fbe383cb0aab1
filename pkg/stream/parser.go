package stream

import (
	"encoding/json"
	"log/slog"
	"strings"
)

const (
	// frameDelimiter はメッセージ区切りです。メッセージ内部の単独改行は区切りとして扱いません。
	frameDelimiter = "\n\n"
	// dataPrefix は各フレームのペイロード行のマーカーです。
	dataPrefix = "data:"
	// doneSentinel はストリーム終端を示すリテラルで、イベントとしては発行しません。
	doneSentinel = "[DONE]"
)

// Parser はチャンク単位で到着するイベントストリームを解析し、型付きイベントに復元します。
// 1つの未完メッセージバッファのみを内部に保持するため、チャンク境界が
// メッセージ途中で切れていても次の Feed で正しく再結合されます。
type Parser struct {
	pending strings.Builder
}

// NewParser は新しい Parser を生成します。
func NewParser() *Parser {
	return &Parser{}
}

// Feed は受信チャンクをバッファへ追記し、その時点で完成した全メッセージを
// イベント列として返します。不正なフレームは警告ログを出してそのフレームだけを
// 読み飛ばし、ストリーム全体は中断しません。
func (p *Parser) Feed(chunk []byte) []Event {
	p.pending.WriteString(string(chunk))

	segments := strings.Split(p.pending.String(), frameDelimiter)

	// 最後のセグメントは未完の可能性があるため、次回のバッファとして残します。
	p.pending.Reset()
	p.pending.WriteString(segments[len(segments)-1])

	var events []Event
	for _, segment := range segments[:len(segments)-1] {
		if ev, ok := p.parseSegment(segment); ok {
			events = append(events, ev)
		}
	}
	return events
}

// parseSegment は1メッセージ分のテキストからペイロードを抽出してデコードします。
func (p *Parser) parseSegment(segment string) (Event, bool) {
	payload, ok := extractPayload(segment)
	if !ok {
		return Event{}, false
	}
	if payload == doneSentinel {
		return Event{}, false
	}

	var ev Event
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		slog.Warn("不正なフレームを読み飛ばします", "payload", payload, "error", err)
		return Event{}, false
	}
	return ev, true
}

// extractPayload は data: マーカーに続くペイロードを取り出します。
// SSE 仕様に沿い、複数の data 行は改行で連結します。
func extractPayload(segment string) (string, bool) {
	var parts []string
	for _, line := range strings.Split(segment, "\n") {
		if rest, found := strings.CutPrefix(line, dataPrefix); found {
			parts = append(parts, strings.TrimPrefix(rest, " "))
		}
	}
	if len(parts) == 0 {
		return "", false
	}
	return strings.Join(parts, "\n"), true
}
