package stream

// Event はバックエンドのイベントストリームから復元した1フレーム分のイベントです。
// テキスト生成と画像バッチ生成は同じフレーミングを共有するため、
// 両ストリームのフィールドを1つの構造体に集約し、未使用フィールドはゼロ値のままにします。
type Event struct {
	// テキスト生成ストリーム
	Text       string      `json:"text,omitempty"`
	ToolStart  *ToolStart  `json:"toolStart,omitempty"`
	ToolResult *ToolResult `json:"toolResult,omitempty"`

	// 画像バッチ生成ストリーム
	Type           string  `json:"type,omitempty"` // "image" | "error" | "complete"
	Image          string  `json:"image,omitempty"`
	VariationIndex *int    `json:"variationIndex,omitempty"`
	TotalCount     int     `json:"totalCount,omitempty"`
	Duration       float64 `json:"duration,omitempty"`

	// 共通のエラーフレーム
	Error string `json:"error,omitempty"`
}

// ToolStart はモデルがストリーム中に内蔵ツールを起動したことを示します。
type ToolStart struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

// ToolResult はツール実行の成否と結果ペイロードを保持します。
type ToolResult struct {
	ToolName  string `json:"toolName"`
	ToolUseID string `json:"toolUseId"`
	Result    string `json:"result"`
	IsError   bool   `json:"isError,omitempty"`
}

const (
	// EventTypeImage は1枚のバリエーション画像の到着を示します。
	EventTypeImage = "image"
	// EventTypeError はバッチ内の1枚分の失敗、またはバッチ全体のエラーを示します。
	EventTypeError = "error"
	// EventTypeComplete はバッチの完了を示します。
	EventTypeComplete = "complete"
)

// IsTextDelta はテキスト増分イベントかどうかを返します。
func (e Event) IsTextDelta() bool {
	return e.Text != "" && e.Type == ""
}
