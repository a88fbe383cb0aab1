package domain

// GenerationProgress は生成セッション全体の進捗スナップショットです。
// イベントごとに丸ごと差し替える前提の値型で、フィールド単位のマージは行いません。
// 読み手は常に一貫したタプル（完了数・総数・メッセージ・割合）を観測できます。
type GenerationProgress struct {
	CurrentPlacement int    `json:"current_placement"`
	CompletedImages  int    `json:"completed_images"`
	TotalImages      int    `json:"total_images"`
	Message          string `json:"message"`
	Percent          int    `json:"percent"`
}

// WithCompleted は完了数を進めた新しいスナップショットを返します。
func (g GenerationProgress) WithCompleted(completed int, message string) GenerationProgress {
	next := g
	next.CompletedImages = completed
	next.Message = message
	if next.TotalImages > 0 {
		next.Percent = completed * 100 / next.TotalImages
	}
	return next
}
