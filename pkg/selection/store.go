package selection

import "sync"

// Store は配置スロットごとのユーザー選択状態を保持する純粋な状態コンテナです。
// 不変条件: 1つの placementID は「選択済み」と「スキップ済み」のどちらか一方にしか属しません。
// 選択はスキップを解除し、スキップは選択を解除します。
// バックグラウンド生成はバリエーションを追加するだけでこのマップに触れないため、
// 生成タスクとユーザー操作の間でロック競合は発生しません。
type Store struct {
	mu       sync.RWMutex
	selected map[string]string   // placementID -> variationID（上書き、追記はしない）
	skipped  map[string]struct{} // 明示的にスキップされた placementID の集合
}

// NewStore は空の Store を生成します。
func NewStore() *Store {
	return &Store{
		selected: make(map[string]string),
		skipped:  make(map[string]struct{}),
	}
}

// Select は指定スロットの選択バリエーションを上書きし、スキップ状態を解除します。
func (s *Store) Select(placementID, variationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected[placementID] = variationID
	delete(s.skipped, placementID)
}

// Skip は指定スロットをスキップ済みにし、既存の選択を破棄します。
func (s *Store) Skip(placementID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.skipped[placementID] = struct{}{}
	delete(s.selected, placementID)
}

// ClearSelection は指定スロットの選択のみを取り消します。
// 再生成で旧バリエーションが消滅した場合に使用します。スキップ状態には影響しません。
func (s *Store) ClearSelection(placementID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.selected, placementID)
}

// Selected は指定スロットの選択バリエーションIDを返します。
func (s *Store) Selected(placementID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.selected[placementID]
	return id, ok
}

// IsSkipped は指定スロットがスキップ済みかどうかを返します。
func (s *Store) IsSkipped(placementID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.skipped[placementID]
	return ok
}

// Snapshot は選択マップの防御的コピーを返します。
func (s *Store) Snapshot() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	copied := make(map[string]string, len(s.selected))
	for k, v := range s.selected {
		copied[k] = v
	}
	return copied
}

// Reset は全状態を破棄します。モーダルを閉じてセッションを終えるときに呼びます。
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected = make(map[string]string)
	s.skipped = make(map[string]struct{})
}
