package selection

import "testing"

func TestStore_SelectAndSkip(t *testing.T) {
	t.Run("選択とスキップは同一スロットで排他であること", func(t *testing.T) {
		s := NewStore()

		// どんな操作列の後でも、selected と skipped の両方に属さないこと
		ops := []func(){
			func() { s.Select("p1", "v1") },
			func() { s.Skip("p1") },
			func() { s.Select("p1", "v2") },
			func() { s.Skip("p1") },
			func() { s.Skip("p1") },
			func() { s.Select("p1", "v3") },
		}
		for i, op := range ops {
			op()
			_, selected := s.Selected("p1")
			if selected && s.IsSkipped("p1") {
				t.Fatalf("操作 %d の後で選択とスキップが同居しています", i)
			}
		}

		if id, ok := s.Selected("p1"); !ok || id != "v3" {
			t.Errorf("最後の選択が反映されていません: %s", id)
		}
		if s.IsSkipped("p1") {
			t.Error("選択後もスキップ状態が残っています")
		}
	})

	t.Run("選択は追記ではなく上書きであること", func(t *testing.T) {
		s := NewStore()
		s.Select("p1", "v1")
		s.Select("p1", "v2")

		snapshot := s.Snapshot()
		if len(snapshot) != 1 {
			t.Fatalf("スロットごとのエントリは最大1件のはずが %d件あります", len(snapshot))
		}
		if snapshot["p1"] != "v2" {
			t.Errorf("期待値 'v2', 実際の値 '%s'", snapshot["p1"])
		}
	})
}

func TestStore_ClearSelection(t *testing.T) {
	s := NewStore()
	s.Select("p1", "v1")
	s.Skip("p2")

	s.ClearSelection("p1")

	if _, ok := s.Selected("p1"); ok {
		t.Error("選択が取り消されていません")
	}
	if !s.IsSkipped("p2") {
		t.Error("無関係なスロットのスキップ状態が消えています")
	}
}

func TestStore_Snapshot(t *testing.T) {
	t.Run("スナップショットへの変更が内部状態に影響しないこと", func(t *testing.T) {
		s := NewStore()
		s.Select("p1", "v1")

		snapshot := s.Snapshot()
		snapshot["p1"] = "tampered"

		if id, _ := s.Selected("p1"); id != "v1" {
			t.Errorf("防御的コピーになっていません: %s", id)
		}
	})
}

func TestStore_Reset(t *testing.T) {
	s := NewStore()
	s.Select("p1", "v1")
	s.Skip("p2")

	s.Reset()

	if len(s.Snapshot()) != 0 || s.IsSkipped("p2") {
		t.Error("Resetで全状態が破棄されていません")
	}
}
