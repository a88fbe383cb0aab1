package cmd

import (
	"strings"
	"testing"

	"github.com/shouni/go-visual-kit/internal/config"
)

// 標準入力は対話ランナーが占有するため、本文ソースはフラグでの明示指定が必須なのだ。
func TestSourceFlagRequired(t *testing.T) {
	orig := opts
	defer func() { opts = orig }()
	opts = config.GenerateOptions{}

	t.Run("planは本文ソース未指定でエラーになること", func(t *testing.T) {
		err := planCommand(planCmd, nil)
		if err == nil || !strings.Contains(err.Error(), "--content-url") {
			t.Errorf("ソース必須チェックが機能していません: %v", err)
		}
	})

	t.Run("generateは本文ソース未指定でエラーになること", func(t *testing.T) {
		err := generateCommand(generateCmd, nil)
		if err == nil || !strings.Contains(err.Error(), "--content-url") {
			t.Errorf("ソース必須チェックが機能していません: %v", err)
		}
	})
}
