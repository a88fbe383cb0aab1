package workflow

import (
	"context"

	"github.com/shouni/go-visual-kit/pkg/coordinator"
	"github.com/shouni/go-visual-kit/pkg/planner"
	"github.com/shouni/go-visual-kit/pkg/publisher"
	"github.com/shouni/go-visual-kit/pkg/textgen"
)

// Workflow は、画像キュレーションワークフローの各工程を担当するコンポーネントを
// 構築するためのインターフェースを定義します。
type Workflow interface {
	BuildPlanner() *planner.Planner
	BuildTextSession() *textgen.Session
	BuildCoordinator(doc publisher.Document, opts coordinator.Options) (*coordinator.Coordinator, error)
	FetchContent(ctx context.Context, url string) (string, error)
	ReadContent(ctx context.Context, path string) (string, error)
}
