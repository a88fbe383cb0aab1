package runner

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/shouni/go-visual-kit/pkg/domain"
	"github.com/shouni/go-visual-kit/pkg/planner"
)

// PlanRunner は、本文に対する画像配置計画の対話を実行するためのインターフェースなのだ。
type PlanRunner interface {
	// Run は対話ループを実行し、承認された配置案のリストを返すのだ。
	Run(ctx context.Context, content string) ([]domain.PlacementPlan, error)
}

// InteractivePlanRunner は、標準入出力でプランナーとの対話を仲介する標準実装なのだ。
type InteractivePlanRunner struct {
	planner *planner.Planner // 配置計画の状態機械
	in      io.Reader        // ユーザー入力（通常は os.Stdin）
	out     io.Writer        // 表示先（通常は os.Stdout）
}

// NewInteractivePlanRunner は、InteractivePlanRunnerの新しいインスタンスを生成して返すのだ。
func NewInteractivePlanRunner(p *planner.Planner, in io.Reader, out io.Writer) *InteractivePlanRunner {
	return &InteractivePlanRunner{
		planner: p,
		in:      in,
		out:     out,
	}
}

// Run は、初回提案の取得からユーザーの承認まで対話を回すのだ。
// 入力が尽きた場合（EOF）は承認なしとしてエラーを返すのだ。
func (pr *InteractivePlanRunner) Run(ctx context.Context, content string) ([]domain.PlacementPlan, error) {
	result, err := pr.planner.StartPlanning(ctx, content)
	if err != nil {
		return nil, fmt.Errorf("配置計画の開始に失敗したのだ: %w", err)
	}
	pr.printResult(result)

	scanner := bufio.NewScanner(pr.in)
	for !result.Approved {
		fmt.Fprint(pr.out, "\n> ")
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return nil, err
			}
			return nil, fmt.Errorf("承認される前に入力が終了したのだ")
		}
		message := strings.TrimSpace(scanner.Text())
		if message == "" {
			continue
		}

		result, err = pr.planner.SendMessage(ctx, message)
		if err != nil {
			// 到達失敗などの一時的なエラーでは対話を続けられるのだ
			fmt.Fprintf(pr.out, "エラー: %v\n", err)
			continue
		}
		pr.printResult(result)
	}

	return pr.planner.ApprovedPlan()
}

// printResult は、プランナーの応答メッセージと現在の提案リストを表示するのだ。
func (pr *InteractivePlanRunner) printResult(result *planner.Result) {
	fmt.Fprintf(pr.out, "\n%s\n", result.Message)
	for i, plan := range result.Recommendations {
		ratio := plan.AspectRatio
		if ratio == "" {
			ratio = domain.DefaultAspectRatio(plan.Type)
		}
		fmt.Fprintf(pr.out, "  %d. [%s %s] %s\n", i+1, plan.Type, ratio, plan.Description)
	}
	if result.Approved {
		fmt.Fprintln(pr.out, "\n配置計画が承認されたのだ！")
	}
}
