package runner

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/shouni/go-visual-kit/internal/config"
	"github.com/shouni/go-visual-kit/pkg/coordinator"
	"github.com/shouni/go-visual-kit/pkg/domain"
)

// CurationRunner は、生成された候補画像の選別セッションを実行するためのインターフェースなのだ。
type CurationRunner interface {
	// Run は生成からキュレーション、ドキュメントへの適用までを一気に実行するのだ。
	Run(ctx context.Context, plans []domain.PlacementPlan) error
}

// InteractiveCurationRunner は、標準入出力でキュレーション操作を仲介する標準実装なのだ。
// --auto が指定された場合は対話を省略し、各スロットの先頭候補を自動選択するのだ。
type InteractiveCurationRunner struct {
	coord *coordinator.Coordinator
	opts  config.GenerateOptions
	in    io.Reader
	out   io.Writer
}

// NewInteractiveCurationRunner は、InteractiveCurationRunnerの新しいインスタンスを生成して返すのだ。
func NewInteractiveCurationRunner(coord *coordinator.Coordinator, opts config.GenerateOptions, in io.Reader, out io.Writer) *InteractiveCurationRunner {
	return &InteractiveCurationRunner{
		coord: coord,
		opts:  opts,
		in:    in,
		out:   out,
	}
}

// Run は生成セッションを開始し、モードに応じてキュレーションを実行するのだ。
func (cr *InteractiveCurationRunner) Run(ctx context.Context, plans []domain.PlacementPlan) error {
	if err := cr.coord.StartGeneration(ctx, plans, cr.opts.Style, cr.opts.BrandColors); err != nil {
		return fmt.Errorf("画像生成の開始に失敗したのだ: %w", err)
	}

	if cr.opts.Auto {
		return cr.runAuto(ctx)
	}
	return cr.runInteractive(ctx)
}

// runAuto は全スロットの生成完了を待ち、各スロットの先頭候補を選択して適用するのだ。
func (cr *InteractiveCurationRunner) runAuto(ctx context.Context) error {
	fmt.Fprintln(cr.out, "自動モード: 全スロットの生成完了を待つのだ...")
	if err := cr.waitForGeneration(ctx); err != nil {
		return err
	}

	for _, p := range cr.coord.Placements() {
		if len(p.Variations) == 0 {
			fmt.Fprintf(cr.out, "候補なしのためスキップ: %s\n", p.Description)
			if err := cr.coord.SkipPlacement(p.ID); err != nil {
				return err
			}
			continue
		}
		if err := cr.coord.SelectImage(p.ID, p.Variations[0].ID); err != nil {
			return err
		}
	}

	if err := cr.coord.ApplyImages(ctx); err != nil {
		return err
	}
	fmt.Fprintln(cr.out, "先頭候補を自動選択してドキュメントへ適用したのだ！")
	return nil
}

// waitForGeneration はバックグラウンド生成の完了をポーリングで待つのだ。
func (cr *InteractiveCurationRunner) waitForGeneration(ctx context.Context) error {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for cr.coord.IsGeneratingMore() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			progress := cr.coord.Progress()
			fmt.Fprintf(cr.out, "\r生成中... %d/%d", progress.CompletedImages, progress.TotalImages)
		}
	}
	fmt.Fprintln(cr.out)
	return nil
}

// runInteractive はコマンド入力でキュレーション操作を受け付けるのだ。
func (cr *InteractiveCurationRunner) runInteractive(ctx context.Context) error {
	cr.printPlacements()
	cr.printHelp()

	scanner := bufio.NewScanner(cr.in)
	for {
		fmt.Fprint(cr.out, "\n> ")
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return err
			}
			// 入力終了は中断として扱うのだ
			cr.coord.CloseModal()
			return nil
		}

		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		done, err := cr.dispatch(ctx, fields[0], fields[1:], scanner)
		if err != nil {
			fmt.Fprintf(cr.out, "エラー: %v\n", err)
			continue
		}
		if done {
			return nil
		}
	}
}

// dispatch は1コマンドを実行するのだ。戻り値 done はセッション終了を意味するのだ。
func (cr *InteractiveCurationRunner) dispatch(ctx context.Context, cmd string, args []string, scanner *bufio.Scanner) (bool, error) {
	switch cmd {
	case "list", "ls":
		cr.printPlacements()
		return false, nil

	case "select", "s":
		placement, variation, err := cr.resolveVariation(args)
		if err != nil {
			return false, err
		}
		if err := cr.coord.SelectImage(placement.ID, variation.ID); err != nil {
			return false, err
		}
		fmt.Fprintf(cr.out, "選択したのだ: %s\n", variation.URL)
		return false, nil

	case "skip":
		placement, err := cr.resolvePlacement(args)
		if err != nil {
			return false, err
		}
		if err := cr.coord.SkipPlacement(placement.ID); err != nil {
			return false, err
		}
		fmt.Fprintf(cr.out, "スキップしたのだ: %s\n", placement.Description)
		return false, nil

	case "view", "v":
		return false, cr.runLightbox(ctx, args, scanner)

	case "edit", "e":
		return false, cr.runEdit(ctx, args, scanner)

	case "regen", "r":
		return false, cr.runRegenerate(ctx, args, scanner)

	case "redo":
		placement, err := cr.resolvePlacement(args)
		if err != nil {
			return false, err
		}
		newPrompt := strings.Join(args[1:], " ")
		fmt.Fprintln(cr.out, "スロット全体を再生成するのだ...")
		if err := cr.coord.RegeneratePlacement(ctx, placement.ID, newPrompt); err != nil {
			return false, err
		}
		cr.printPlacements()
		return false, nil

	case "apply", "a":
		if err := cr.coord.ApplyImages(ctx); err != nil {
			return false, err
		}
		fmt.Fprintln(cr.out, "選択した画像をドキュメントへ適用したのだ！")
		return true, nil

	case "quit", "q":
		if cr.coord.NeedsDiscardConfirmation() {
			fmt.Fprint(cr.out, "生成済みの画像は破棄されるのだ。本当に終了する？ (y/N): ")
			if !scanner.Scan() || strings.ToLower(strings.TrimSpace(scanner.Text())) != "y" {
				return false, nil
			}
		}
		cr.coord.CloseModal()
		fmt.Fprintln(cr.out, "セッションを破棄したのだ")
		return true, nil

	case "help", "h":
		cr.printHelp()
		return false, nil

	default:
		return false, fmt.Errorf("未知のコマンドなのだ: %s", cmd)
	}
}

// runLightbox は等倍表示を開いて n/p/q のサブループを回すのだ。
func (cr *InteractiveCurationRunner) runLightbox(ctx context.Context, args []string, scanner *bufio.Scanner) error {
	_, variation, err := cr.resolveVariation(args)
	if err != nil {
		return err
	}
	if err := cr.coord.OpenLightbox(ctx, variation.ID); err != nil {
		return err
	}
	defer cr.coord.CloseLightbox()

	img, _ := cr.coord.CurrentLightboxImage()
	cr.printLightboxImage(img.URL, img.VariationIndex, img.VariationTotal)

	for {
		fmt.Fprint(cr.out, "[n]ext / [p]rev / [q]uit > ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		switch strings.TrimSpace(scanner.Text()) {
		case "n":
			img, err := cr.coord.LightboxNext(ctx)
			if err != nil {
				return err
			}
			cr.printLightboxImage(img.URL, img.VariationIndex, img.VariationTotal)
		case "p":
			img, err := cr.coord.LightboxPrevious(ctx)
			if err != nil {
				return err
			}
			cr.printLightboxImage(img.URL, img.VariationIndex, img.VariationTotal)
		case "q":
			return nil
		}
	}
}

func (cr *InteractiveCurationRunner) printLightboxImage(url string, index, total int) {
	fmt.Fprintf(cr.out, "表示中 (%d/%d): %s\n", index+1, total, url)
}

// runEdit は参照画像編集のサブビューを開き、指示文を読み取って実行するのだ。
func (cr *InteractiveCurationRunner) runEdit(ctx context.Context, args []string, scanner *bufio.Scanner) error {
	placement, variation, err := cr.resolveVariation(args)
	if err != nil {
		return err
	}
	if err := cr.coord.OpenEdit(variation.ID, placement.ID); err != nil {
		return err
	}

	fmt.Fprint(cr.out, "編集の指示を入力するのだ: ")
	if !scanner.Scan() {
		cr.coord.CloseEdit()
		return scanner.Err()
	}
	prompt := strings.TrimSpace(scanner.Text())
	if prompt == "" {
		cr.coord.CloseEdit()
		return nil
	}

	fmt.Fprintln(cr.out, "編集を実行中なのだ（数分かかることがあるのだ）...")
	if err := cr.coord.SubmitEdit(ctx, prompt); err != nil {
		// 失敗しても編集ビューは開いたままなので、閉じてから戻るのだ
		cr.coord.CloseEdit()
		return err
	}
	fmt.Fprintln(cr.out, "編集結果を新しい候補として追加したのだ！")
	cr.printPlacements()
	return nil
}

// runRegenerate は1枚単位の再生成ポップオーバーを開いて実行するのだ。
func (cr *InteractiveCurationRunner) runRegenerate(ctx context.Context, args []string, scanner *bufio.Scanner) error {
	placement, variation, err := cr.resolveVariation(args)
	if err != nil {
		return err
	}
	if err := cr.coord.OpenRegenerate(placement.ID, variation.ID); err != nil {
		return err
	}

	fmt.Fprint(cr.out, "再生成の指示を入力するのだ（空欄で同じ指示）: ")
	if !scanner.Scan() {
		cr.coord.CloseRegenerate()
		return scanner.Err()
	}
	prompt := strings.TrimSpace(scanner.Text())

	fmt.Fprintln(cr.out, "再生成を実行中なのだ...")
	if err := cr.coord.SubmitRegenerate(ctx, prompt); err != nil {
		cr.coord.CloseRegenerate()
		return err
	}
	fmt.Fprintln(cr.out, "候補を差し替えたのだ！")
	cr.printPlacements()
	return nil
}

// resolvePlacement は「スロット番号」の引数から配置スロットを特定するのだ。
func (cr *InteractiveCurationRunner) resolvePlacement(args []string) (*domain.Placement, error) {
	if len(args) < 1 {
		return nil, fmt.Errorf("スロット番号が必要なのだ")
	}
	placements := cr.coord.Placements()
	idx, err := strconv.Atoi(args[0])
	if err != nil || idx < 1 || idx > len(placements) {
		return nil, fmt.Errorf("スロット番号が不正なのだ: %s", args[0])
	}
	return &placements[idx-1], nil
}

// resolveVariation は「スロット番号 候補番号」の引数から候補を特定するのだ。
func (cr *InteractiveCurationRunner) resolveVariation(args []string) (*domain.Placement, *domain.Variation, error) {
	placement, err := cr.resolvePlacement(args)
	if err != nil {
		return nil, nil, err
	}
	if len(args) < 2 {
		return nil, nil, fmt.Errorf("候補番号が必要なのだ")
	}
	idx, err := strconv.Atoi(args[1])
	if err != nil || idx < 1 || idx > len(placement.Variations) {
		return nil, nil, fmt.Errorf("候補番号が不正なのだ: %s", args[1])
	}
	return placement, &placement.Variations[idx-1], nil
}

// printPlacements は現在のスロットと候補の一覧を選択状態つきで表示するのだ。
func (cr *InteractiveCurationRunner) printPlacements() {
	store := cr.coord.Store()
	fmt.Fprintln(cr.out, "\n--- 配置スロット一覧 ---")
	for i, p := range cr.coord.Placements() {
		status := ""
		if store.IsSkipped(p.ID) {
			status = " [スキップ]"
		}
		fmt.Fprintf(cr.out, "%d. [%s %s] %s%s\n", i+1, p.Type, p.AspectRatio, p.Description, status)

		selected, _ := store.Selected(p.ID)
		for j, v := range p.Variations {
			marker := "  "
			if v.ID == selected {
				marker = "✓ "
			}
			fmt.Fprintf(cr.out, "   %s%d) %s\n", marker, j+1, v.URL)
		}
		if len(p.Variations) == 0 {
			fmt.Fprintln(cr.out, "      (生成中または候補なし)")
		}
	}
	if cr.coord.IsGeneratingMore() {
		fmt.Fprintln(cr.out, "※ 残りのスロットはバックグラウンドで生成中なのだ")
	}
}

func (cr *InteractiveCurationRunner) printHelp() {
	fmt.Fprintln(cr.out, `
コマンド:
  list                 スロットと候補の一覧を表示
  select <slot> <n>    候補を選択
  skip <slot>          スロットをスキップ
  view <slot> <n>      等倍表示（n/pで前後、qで戻る）
  edit <slot> <n>      参照画像をもとに編集して候補を追加
  regen <slot> <n>     候補1枚だけを再生成して差し替え
  redo <slot> [指示]   スロット全体を作り直し
  apply                選択を確定してドキュメントへ適用
  quit                 破棄して終了`)
}
