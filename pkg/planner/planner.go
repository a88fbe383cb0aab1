package planner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/shouni/go-visual-kit/pkg/backend"
	"github.com/shouni/go-visual-kit/pkg/domain"
)

// State はプランナーの対話状態です。
type State string

const (
	// StateIdle は初回分析の前です。
	StateIdle State = "idle"
	// StatePlanning は提案と修正の対話ループ中です。
	StatePlanning State = "planning"
	// StateApproved はプランが承認され、生成へ引き渡せる状態です。
	StateApproved State = "approved"
)

var (
	// ErrNotPlanning は対話開始前に SendMessage された場合のエラーです。
	ErrNotPlanning = errors.New("planning conversation has not been started")
	// ErrNotApproved は未承認のままプランを取り出そうとした場合のエラーです。
	ErrNotApproved = errors.New("plan has not been approved yet")
)

// PlanClient は配置プランAPIの契約です。
type PlanClient interface {
	GetImagePlan(ctx context.Context, req backend.PlanRequest) (*backend.PlanResponse, error)
}

// Result は1ターン分の対話結果です。
type Result struct {
	Recommendations []domain.PlacementPlan
	Message         string
	Approved        bool
}

// Planner はソースコンテンツから画像配置案を対話的に練り上げるループを駆動します。
// 承認応答に同梱された配置リストが常に正であり、対話中にキャッシュした過去の
// リストとマージはしません（サーバー権威）。バックエンド到達失敗は状態を変えません。
type Planner struct {
	client PlanClient

	mu           sync.Mutex
	state        State
	content      string
	conversation []backend.Message
	latest       []domain.PlacementPlan
}

// New は新しい Planner を生成します。
func New(client PlanClient) *Planner {
	return &Planner{client: client, state: StateIdle}
}

// State は現在の対話状態を返します。
func (p *Planner) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// StartPlanning はソースコンテンツの初回分析を依頼し、最初の提案を返します。
func (p *Planner) StartPlanning(ctx context.Context, content string) (*Result, error) {
	slog.Info("配置プランの初回分析を開始します", "content_len", len(content))

	resp, err := p.client.GetImagePlan(ctx, backend.PlanRequest{Content: content})
	if err != nil {
		// 失敗時は状態を変えず、呼び出し側のリトライに委ねます。
		return nil, fmt.Errorf("配置プランの取得に失敗しました: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = StatePlanning
	p.content = content
	p.conversation = []backend.Message{{Role: backend.RoleAssistant, Content: resp.Message}}
	p.latest = resp.Recommendations

	return p.toResult(resp), nil
}

// SendMessage はユーザーの発話を対話履歴に加えてプランを更新します。
// 応答は「修正案」（状態は planning のまま）か「承認」（approved へ遷移）に分類されます。
// 承認応答の配置リストは直前に提示していたものと異なる場合がありますが、
// 常にサーバーが返したリストを採用します。
func (p *Planner) SendMessage(ctx context.Context, userText string) (*Result, error) {
	p.mu.Lock()
	if p.state != StatePlanning {
		p.mu.Unlock()
		return nil, ErrNotPlanning
	}
	content := p.content
	messages := append(append([]backend.Message(nil), p.conversation...), backend.Message{
		Role:    backend.RoleUser,
		Content: userText,
	})
	p.mu.Unlock()

	resp, err := p.client.GetImagePlan(ctx, backend.PlanRequest{Content: content, Messages: messages})
	if err != nil {
		// 到達失敗では承認に遷移しない。対話履歴にも失敗ターンは残しません。
		return nil, fmt.Errorf("プラン更新の送信に失敗しました: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.conversation = append(messages, backend.Message{Role: backend.RoleAssistant, Content: resp.Message})
	p.latest = resp.Recommendations
	if resp.Approved {
		p.state = StateApproved
		slog.Info("配置プランが承認されました", "placements", len(resp.Recommendations))
	}

	return p.toResult(resp), nil
}

// ApprovedPlan は承認済みの配置リスト（承認応答に同梱されたもの）を返します。
func (p *Planner) ApprovedPlan() ([]domain.PlacementPlan, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StateApproved {
		return nil, ErrNotApproved
	}
	return append([]domain.PlacementPlan(nil), p.latest...), nil
}

// toResult は呼び出し側でロックを保持している前提の内部ヘルパーです。
func (p *Planner) toResult(resp *backend.PlanResponse) *Result {
	return &Result{
		Recommendations: append([]domain.PlacementPlan(nil), resp.Recommendations...),
		Message:         resp.Message,
		Approved:        resp.Approved,
	}
}
