package planner

import (
	"context"
	"errors"
	"testing"

	"github.com/shouni/go-visual-kit/pkg/backend"
	"github.com/shouni/go-visual-kit/pkg/domain"
)

// scriptedPlanClient は応答列を順に返すテスト用クライアントです。
type scriptedPlanClient struct {
	responses []*backend.PlanResponse
	errs      []error
	requests  []backend.PlanRequest
}

func (c *scriptedPlanClient) GetImagePlan(_ context.Context, req backend.PlanRequest) (*backend.PlanResponse, error) {
	c.requests = append(c.requests, req)
	i := len(c.requests) - 1
	if i < len(c.errs) && c.errs[i] != nil {
		return nil, c.errs[i]
	}
	return c.responses[i], nil
}

func headerPlan(desc string) domain.PlacementPlan {
	return domain.PlacementPlan{Type: domain.PlacementHeader, Description: desc, AspectRatio: "16:9"}
}

func TestPlanner_StartPlanning(t *testing.T) {
	client := &scriptedPlanClient{responses: []*backend.PlanResponse{
		{Recommendations: []domain.PlacementPlan{headerPlan("都市の風景")}, Message: "1点提案します"},
	}}
	p := New(client)

	result, err := p.StartPlanning(context.Background(), "記事本文")
	if err != nil {
		t.Fatalf("StartPlanningでエラー: %v", err)
	}

	if p.State() != StatePlanning {
		t.Errorf("期待値 planning, 実際は %s", p.State())
	}
	if len(result.Recommendations) != 1 || result.Approved {
		t.Errorf("初回提案が一致しません: %+v", result)
	}
	if _, err := p.ApprovedPlan(); !errors.Is(err, ErrNotApproved) {
		t.Errorf("未承認でApprovedPlanが成功しました: %v", err)
	}
}

func TestPlanner_SendMessage(t *testing.T) {
	t.Run("修正案では状態がplanningのまま最新リストが更新されること", func(t *testing.T) {
		client := &scriptedPlanClient{responses: []*backend.PlanResponse{
			{Recommendations: []domain.PlacementPlan{headerPlan("A案")}, Message: "提案"},
			{Recommendations: []domain.PlacementPlan{headerPlan("B案")}, Message: "修正しました"},
		}}
		p := New(client)
		_, _ = p.StartPlanning(context.Background(), "本文")

		result, err := p.SendMessage(context.Background(), "もっと落ち着いた雰囲気に")
		if err != nil {
			t.Fatalf("SendMessageでエラー: %v", err)
		}
		if p.State() != StatePlanning || result.Approved {
			t.Errorf("修正案で状態が変わっています: %s", p.State())
		}
		if result.Recommendations[0].Description != "B案" {
			t.Errorf("最新リストが反映されていません: %+v", result.Recommendations)
		}

		// 対話履歴（本文＋全ターン）が送られていること
		lastReq := client.requests[len(client.requests)-1]
		if lastReq.Content != "本文" || len(lastReq.Messages) != 2 {
			t.Errorf("対話履歴の送信が不正です: %+v", lastReq)
		}
	})

	t.Run("承認応答に同梱されたリストが正となること", func(t *testing.T) {
		client := &scriptedPlanClient{responses: []*backend.PlanResponse{
			{Recommendations: []domain.PlacementPlan{headerPlan("提示中の案")}, Message: "提案"},
			// 承認応答は直前に提示していた案と異なるリストを運んでくることがある
			{Recommendations: []domain.PlacementPlan{headerPlan("最終案"), {Type: domain.PlacementBody, Description: "図解"}}, Message: "承認しました", Approved: true},
		}}
		p := New(client)
		_, _ = p.StartPlanning(context.Background(), "本文")

		result, err := p.SendMessage(context.Background(), "それでお願いします")
		if err != nil {
			t.Fatalf("SendMessageでエラー: %v", err)
		}
		if !result.Approved || p.State() != StateApproved {
			t.Fatalf("承認が反映されていません: %+v", result)
		}

		plan, err := p.ApprovedPlan()
		if err != nil {
			t.Fatalf("ApprovedPlanでエラー: %v", err)
		}
		if len(plan) != 2 || plan[0].Description != "最終案" {
			t.Errorf("承認応答のリストが採用されていません: %+v", plan)
		}
	})

	t.Run("バックエンド到達失敗では状態が変わらないこと", func(t *testing.T) {
		client := &scriptedPlanClient{
			responses: []*backend.PlanResponse{
				{Recommendations: []domain.PlacementPlan{headerPlan("A案")}, Message: "提案"},
				nil,
			},
			errs: []error{nil, errors.New("connection refused")},
		}
		p := New(client)
		_, _ = p.StartPlanning(context.Background(), "本文")

		_, err := p.SendMessage(context.Background(), "承認します")
		if err == nil {
			t.Fatal("到達失敗がエラーになっていません")
		}
		if p.State() != StatePlanning {
			t.Errorf("失敗で状態が変化しました: %s", p.State())
		}
	})

	t.Run("対話開始前のSendMessageは拒否されること", func(t *testing.T) {
		p := New(&scriptedPlanClient{})
		if _, err := p.SendMessage(context.Background(), "こんにちは"); !errors.Is(err, ErrNotPlanning) {
			t.Errorf("期待値 ErrNotPlanning, 実際は %v", err)
		}
	})
}
