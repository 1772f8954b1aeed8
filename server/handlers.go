package server

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/rushteam/recserve/core"
	"github.com/rushteam/recserve/metrics"
	"github.com/rushteam/recserve/recall"
	"github.com/rushteam/recserve/recommend"
)

type serveFunc func(ctx context.Context, req recommend.Request) (*recommend.Response, error)

// recommendBody 是 POST 推荐接口的请求体；K 为 nil 表示未指定。
type recommendBody struct {
	UserID string         `json:"user_id"`
	K      *int           `json:"k"`
	Scene  string         `json:"scene"`
	Params map[string]any `json:"params"`
}

// eventBody 是 POST /events 的请求体。
type eventBody struct {
	UserID string `json:"user_id"`
	ItemID string `json:"item_id"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (s *Server) handleRecommend(serve serveFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := s.parseRecommend(r)
		if err != nil {
			s.writeError(w, err)
			return
		}
		resp, err := serve(r.Context(), req)
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func (s *Server) parseRecommend(r *http.Request) (recommend.Request, error) {
	req := recommend.Request{K: s.deps.DefaultK}
	if r.Method == http.MethodPost {
		var body recommendBody
		if err := decodeBody(r, &body); err != nil {
			return req, err
		}
		req.UserID, req.Scene, req.Params = body.UserID, body.Scene, body.Params
		if body.K != nil {
			req.K = *body.K
		}
		return req, nil
	}

	q := r.URL.Query()
	req.UserID = q.Get("user_id")
	req.Scene = q.Get("scene")
	k, err := queryInt(q.Get("k"), s.deps.DefaultK)
	if err != nil {
		return req, err
	}
	req.K = k
	return req, nil
}

// parseList 解析 /similar_items、/history 的参数，key 为 item_id 或 user_id。
// 未指定 k 时取 defK。
func (s *Server) parseList(r *http.Request, defK int) (recall.ListRequest, error) {
	var req recall.ListRequest
	if r.Method == http.MethodPost {
		if err := decodeBody(r, &req); err != nil {
			return req, err
		}
	} else {
		q := r.URL.Query()
		req.UserID = q.Get("user_id")
		req.ItemID = q.Get("item_id")
		k, err := queryInt(q.Get("k"), 0)
		if err != nil {
			return req, err
		}
		req.K = k
	}
	if req.K < 0 {
		return req, core.InvalidInput("k must be >= 0, got %d", req.K)
	}
	if req.K == 0 {
		req.K = defK
	}
	return req, nil
}

func (s *Server) handleSimilar(w http.ResponseWriter, r *http.Request) {
	req, err := s.parseList(r, s.deps.ListK)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if req.ItemID == "" {
		s.writeError(w, core.InvalidInput("item_id is required"))
		return
	}
	list, err := s.deps.Similar.Lookup(r.Context(), req.ItemID)
	if err != nil && !core.IsNotFound(err) {
		s.writeError(w, err)
		return
	}
	// 没有相似物品时返回空列表
	writeJSON(w, http.StatusOK, listResponse(list.Head(req.K)))
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	req, err := s.parseList(r, s.deps.HistoryK)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if req.UserID == "" {
		s.writeError(w, core.InvalidInput("user_id is required"))
		return
	}
	items, err := s.deps.History.Recent(r.Context(), req.UserID, req.K)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse(core.RankedList(items)))
}

func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	var body eventBody
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, err)
		return
	}
	if body.UserID == "" || body.ItemID == "" {
		s.writeError(w, core.InvalidInput("user_id and item_id are required"))
		return
	}
	err := s.deps.History.Record(r.Context(), body.UserID, body.ItemID)
	metrics.RecordEvent(err)
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Orchestrator.Stats())
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func listResponse(list core.RankedList) recall.ListResponse {
	if list == nil {
		list = core.RankedList{}
	}
	return recall.ListResponse{ItemIDs: list}
}

func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return core.InvalidInput("malformed request body: %v", err)
	}
	return nil
}

func queryInt(v string, def int) (int, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, core.InvalidInput("k must be an integer, got %q", v)
	}
	return n, nil
}

// writeError 把领域错误映射为 HTTP 状态码。
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case core.IsInvalidInput(err):
		status = http.StatusBadRequest
	case core.IsNotFound(err):
		status = http.StatusNotFound
	case core.IsUnavailable(err):
		status = http.StatusServiceUnavailable
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error().Err(err).Int("status", status).Msg("request failed")
	}

	body := errorBody{Code: core.ErrorCodeInternalError, Message: err.Error()}
	if de := core.GetDomainError(err); de != nil {
		body.Code, body.Message = de.Code, de.Message
	}
	writeJSON(w, status, map[string]errorBody{"error": body})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck // 响应写入失败无法恢复
	json.NewEncoder(w).Encode(v)
}
