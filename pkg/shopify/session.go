package shopify

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/go-resty/resty/v2"
	"github.com/tomnomnom/linkheader"
	"go.uber.org/zap"
)

// Session 一次认证会话，只能在 WithSession 内使用
type Session struct {
	id     string
	client *Client
	token  string

	mu    sync.RWMutex
	open  bool
	calls atomic.Int64
}

// ID 会话标识
func (s *Session) ID() string {
	return s.id
}

// Open 会话是否仍可用
func (s *Session) Open() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.open
}

// Calls 本会话已发出的调用次数
func (s *Session) Calls() int {
	return int(s.calls.Load())
}

func (s *Session) close() {
	s.mu.Lock()
	s.open = false
	s.mu.Unlock()
}

// ==================== 调用执行 ====================

// call 执行一次远程调用：会话检查、节流、超时、错误分类
func (s *Session) call(ctx context.Context, op string, mutating bool, send func(req *resty.Request) (*resty.Response, error)) (*resty.Response, error) {
	if !s.Open() {
		return nil, &RemoteError{Kind: KindPermanent, Op: op, Message: "会话已关闭"}
	}

	var resp *resty.Response
	run := func() error {
		s.calls.Add(1)
		req := s.client.http.R().
			SetContext(ctx).
			SetHeader(accessTokenHeader, s.token)

		r, err := send(req)
		if err != nil {
			return transportError(op, err)
		}
		if r.IsError() {
			return statusError(op, r.StatusCode(), r.Body())
		}
		resp = r
		return nil
	}

	var err error
	if mutating {
		err = s.client.pacer.Write(ctx, run)
	} else {
		err = s.client.pacer.Read(ctx, run)
	}
	if err != nil {
		if _, ok := err.(*RemoteError); !ok {
			err = transportError(op, err)
		}
		s.client.logger.Warn("远程调用失败",
			zap.String("session", s.id),
			zap.String("op", op),
			zap.Error(err),
		)
		return nil, err
	}
	return resp, nil
}

// getJSON 读调用并解析
func (s *Session) getJSON(ctx context.Context, op, path string, query map[string]string, out interface{}) (*resty.Response, error) {
	resp, err := s.call(ctx, op, false, func(req *resty.Request) (*resty.Response, error) {
		return req.SetQueryParams(query).Get(path)
	})
	if err != nil {
		return nil, err
	}
	if out != nil {
		if err := decodeJSON(resp.Body(), out); err != nil {
			return nil, decodeError(op, err)
		}
	}
	return resp, nil
}

// sendJSON 写调用并解析
func (s *Session) sendJSON(ctx context.Context, op, method, path string, body, out interface{}) error {
	resp, err := s.call(ctx, op, true, func(req *resty.Request) (*resty.Response, error) {
		if body != nil {
			req.SetBody(body)
		}
		return req.Execute(method, path)
	})
	if err != nil {
		return err
	}
	if out != nil && len(resp.Body()) > 0 {
		if err := decodeJSON(resp.Body(), out); err != nil {
			return decodeError(op, err)
		}
	}
	return nil
}

// getPages 按 Link 头翻页读取，每页交给 collect 处理
func (s *Session) getPages(ctx context.Context, op, path string, query map[string]string, collect func(body []byte) error) error {
	next := path
	params := query
	for next != "" {
		resp, err := s.getJSON(ctx, op, next, params, nil)
		if err != nil {
			return err
		}
		if err := collect(resp.Body()); err != nil {
			return decodeError(op, err)
		}

		// 后续页的完整地址已包含查询参数
		params = nil
		next = ""
		for _, link := range linkheader.Parse(resp.Header().Get("Link")).FilterByRel("next") {
			next = link.URL
			break
		}
	}
	return nil
}
