// Package lsp 为 .jasm 清单提供语言服务：语法诊断、可用改写提示、
// 助记符悬停以及整文件优化的代码操作。
package lsp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/segmentio/encoding/json"
	"go.lsp.dev/jsonrpc2"
	"go.lsp.dev/protocol"
	"go.uber.org/zap"
)

// ServerName 在 initialize 响应中报告的名字
const ServerName = "jpeep-lsp"

// Server LSP 服务器
//
// 请求由 jsonrpc2 连接的读循环依次处理，处理函数之间没有并发。
type Server struct {
	docs     *DocumentManager
	analyzer *Analyzer
	logger   *zap.Logger
	version  string

	conn     jsonrpc2.Conn
	shutdown bool
	exited   atomic.Bool
}

// NewServer 创建 LSP 服务器
func NewServer(analyzer *Analyzer, version string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		docs:     NewDocumentManager(10, logger),
		analyzer: analyzer,
		logger:   logger,
		version:  version,
	}
}

// Run 在 rwc 上服务，直到客户端发送 exit、断开连接或 ctx 结束
func (s *Server) Run(ctx context.Context, rwc io.ReadWriteCloser) error {
	s.conn = jsonrpc2.NewConn(jsonrpc2.NewStream(rwc))
	s.conn.Go(ctx, s.handle)
	s.logger.Info("language server started", zap.String("version", s.version))

	select {
	case <-ctx.Done():
		s.conn.Close()
		return ctx.Err()
	case <-s.conn.Done():
	}

	if s.exited.Load() {
		s.logger.Info("language server stopped")
		return nil
	}
	if err := s.conn.Err(); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("lsp connection failed: %w", err)
	}
	s.logger.Info("client disconnected")
	return nil
}

// handle 根据方法分发处理
func (s *Server) handle(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	s.logger.Debug("handling request", zap.String("method", req.Method()))

	if s.shutdown && req.Method() != protocol.MethodExit {
		return reply(ctx, nil, jsonrpc2.NewError(jsonrpc2.InvalidRequest, "server is shutting down"))
	}

	switch req.Method() {
	case protocol.MethodInitialize:
		return s.initialize(ctx, reply, req)
	case protocol.MethodInitialized:
		s.logger.Info("client initialized")
		return reply(ctx, nil, nil)
	case protocol.MethodShutdown:
		s.shutdown = true
		return reply(ctx, nil, nil)
	case protocol.MethodExit:
		s.exited.Store(true)
		err := reply(ctx, nil, nil)
		s.conn.Close()
		return err
	case protocol.MethodTextDocumentDidOpen:
		var p protocol.DidOpenTextDocumentParams
		if !s.decode(req, &p) {
			return reply(ctx, nil, nil)
		}
		doc := s.docs.Open(p.TextDocument.URI, p.TextDocument.Text, p.TextDocument.Version)
		s.publish(ctx, doc)
		return reply(ctx, nil, nil)
	case protocol.MethodTextDocumentDidChange:
		var p protocol.DidChangeTextDocumentParams
		if !s.decode(req, &p) || len(p.ContentChanges) == 0 {
			return reply(ctx, nil, nil)
		}
		// 完整同步：最后一个变更即为全文
		text := p.ContentChanges[len(p.ContentChanges)-1].Text
		if doc := s.docs.Update(p.TextDocument.URI, text, p.TextDocument.Version); doc != nil {
			s.publish(ctx, doc)
		}
		return reply(ctx, nil, nil)
	case protocol.MethodTextDocumentDidSave:
		var p protocol.DidSaveTextDocumentParams
		if !s.decode(req, &p) || p.Text == "" {
			return reply(ctx, nil, nil)
		}
		if doc := s.docs.Get(p.TextDocument.URI); doc != nil && doc.Content != p.Text {
			s.docs.Update(p.TextDocument.URI, p.Text, doc.Version+1)
			s.publish(ctx, doc)
		}
		return reply(ctx, nil, nil)
	case protocol.MethodTextDocumentDidClose:
		var p protocol.DidCloseTextDocumentParams
		if s.decode(req, &p) {
			s.docs.Close(p.TextDocument.URI)
			s.notify(ctx, protocol.MethodTextDocumentPublishDiagnostics, &protocol.PublishDiagnosticsParams{
				URI:         p.TextDocument.URI,
				Diagnostics: []protocol.Diagnostic{},
			})
		}
		return reply(ctx, nil, nil)
	case protocol.MethodTextDocumentHover:
		var p protocol.HoverParams
		if !s.decode(req, &p) {
			return reply(ctx, nil, jsonrpc2.ErrInvalidParams)
		}
		doc := s.docs.Get(p.TextDocument.URI)
		if doc == nil {
			return reply(ctx, nil, nil)
		}
		return reply(ctx, s.hover(doc, p.Position), nil)
	case protocol.MethodTextDocumentCodeAction:
		var p protocol.CodeActionParams
		if !s.decode(req, &p) {
			return reply(ctx, nil, jsonrpc2.ErrInvalidParams)
		}
		doc := s.docs.Get(p.TextDocument.URI)
		if doc == nil {
			return reply(ctx, []protocol.CodeAction{}, nil)
		}
		return reply(ctx, s.codeActions(doc, &p), nil)
	}
	return jsonrpc2.MethodNotFoundHandler(ctx, reply, req)
}

// initialize 处理初始化请求，返回服务器能力
func (s *Server) initialize(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	var p protocol.InitializeParams
	if !s.decode(req, &p) {
		return reply(ctx, nil, jsonrpc2.ErrInvalidParams)
	}
	s.logger.Info("initialize", zap.String("root", string(p.RootURI)))

	return reply(ctx, &protocol.InitializeResult{
		Capabilities: protocol.ServerCapabilities{
			TextDocumentSync: &protocol.TextDocumentSyncOptions{
				OpenClose: true,
				Change:    protocol.TextDocumentSyncKindFull,
				Save:      &protocol.SaveOptions{IncludeText: true},
			},
			HoverProvider: true,
			CodeActionProvider: &protocol.CodeActionOptions{
				CodeActionKinds: []protocol.CodeActionKind{SourceOptimize},
			},
		},
		ServerInfo: &protocol.ServerInfo{Name: ServerName, Version: s.version},
	}, nil)
}

// publish 发送文档的诊断信息
func (s *Server) publish(ctx context.Context, doc *Document) {
	a := doc.Analysis(s.analyzer)
	s.notify(ctx, protocol.MethodTextDocumentPublishDiagnostics, &protocol.PublishDiagnosticsParams{
		URI:         doc.URI,
		Version:     uint32(max(doc.Version, 0)),
		Diagnostics: a.Diagnostics(doc.Lines),
	})
}

func (s *Server) notify(ctx context.Context, method string, params any) {
	if err := s.conn.Notify(ctx, method, params); err != nil {
		s.logger.Error("failed to send notification", zap.String("method", method), zap.Error(err))
	}
}

func (s *Server) decode(req jsonrpc2.Request, v any) bool {
	if err := json.Unmarshal(req.Params(), v); err != nil {
		s.logger.Error("failed to parse params", zap.String("method", req.Method()), zap.Error(err))
		return false
	}
	return true
}
