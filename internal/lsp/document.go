package lsp

import (
	"sync"

	"go.lsp.dev/protocol"
	"go.uber.org/zap"
)

// Document 表示一个打开的清单文件
type Document struct {
	URI     protocol.DocumentURI
	Content string
	Version int32
	Lines   []string

	// 延迟计算的解析与优化结果
	analysis *Analysis
	mu       sync.Mutex
}

// Analysis 获取文档的分析结果（延迟计算）
func (d *Document) Analysis(a *Analyzer) *Analysis {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.analysis == nil {
		d.analysis = a.Analyze(documentPath(d.URI), d.Content)
	}
	return d.analysis
}

// invalidate 内容变化后丢弃旧的分析结果，调用者需持有 d.mu
func (d *Document) invalidate() {
	d.analysis = nil
}

// DocumentManager 文档管理器
type DocumentManager struct {
	docs      map[protocol.DocumentURI]*Document
	openOrder []protocol.DocumentURI // LRU 顺序（最近使用的在最后）
	maxDocs   int
	mu        sync.Mutex
	logger    *zap.Logger
}

// NewDocumentManager 创建文档管理器，最多缓存 maxDocs 个文档
func NewDocumentManager(maxDocs int, logger *zap.Logger) *DocumentManager {
	return &DocumentManager{
		docs:    make(map[protocol.DocumentURI]*Document),
		maxDocs: max(maxDocs, 1),
		logger:  logger,
	}
}

// Open 打开文档；已打开时更新内容
func (dm *DocumentManager) Open(uri protocol.DocumentURI, content string, version int32) *Document {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	if doc, exists := dm.docs[uri]; exists {
		dm.set(doc, content, version)
		dm.touch(uri)
		return doc
	}

	if len(dm.docs) >= dm.maxDocs {
		dm.evictOldest()
	}
	doc := &Document{
		URI:     uri,
		Content: content,
		Version: version,
		Lines:   splitLines(content),
	}
	dm.docs[uri] = doc
	dm.openOrder = append(dm.openOrder, uri)
	dm.logger.Debug("document opened",
		zap.String("uri", string(uri)),
		zap.Int32("version", version),
		zap.Int("size", len(content)),
	)
	return doc
}

// Update 更新文档内容，文档未打开时返回 nil
func (dm *DocumentManager) Update(uri protocol.DocumentURI, content string, version int32) *Document {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	doc, exists := dm.docs[uri]
	if !exists {
		return nil
	}
	dm.set(doc, content, version)
	dm.touch(uri)
	dm.logger.Debug("document updated", zap.String("uri", string(uri)), zap.Int32("version", version))
	return doc
}

// Close 关闭文档
func (dm *DocumentManager) Close(uri protocol.DocumentURI) {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	if _, exists := dm.docs[uri]; !exists {
		return
	}
	delete(dm.docs, uri)
	dm.remove(uri)
	dm.logger.Debug("document closed", zap.String("uri", string(uri)), zap.Int("remaining", len(dm.docs)))
}

// Get 获取文档
func (dm *DocumentManager) Get(uri protocol.DocumentURI) *Document {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	doc, exists := dm.docs[uri]
	if !exists {
		return nil
	}
	dm.touch(uri)
	return doc
}

// Count 返回当前打开的文档数量
func (dm *DocumentManager) Count() int {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	return len(dm.docs)
}

func (dm *DocumentManager) set(doc *Document, content string, version int32) {
	doc.mu.Lock()
	defer doc.mu.Unlock()
	doc.Content = content
	doc.Version = version
	doc.Lines = splitLines(content)
	doc.invalidate()
}

// touch 更新 LRU 顺序（调用者需持有锁）
func (dm *DocumentManager) touch(uri protocol.DocumentURI) {
	dm.remove(uri)
	dm.openOrder = append(dm.openOrder, uri)
}

func (dm *DocumentManager) remove(uri protocol.DocumentURI) {
	for i, u := range dm.openOrder {
		if u == uri {
			dm.openOrder = append(dm.openOrder[:i], dm.openOrder[i+1:]...)
			return
		}
	}
}

// evictOldest 淘汰最久未使用的文档（调用者需持有锁）
func (dm *DocumentManager) evictOldest() {
	if len(dm.openOrder) == 0 {
		return
	}
	oldest := dm.openOrder[0]
	delete(dm.docs, oldest)
	dm.openOrder = dm.openOrder[1:]
	dm.logger.Info("evicted least recently used document", zap.String("uri", string(oldest)))
}
