package search

import (
	"context"
	"errors"
)

// ErrNotConfigured 未配置任何搜索服务
var ErrNotConfigured = errors.New("search provider not configured")

// Searcher 网页搜索接口，作为网页来源的直连兜底
type Searcher interface {
	Search(ctx context.Context, req *Request) (*Response, error)
}

// Request 搜索请求
type Request struct {
	Query      string
	Topic      string // news / general
	Language   string // ja / en，空表示不限
	MaxResults int
}

// Response 搜索响应
type Response struct {
	Results []Result
}

// Result 单条搜索结果
type Result struct {
	Title         string
	URL           string
	Content       string
	Score         float64
	PublishedDate string
}
