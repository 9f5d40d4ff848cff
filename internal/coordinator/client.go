// Package coordinator 是节点访问协调端 HTTP 接口的客户端。
// 每次调用只发出一个请求，不做重试；重试发生在下一次唤醒。
package coordinator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// MaxBodyBytes 默认响应体上限，与节点接收缓冲区一致
const MaxBodyBytes = 1024

// ErrBodyTooLarge 响应体超过上限，Response 只带状态码
var ErrBodyTooLarge = errors.New("coordinator: response body too large")

// Response 协调端响应
type Response struct {
	Status int
	Body   []byte
}

// OK 状态码是否为 200
func (r Response) OK() bool { return r.Status == http.StatusOK }

// Client 协调端客户端
type Client struct {
	HTTP    *http.Client
	BaseURL string
	User    string
	Pass    string

	// MaxBody 响应体上限，<=0 时为 MaxBodyBytes
	MaxBody int
}

// NewClient 创建客户端；httpClient 为 nil 时使用带超时的默认客户端
func NewClient(httpClient *http.Client, host string, port int, user, pass string, timeout time.Duration) *Client {
	if httpClient == nil {
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		HTTP:    httpClient,
		BaseURL: "http://" + host + ":" + strconv.Itoa(port),
		User:    user,
		Pass:    pass,
	}
}

// ConfigURL 节点配置资源地址
func (c *Client) ConfigURL(nodeID string) string {
	return c.BaseURL + "/api/node/" + url.PathEscape(nodeID) + "/config"
}

// ValuesURL 节点测量值资源地址
func (c *Client) ValuesURL(nodeID string) string {
	return c.BaseURL + "/api/node/" + url.PathEscape(nodeID) + "/values"
}

// GetConfig GET 配置
func (c *Client) GetConfig(ctx context.Context, nodeID string) (Response, error) {
	return c.do(ctx, http.MethodGet, c.ConfigURL(nodeID), nil, "")
}

// Register 以空请求体 POST 配置资源，完成注册
func (c *Client) Register(ctx context.Context, nodeID string) (Response, error) {
	return c.do(ctx, http.MethodPost, c.ConfigURL(nodeID), []byte{}, "")
}

// PostValues 上传测量值
func (c *Client) PostValues(ctx context.Context, nodeID string, body []byte) (Response, error) {
	return c.do(ctx, http.MethodPost, c.ValuesURL(nodeID), body, "application/json")
}

func (c *Client) do(ctx context.Context, method, endpoint string, body []byte, contentType string) (Response, error) {
	if c == nil || c.HTTP == nil {
		return Response{}, errors.New("nil coordinator client")
	}
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, rd)
	if err != nil {
		return Response{}, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.User != "" || c.Pass != "" {
		req.SetBasicAuth(c.User, c.Pass)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return Response{}, fmt.Errorf("%s %s: %w", method, endpoint, err)
	}
	defer resp.Body.Close()

	limit := c.MaxBody
	if limit <= 0 {
		limit = MaxBodyBytes
	}
	rb, err := io.ReadAll(io.LimitReader(resp.Body, int64(limit)+1))
	if err != nil {
		return Response{Status: resp.StatusCode}, fmt.Errorf("read body: %w", err)
	}
	if len(rb) > limit {
		return Response{Status: resp.StatusCode}, fmt.Errorf("%s %s: %w (limit %d)", method, endpoint, ErrBodyTooLarge, limit)
	}
	return Response{Status: resp.StatusCode, Body: rb}, nil
}
