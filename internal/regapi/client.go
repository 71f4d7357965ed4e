package regapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
)

type ClientOptions struct {
	Endpoint string
}

type client struct {
	o      ClientOptions
	client *http.Client
}

func NewClient(o ClientOptions, httpClient *http.Client) API {
	o.Endpoint = strings.TrimSuffix(o.Endpoint, "/")
	return &client{o: o, client: httpClient}
}

func (c *client) decodeError(rsp *http.Response) error {
	if 200 <= rsp.StatusCode && rsp.StatusCode <= 299 {
		return nil
	}
	var b bytes.Buffer
	if _, err := io.Copy(&b, rsp.Body); err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if mt, _, _ := mime.ParseMediaType(rsp.Header.Get("Content-Type")); mt == "application/json" {
		apiErr := &Error{}
		if err := json.Unmarshal(b.Bytes(), apiErr); err != nil {
			return fmt.Errorf("unmarshal json: %w", err)
		}
		apiErr.Status = rsp.StatusCode
		return apiErr
	}
	return &Error{Status: rsp.StatusCode, Message: strings.TrimSpace(b.String())}
}

func doClientRequest[Rsp any](ctx context.Context, c *client, path string) (*Rsp, error) {
	hReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.o.Endpoint+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	hReq.Header.Set("Accept", "application/json")
	hRsp, err := c.client.Do(hReq)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, hRsp.Body)
		_ = hRsp.Body.Close()
	}()
	if err := c.decodeError(hRsp); err != nil {
		return nil, fmt.Errorf("status: %w", err)
	}
	rspBytes, err := io.ReadAll(hRsp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	var rsp *Rsp
	if err := json.Unmarshal(rspBytes, &rsp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	return rsp, nil
}

func (c *client) NameStatus(ctx context.Context, name string) (*NameStatus, error) {
	return doClientRequest[NameStatus](ctx, c, "/api/names/"+url.PathEscape(name))
}

func (c *client) UserCredentials(ctx context.Context, username string) (*UserCredentials, error) {
	return doClientRequest[UserCredentials](ctx, c, "/api/users/"+url.PathEscape(username)+"/credentials")
}
