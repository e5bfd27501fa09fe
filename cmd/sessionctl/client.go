package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"go-art-session/internal/model"
)

// envelope mirrors model.APIResponse with Data left raw for the caller to decode.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *model.APIError `json:"error"`
	Notice  string          `json:"notice"`
}

type daemonClient struct {
	rest *resty.Client
}

func newDaemonClient(addr string, timeout time.Duration) *daemonClient {
	rest := resty.New().
		SetBaseURL(strings.TrimRight(addr, "/")).
		SetHeader("Accept", "application/json")
	if timeout > 0 {
		rest.SetTimeout(timeout)
	}
	return &daemonClient{rest: rest}
}

func (c *daemonClient) call(ctx context.Context, method string, path string, body any) (*envelope, error) {
	req := c.rest.R().SetContext(ctx)
	if body != nil {
		req.SetBody(body)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return nil, fmt.Errorf("sessiond unreachable: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(resp.Body(), &env); err != nil {
		return nil, fmt.Errorf("unexpected response from sessiond (HTTP %d)", resp.StatusCode())
	}
	if !env.Success {
		if env.Error != nil {
			return &env, fmt.Errorf("%s: %s", env.Error.Code, env.Error.Message)
		}
		return &env, fmt.Errorf("request failed with HTTP %d", resp.StatusCode())
	}
	return &env, nil
}

// watch prints each server-sent event payload until ctx ends or the stream closes.
func (c *daemonClient) watch(ctx context.Context, out io.Writer) error {
	resp, err := c.rest.R().
		SetContext(ctx).
		SetHeader("Accept", "text/event-stream").
		SetDoNotParseResponse(true).
		Get("/session/events")
	if err != nil {
		return fmt.Errorf("sessiond unreachable: %w", err)
	}
	body := resp.RawBody()
	defer body.Close()

	scanner := bufio.NewScanner(body)
	for scanner.Scan() {
		data, ok := strings.CutPrefix(scanner.Text(), "data: ")
		if !ok {
			continue
		}
		if _, err := fmt.Fprintln(out, data); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
