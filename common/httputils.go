package common

import (
	"context"
	"fmt"
	"io/ioutil"
	"net/http"
	"strings"
)

// HttpInvokeJson sends reqBody as JSON and returns the response body of a 2xx response.
// Any other status yields an *ErrHttpInvoke carrying the response.
func HttpInvokeJson(ctx context.Context, client *http.Client, method, url string, headers http.Header, reqBody string) (string, error) {
	if client == nil {
		client = http.DefaultClient
	}
	var body *strings.Reader
	if reqBody != "" {
		body = strings.NewReader(reqBody)
	} else {
		body = strings.NewReader("")
	}
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return "", NewErrHttpInvoke(req, reqBody, nil, "", err)
	}
	req.Header.Set("Content-Type", "application/json;charset=UTF-8")
	for name, values := range headers {
		req.Header.Del(name)
		for _, value := range values {
			req.Header.Add(name, value)
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", NewErrHttpInvoke(req, reqBody, resp, "", err)
	}

	defer resp.Body.Close()
	respBodyBytes, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return "", NewErrHttpInvoke(req, reqBody, resp, "", err)
	}
	respBody := string(respBodyBytes)
	if !HttpStatusIsSuccess(resp.StatusCode) {
		return "", NewErrHttpInvoke(req, reqBody, resp, respBody, nil)
	}

	return respBody, nil
}

func HttpStatusIsSuccess(status int) bool {
	return status >= 200 && status < 300
}

type ErrHttpInvoke struct {
	Method  string
	Url     string
	ReqBody string

	StatusCode int
	StatusText string
	RespBody   string

	Cause error
}

func NewErrHttpInvoke(req *http.Request, reqBody string, resp *http.Response, respBody string, cause error) *ErrHttpInvoke {
	err := ErrHttpInvoke{}
	err.Cause = cause
	if req != nil {
		err.Method = req.Method
		err.Url = req.URL.String()
		err.ReqBody = reqBody
	}

	if resp != nil {
		err.StatusCode = resp.StatusCode
		err.StatusText = resp.Status
		err.RespBody = respBody
	}
	return &err
}

// request headers are never rendered, they carry the service key
func (e *ErrHttpInvoke) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("http invoke failed. request %s %s: %v", e.Method, e.Url, e.Cause)
	}
	return fmt.Sprintf("http invoke failed. request %s %s, response %d %s, body: '%s'",
		e.Method, e.Url, e.StatusCode, e.StatusText, e.RespBody)
}

func (e *ErrHttpInvoke) Unwrap() error {
	return e.Cause
}
