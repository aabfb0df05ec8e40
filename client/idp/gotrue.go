package idp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"roster/bizerror"
	"roster/common"
	"roster/infra/tracing"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const source = "identity provider"

// GoTrueClient calls a GoTrue compatible admin API with a service key.
type GoTrueClient struct {
	BaseURL    string
	ServiceKey string
	RedirectTo string

	HttpClient *http.Client
}

// BuildClientFromEnv IDP_URL, IDP_SERVICE_KEY, IDP_REDIRECT_URL, IDP_TIMEOUT
func BuildClientFromEnv() (*GoTrueClient, error) {
	baseURL := strings.TrimRight(os.Getenv("IDP_URL"), "/")
	if baseURL == "" {
		return nil, errors.New("IDP_URL is required")
	}
	serviceKey := os.Getenv("IDP_SERVICE_KEY")
	if serviceKey == "" {
		return nil, errors.New("IDP_SERVICE_KEY is required")
	}
	timeout := 10 * time.Second
	if v := os.Getenv("IDP_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid IDP_TIMEOUT '%s': %w", v, err)
		}
		timeout = d
	}
	return NewGoTrueClient(baseURL, serviceKey, os.Getenv("IDP_REDIRECT_URL"), timeout), nil
}

func NewGoTrueClient(baseURL, serviceKey, redirectTo string, timeout time.Duration) *GoTrueClient {
	return &GoTrueClient{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		ServiceKey: serviceKey,
		RedirectTo: redirectTo,
		HttpClient: &http.Client{Timeout: timeout, Transport: &tracing.TracingTransport{Transport: http.DefaultTransport}},
	}
}

func (c *GoTrueClient) ListAccounts(ctx context.Context, page, perPage int) ([]Account, error) {
	q := url.Values{}
	q.Set("page", fmt.Sprint(page))
	q.Set("per_page", fmt.Sprint(perPage))

	body, err := c.invoke(ctx, http.MethodGet, "/admin/users?"+q.Encode(), c.serviceHeaders(), nil)
	if err != nil {
		return nil, err
	}
	result := struct {
		Users []Account `json:"users"`
	}{}
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		return nil, bizerror.Upstream(source, err)
	}
	return result.Users, nil
}

func (c *GoTrueClient) GetUserByToken(ctx context.Context, token string) (*Account, error) {
	headers := http.Header{}
	headers.Set("apikey", c.ServiceKey)
	headers.Set("Authorization", "Bearer "+token)

	body, err := c.invoke(ctx, http.MethodGet, "/user", headers, nil)
	if err != nil {
		var invokeErr *common.ErrHttpInvoke
		if errors.As(err, &invokeErr) && (invokeErr.StatusCode == http.StatusUnauthorized ||
			invokeErr.StatusCode == http.StatusForbidden || invokeErr.StatusCode == http.StatusNotFound) {
			return nil, bizerror.ErrUnauthenticated
		}
		if errors.Is(err, bizerror.ErrNotFound) {
			return nil, bizerror.ErrUnauthenticated
		}
		return nil, err
	}
	return decodeAccount(body)
}

func (c *GoTrueClient) GetAccount(ctx context.Context, id string) (*Account, error) {
	body, err := c.invoke(ctx, http.MethodGet, "/admin/users/"+url.PathEscape(id), c.serviceHeaders(), nil)
	if err != nil {
		return nil, err
	}
	return decodeAccount(body)
}

func (c *GoTrueClient) FindAccountByEmail(ctx context.Context, email string) (*Account, error) {
	q := url.Values{}
	q.Set("filter", email)
	q.Set("page", "1")
	q.Set("per_page", "50")

	body, err := c.invoke(ctx, http.MethodGet, "/admin/users?"+q.Encode(), c.serviceHeaders(), nil)
	if err != nil {
		return nil, err
	}
	result := struct {
		Users []Account `json:"users"`
	}{}
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		return nil, bizerror.Upstream(source, err)
	}
	// filter is a substring match
	for i := range result.Users {
		if strings.EqualFold(result.Users[i].Email, email) {
			return &result.Users[i], nil
		}
	}
	return nil, bizerror.ErrNotFound
}

func (c *GoTrueClient) GenerateInviteLink(ctx context.Context, email string) (*InviteLink, error) {
	req := map[string]interface{}{"type": "invite", "email": email}
	if c.RedirectTo != "" {
		req["redirect_to"] = c.RedirectTo
	}
	body, err := c.invoke(ctx, http.MethodPost, "/admin/generate_link", c.serviceHeaders(), req)
	if err != nil {
		return nil, err
	}

	account, err := decodeAccount(body)
	if err != nil {
		return nil, err
	}
	// the link is returned either next to the user fields or under properties
	links := struct {
		ActionLink string `json:"action_link"`
		Properties struct {
			ActionLink string `json:"action_link"`
		} `json:"properties"`
	}{}
	if err := json.Unmarshal([]byte(body), &links); err != nil {
		return nil, bizerror.Upstream(source, err)
	}

	link := &InviteLink{ActionLink: links.ActionLink, Account: *account}
	if link.ActionLink == "" {
		link.ActionLink = links.Properties.ActionLink
	}
	if link.ActionLink == "" {
		return nil, bizerror.Upstream(source, errors.New("invite link not available"))
	}
	return link, nil
}

func (c *GoTrueClient) InviteByEmail(ctx context.Context, email string) (*Account, error) {
	path := "/invite"
	if c.RedirectTo != "" {
		path += "?redirect_to=" + url.QueryEscape(c.RedirectTo)
	}
	body, err := c.invoke(ctx, http.MethodPost, path, c.serviceHeaders(), map[string]interface{}{"email": email})
	if err != nil {
		return nil, err
	}
	return decodeAccount(body)
}

func (c *GoTrueClient) CreateAccount(ctx context.Context, creation *AccountCreation) (*Account, error) {
	req := map[string]interface{}{
		"email":         creation.Email,
		"password":      creation.Password,
		"email_confirm": true,
	}
	if creation.FullName != "" {
		req["user_metadata"] = map[string]interface{}{"full_name": creation.FullName}
	}
	body, err := c.invoke(ctx, http.MethodPost, "/admin/users", c.serviceHeaders(), req)
	if err != nil {
		return nil, err
	}
	return decodeAccount(body)
}

func (c *GoTrueClient) DeleteAccount(ctx context.Context, id string) error {
	_, err := c.invoke(ctx, http.MethodDelete, "/admin/users/"+url.PathEscape(id), c.serviceHeaders(), nil)
	return err
}

func (c *GoTrueClient) serviceHeaders() http.Header {
	headers := http.Header{}
	headers.Set("apikey", c.ServiceKey)
	headers.Set("Authorization", "Bearer "+c.ServiceKey)
	return headers
}

// invoke returns bizerror.ErrNotFound for 404 and wraps every other failure as an upstream error.
func (c *GoTrueClient) invoke(ctx context.Context, method, path string, headers http.Header, reqBody interface{}) (string, error) {
	payload := ""
	if reqBody != nil {
		b, err := json.Marshal(reqBody)
		if err != nil {
			return "", err
		}
		payload = string(b)
	}

	body, err := common.HttpInvokeJson(ctx, c.HttpClient, method, c.BaseURL+path, headers, payload)
	if err != nil {
		var invokeErr *common.ErrHttpInvoke
		if errors.As(err, &invokeErr) && invokeErr.StatusCode == http.StatusNotFound {
			return "", bizerror.ErrNotFound
		}
		logrus.WithField("method", method).WithField("path", strings.SplitN(path, "?", 2)[0]).
			Warnf("identity provider call failed: %v", err)
		return "", bizerror.Upstream(source, err)
	}
	return body, nil
}

func decodeAccount(body string) (*Account, error) {
	account := Account{}
	if err := json.Unmarshal([]byte(body), &account); err != nil {
		return nil, bizerror.Upstream(source, err)
	}
	if account.ID == "" {
		// invite responses may nest the account
		nested := struct {
			User *Account `json:"user"`
		}{}
		if err := json.Unmarshal([]byte(body), &nested); err == nil && nested.User != nil {
			return nested.User, nil
		}
	}
	return &account, nil
}
